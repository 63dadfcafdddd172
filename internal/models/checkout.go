package models

import "time"

// CheckoutSession captures one checkout attempt. It is built when the client
// confirms a selection and is immutable afterwards; retrying a checkout
// builds a new session, idempotency is enforced on the payment intent id,
// not on session identity.
type CheckoutSession struct {
	AlbumID     string    `json:"album_id"`
	EventID     string    `json:"event_id"`
	PhotoIDs    []string  `json:"photo_ids"`
	ClientEmail string    `json:"client_email"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderStatusUpdate is broadcast to SSE subscribers whenever an order is
// created or settles.
type OrderStatusUpdate struct {
	OrderID     string      `json:"order_id"`
	EventID     string      `json:"event_id"`
	AlbumID     string      `json:"album_id"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	Reason      string      `json:"reason,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type NotificationType string

const (
	NotificationOrderConfirmed NotificationType = "order_confirmed"
	NotificationOrderFailed    NotificationType = "order_failed"
)

// NotificationEvent is the payload published to Kafka for downstream
// consumers (e-mail dispatch, dashboards).
type NotificationEvent struct {
	Type      NotificationType `json:"type"`
	Order     Order            `json:"order"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
