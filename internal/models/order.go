package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

// Terminal reports whether no further transition is permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderCancelled || s == OrderExpired
}

// Order is the durable record of a checkout outcome. Orders are never
// deleted; cancellation and expiry are status transitions. PaymentIntentID
// is the idempotency key: at most one order exists per non-empty intent id.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID         string      `bun:"order_id,pk" json:"order_id"`
	EventID         string      `bun:"event_id" json:"event_id"`
	AlbumID         string      `bun:"album_id" json:"album_id"`
	ClientEmail     string      `bun:"client_email" json:"client_email"`
	PhotoIDs        []string    `bun:"photo_ids,array" json:"photo_ids"`
	TotalAmount     float64     `bun:"total_amount" json:"total_amount"`
	Status          OrderStatus `bun:"status" json:"status"`
	PaymentIntentID string      `bun:"payment_intent_id,unique,nullzero" json:"payment_intent_id,omitempty"`
	Reason          string      `bun:"reason,nullzero" json:"reason,omitempty"`
	CreatedAt       time.Time   `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type CheckoutRequest struct {
	AlbumID     string   `json:"album_id"`
	PhotoIDs    []string `json:"photo_ids"`
	ClientEmail string   `json:"client_email"`
}

type CheckoutResponse struct {
	OrderID     string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	QRPayload   string      `json:"qr_payload,omitempty"`
	QRImage     string      `json:"qr_image,omitempty"` // base64 PNG
}
