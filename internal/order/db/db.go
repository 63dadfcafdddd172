package db

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-gallery/internal/models"
)

var (
	// ErrDuplicateIntent means an order already exists for the same payment
	// intent id. Callers treat it as "already created, resume
	// reconciliation", never as a hard failure.
	ErrDuplicateIntent = errors.New("an order already exists for this payment intent")

	// ErrTerminalStatus rejects transitions out of paid/cancelled/expired.
	ErrTerminalStatus = errors.New("order is already in a terminal status")

	// ErrInvalidTransition rejects any target other than a terminal status.
	ErrInvalidTransition = errors.New("orders only transition from pending to a terminal status")
)

type DB struct {
	Bun *bun.DB
}

// CreatePendingOrder inserts a new order with status pending. The unique
// constraint on payment_intent_id is the exactly-once guard: a second
// insert for the same intent surfaces ErrDuplicateIntent regardless of
// which writer lost the race.
func (d *DB) CreatePendingOrder(order models.Order) error {
	order.Status = models.OrderPending

	_, err := d.Bun.NewInsert().Model(&order).Exec(context.Background())
	if err != nil {
		if order.PaymentIntentID != "" {
			existing, lookupErr := d.GetOrderByIntentID(order.PaymentIntentID)
			if lookupErr == nil && existing != nil {
				return ErrDuplicateIntent
			}
		}
		return err
	}
	return nil
}

func (d *DB) GetOrderByID(id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByIntentID(intentID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("payment_intent_id = ?", intentID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves an order from pending to a terminal status. The
// conditional update linearizes racing writers: exactly one caller observes
// true, everyone else gets false. Re-requesting the status the order
// already has is an idempotent no-op; any other transition out of a
// terminal status is ErrTerminalStatus. Orders are never deleted.
func (d *DB) UpdateStatus(orderID string, status models.OrderStatus, reason string) (bool, error) {
	if !status.Terminal() {
		return false, ErrInvalidTransition
	}

	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Set("reason = ?", reason).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("status = ?", models.OrderPending).
		Exec(context.Background())
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	current, err := d.GetOrderByID(orderID)
	if err != nil {
		return false, err
	}
	if current.Status == status {
		return false, nil
	}
	return false, ErrTerminalStatus
}
