package kafka

import (
	"encoding/json"
	"time"

	"ms-gallery/internal/logger"
	"ms-gallery/internal/models"
)

const (
	TopicOrderConfirmed = "gallery.order.confirmed"
	TopicOrderFailed    = "gallery.order.failed"
)

// Publisher is the slice of the Kafka producer the notifier needs.
type Publisher interface {
	Publish(topic, key string, value []byte) error
}

// Notifier publishes the single settlement notification of each order.
// Callers only invoke it after winning the status transition, so a
// downstream consumer sees at most one message per order.
type Notifier struct {
	Producer Publisher
	Logger   *logger.Logger
}

func NewNotifier(producer Publisher, log *logger.Logger) *Notifier {
	return &Notifier{Producer: producer, Logger: log}
}

func (n *Notifier) NotifyOrderConfirmed(order models.Order) error {
	return n.publish(TopicOrderConfirmed, models.NotificationEvent{
		Type:      models.NotificationOrderConfirmed,
		Order:     order,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) NotifyOrderFailed(order models.Order, reason string) error {
	return n.publish(TopicOrderFailed, models.NotificationEvent{
		Type:      models.NotificationOrderFailed,
		Order:     order,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

func (n *Notifier) publish(topic string, event models.NotificationEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	n.Logger.Info("KAFKA", "Publishing to "+topic+" for order "+event.Order.OrderID)

	return n.Producer.Publish(topic, event.Order.OrderID, msgBytes)
}
