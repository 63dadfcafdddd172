package gateway

import (
	"context"
	"fmt"
)

type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentApproved IntentStatus = "approved"
	IntentRejected IntentStatus = "rejected"
)

// Intent is the gateway-side payment object. The engine only observes it;
// the gateway owns its lifecycle.
type Intent struct {
	ID            string
	Status        IntentStatus
	QRPayload     string
	QRImageBase64 string
}

type CreateIntentRequest struct {
	Amount      float64
	Description string
	PayerEmail  string
	OrderID     string
}

// Gateway abstracts the payment provider. Implementations never mutate
// local state; all side effects are network calls.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error)
}

// ConfigError is a fatal misconfiguration (missing credentials). It is
// surfaced to the caller and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "gateway configuration error: " + e.Reason
}

// RequestError is a failed gateway call. Transient by nature: the
// reconciliation loop retries it on its polling cadence, nothing retries
// it synchronously.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway request failed (status %d): %s", e.StatusCode, e.Message)
	}
	return "gateway request failed: " + e.Message
}
