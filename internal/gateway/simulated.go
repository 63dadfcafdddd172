package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-gallery/internal/logger"
	"ms-gallery/internal/utils"
)

// Settlement delay ceiling for the simulated provider.
const maxSettleDelay = time.Second

// Simulated approves every intent after an artificial settlement delay.
// Used when no real gateway credentials are configured. Never produces a
// QR payload.
type Simulated struct {
	SettleDelay time.Duration

	log *logger.Logger

	mu      sync.Mutex
	intents map[string]IntentStatus
}

func NewSimulated(settleDelay time.Duration, log *logger.Logger) *Simulated {
	return &Simulated{
		SettleDelay: settleDelay,
		log:         log,
		intents:     make(map[string]IntentStatus),
	}
}

func (s *Simulated) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	delay := s.SettleDelay
	if delay > maxSettleDelay {
		delay = maxSettleDelay
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &RequestError{Message: ctx.Err().Error()}
		}
	}

	intentID := utils.GenerateIntentID("sim")

	s.mu.Lock()
	s.intents[intentID] = IntentApproved
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("GATEWAY", fmt.Sprintf("Simulated intent %s approved for order %s (%.2f)", intentID, req.OrderID, req.Amount))
	}

	return &Intent{ID: intentID, Status: IntentApproved}, nil
}

func (s *Simulated) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	s.mu.Lock()
	status, ok := s.intents[intentID]
	s.mu.Unlock()

	if !ok {
		return "", &RequestError{Message: "unknown intent " + intentID}
	}
	return status, nil
}
