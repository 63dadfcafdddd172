package checkout

import (
	"context"
	"fmt"
	"time"

	"ms-gallery/internal/gateway"
	"ms-gallery/internal/models"
)

// startReconciler spawns the polling loop that watches a pending order's
// payment intent until it settles or the loop is stopped.
func (s *Service) startReconciler(order models.Order) {
	ctx, cancel := context.WithCancel(s.rootCtx)

	s.mu.Lock()
	s.watchers[order.OrderID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runReconciler(ctx, order)
}

func (s *Service) runReconciler(ctx context.Context, order models.Order) {
	defer s.wg.Done()
	defer s.stopWatcher(order.OrderID)

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	// MaxWait zero means unbounded: the order stays pending until the
	// gateway answers or a webhook settles it.
	var deadline <-chan time.Time
	if s.MaxWait > 0 {
		timer := time.NewTimer(s.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	s.Logger.LogOrder("RECONCILE", order.OrderID, fmt.Sprintf("polling intent %s every %s", order.PaymentIntentID, s.PollInterval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			s.Logger.Warn("RECONCILE", "Gave up polling order "+order.OrderID+", leaving it pending")
			return
		case <-ticker.C:
			if s.reconcileOnce(ctx, order) {
				return
			}
		}
	}
}

// reconcileOnce performs one poll. It returns true when the order reached a
// terminal state and the loop should stop.
func (s *Service) reconcileOnce(ctx context.Context, order models.Order) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.GatewayTimeout)
	status, err := s.Gateway.GetIntentStatus(callCtx, order.PaymentIntentID)
	cancel()

	if err != nil {
		// The gateway call failed; another writer (webhook) may have
		// settled the order in the meantime, so check the store before
		// deciding to keep polling.
		if current, dbErr := s.Store.GetOrderByID(order.OrderID); dbErr == nil && current.Status.Terminal() {
			return true
		}
		s.Logger.Warn("RECONCILE", "Poll failed for order "+order.OrderID+": "+err.Error())
		return false
	}

	switch status {
	case gateway.IntentApproved:
		s.settlePaid(order)
		return true
	case gateway.IntentRejected:
		s.settleCancelled(order, "payment rejected by gateway")
		return true
	}
	return false
}
