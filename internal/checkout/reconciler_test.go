package checkout_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gallery/internal/gateway"
	"ms-gallery/internal/models"
)

func TestReconcilerSettlesApprovedIntent(t *testing.T) {
	store := newFakeStore()
	gw := &scriptedGateway{
		intent: &gateway.Intent{ID: "mp_810", Status: gateway.IntentPending, QRPayload: "qr-810"},
		script: []pollResult{
			{status: gateway.IntentPending},
			{status: gateway.IntentPending},
			{status: gateway.IntentApproved},
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, store, gw, newFakeLocks(), notifier, &fakeEmitter{})

	resp, err := svc.StartCheckout(context.Background(), checkoutRequest("photo1"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, resp.Status)
	assert.Equal(t, "qr-810", resp.QRPayload)

	assert.Eventually(t, func() bool {
		order, err := store.GetOrderByID(resp.OrderID)
		return err == nil && order.Status == models.OrderPaid
	}, time.Second, 5*time.Millisecond)

	// Settling exactly once means exactly one notification, ever
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&notifier.confirmed))
}

func TestReconcilerSettlesRejectedIntent(t *testing.T) {
	store := newFakeStore()
	gw := &scriptedGateway{
		intent: &gateway.Intent{ID: "mp_820", Status: gateway.IntentPending},
		script: []pollResult{{status: gateway.IntentRejected}},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, store, gw, newFakeLocks(), notifier, &fakeEmitter{})

	resp, err := svc.StartCheckout(context.Background(), checkoutRequest("photo1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		order, err := store.GetOrderByID(resp.OrderID)
		return err == nil && order.Status == models.OrderCancelled
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&notifier.failed))
	assert.Equal(t, int32(0), atomic.LoadInt32(&notifier.confirmed))
}

func TestReconcilerRecoversFromTransientGatewayError(t *testing.T) {
	store := newFakeStore()
	gw := &scriptedGateway{
		intent: &gateway.Intent{ID: "mp_830", Status: gateway.IntentPending},
		script: []pollResult{
			{err: errors.New("connection reset")},
			{status: gateway.IntentPending},
			{status: gateway.IntentApproved},
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, store, gw, newFakeLocks(), notifier, &fakeEmitter{})

	resp, err := svc.StartCheckout(context.Background(), checkoutRequest("photo1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		order, err := store.GetOrderByID(resp.OrderID)
		return err == nil && order.Status == models.OrderPaid
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&notifier.confirmed))
}

func TestReconcilerStopsWhenSettledElsewhere(t *testing.T) {
	store := newFakeStore()

	// Every poll fails, so the loop has to notice the webhook's settlement
	// through the store.
	gw := &scriptedGateway{
		intent: &gateway.Intent{ID: "mp_840", Status: gateway.IntentPending},
		script: []pollResult{{err: errors.New("gateway unavailable")}},
	}
	svc := newTestService(t, store, gw, newFakeLocks(), &fakeNotifier{}, &fakeEmitter{})

	resp, err := svc.StartCheckout(context.Background(), checkoutRequest("photo1"))
	require.NoError(t, err)

	_, err = store.UpdateStatus(resp.OrderID, models.OrderPaid, "")
	require.NoError(t, err)

	// The loop exits once it observes the terminal status; polls stop
	time.Sleep(50 * time.Millisecond)
	polls := atomic.LoadInt32(&gw.polls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polls, atomic.LoadInt32(&gw.polls))
}

func TestAbandonCheckoutStopsPolling(t *testing.T) {
	store := newFakeStore()
	gw := &scriptedGateway{intent: &gateway.Intent{ID: "mp_850", Status: gateway.IntentPending}}
	svc := newTestService(t, store, gw, newFakeLocks(), &fakeNotifier{}, &fakeEmitter{})

	resp, err := svc.StartCheckout(context.Background(), checkoutRequest("photo1"))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, resp.Status)

	svc.AbandonCheckout(resp.OrderID)

	// Give the loop a moment to observe the cancellation, then verify the
	// poll counter is frozen and the order stayed pending.
	time.Sleep(30 * time.Millisecond)
	polls := atomic.LoadInt32(&gw.polls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, polls, atomic.LoadInt32(&gw.polls))

	order, err := store.GetOrderByID(resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
}
