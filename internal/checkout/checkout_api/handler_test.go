package checkout_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-gallery/internal/checkout"
	"ms-gallery/internal/checkout/checkout_api"
	"ms-gallery/internal/gateway"
	"ms-gallery/internal/logger"
	"ms-gallery/internal/models"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) StartCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutResponse), args.Error(1)
}

func (m *mockService) GetCheckoutStatus(orderID string) (*models.Order, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockService) HandleGatewayNotification(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

func (m *mockService) AbandonCheckout(orderID string) {
	m.Called(orderID)
}

func setupHandler(t *testing.T) (*mockService, *chi.Mux) {
	t.Helper()
	service := new(mockService)
	handler := checkout_api.NewHandler(service, logger.NewLogger())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return service, router
}

func postJSON(router http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStartCheckoutReturnsCreated(t *testing.T) {
	service, router := setupHandler(t)

	service.On("StartCheckout", mock.Anything, mock.Anything).Return(&models.CheckoutResponse{
		OrderID:     "order-1",
		Status:      models.OrderPending,
		TotalAmount: 75.0,
		QRPayload:   "qr-data",
	}, nil)

	rec := postJSON(router, "/api/checkout", models.CheckoutRequest{
		AlbumID:     "album123",
		PhotoIDs:    []string{"photo1", "photo2", "photo3"},
		ClientEmail: "client@example.com",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Success bool                    `json:"success"`
		Data    models.CheckoutResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "order-1", resp.Data.OrderID)
	assert.Equal(t, "qr-data", resp.Data.QRPayload)
}

func TestStartCheckoutValidationFailure(t *testing.T) {
	service, router := setupHandler(t)
	service.On("StartCheckout", mock.Anything, mock.Anything).Return(nil, checkout.ErrEmptySelection)

	rec := postJSON(router, "/api/checkout", models.CheckoutRequest{AlbumID: "album123"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStartCheckoutLockedSelection(t *testing.T) {
	service, router := setupHandler(t)
	service.On("StartCheckout", mock.Anything, mock.Anything).Return(nil, checkout.ErrSelectionLocked)

	rec := postJSON(router, "/api/checkout", models.CheckoutRequest{AlbumID: "album123", PhotoIDs: []string{"photo1"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartCheckoutGatewayErrors(t *testing.T) {
	service, router := setupHandler(t)
	service.On("StartCheckout", mock.Anything, mock.Anything).
		Return(nil, &gateway.ConfigError{Reason: "missing token"}).Once()
	service.On("StartCheckout", mock.Anything, mock.Anything).
		Return(nil, &gateway.RequestError{StatusCode: 500, Message: "gateway down"}).Once()

	rec := postJSON(router, "/api/checkout", models.CheckoutRequest{AlbumID: "album123", PhotoIDs: []string{"photo1"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = postJSON(router, "/api/checkout", models.CheckoutRequest{AlbumID: "album123", PhotoIDs: []string{"photo1"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetStatus(t *testing.T) {
	service, router := setupHandler(t)
	service.On("GetCheckoutStatus", "order-1").Return(&models.Order{
		OrderID: "order-1",
		Status:  models.OrderCancelled,
		Reason:  "payment rejected by gateway",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/order-1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			Status models.OrderStatus `json:"status"`
			Reason string             `json:"reason"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.OrderCancelled, resp.Data.Status)
	assert.Equal(t, "payment rejected by gateway", resp.Data.Reason)
}

func TestGetStatusUnknownOrder(t *testing.T) {
	service, router := setupHandler(t)
	service.On("GetCheckoutStatus", "missing").Return(nil, assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/missing/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAbandonCheckout(t *testing.T) {
	service, router := setupHandler(t)
	service.On("AbandonCheckout", "order-1").Return()

	req := httptest.NewRequest(http.MethodDelete, "/api/checkout/order-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	service.AssertCalled(t, "AbandonCheckout", "order-1")
}

func TestWebhookExtractsIntentFromPayload(t *testing.T) {
	service, router := setupHandler(t)
	service.On("HandleGatewayNotification", mock.Anything, "12345").Return(nil)

	rec := postJSON(router, "/api/checkout/webhook", map[string]interface{}{
		"action": "payment.updated",
		"data":   map[string]string{"id": "12345"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertCalled(t, "HandleGatewayNotification", mock.Anything, "12345")
}

func TestWebhookExtractsIntentFromQuery(t *testing.T) {
	service, router := setupHandler(t)
	service.On("HandleGatewayNotification", mock.Anything, "98765").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/webhook?data.id=98765", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertCalled(t, "HandleGatewayNotification", mock.Anything, "98765")
}

func TestWebhookMissingIntentID(t *testing.T) {
	_, router := setupHandler(t)

	rec := postJSON(router, "/api/checkout/webhook", map[string]string{"action": "ping"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
