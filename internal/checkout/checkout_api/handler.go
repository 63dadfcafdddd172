package checkout_api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-gallery/internal/checkout"
	gallerydb "ms-gallery/internal/gallery/db"
	"ms-gallery/internal/gateway"
	"ms-gallery/internal/logger"
	"ms-gallery/internal/models"
	"ms-gallery/internal/utils"
)

// CheckoutService is the slice of the checkout service the HTTP layer uses.
type CheckoutService interface {
	StartCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	GetCheckoutStatus(orderID string) (*models.Order, error)
	HandleGatewayNotification(ctx context.Context, intentID string) error
	AbandonCheckout(orderID string)
}

type Handler struct {
	Service CheckoutService
	Logger  *logger.Logger
}

func NewHandler(service CheckoutService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/checkout", h.StartCheckout)
	r.Get("/api/checkout/{orderId}", h.GetOrder)
	r.Get("/api/checkout/{orderId}/status", h.GetStatus)
	r.Delete("/api/checkout/{orderId}", h.AbandonCheckout)
	r.Post("/api/checkout/webhook", h.GatewayWebhook)
}

// StartCheckout confirms a photo selection and opens payment
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("StartCheckout: invalid request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("StartCheckout: album=%s photos=%d", req.AlbumID, len(req.PhotoIDs)))

	resp, err := h.Service.StartCheckout(r.Context(), req)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Checkout started", resp))
}

// GetOrder returns the full order record
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.Service.GetCheckoutStatus(orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: order %s not found: %v", orderID, err))
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", order))
}

// GetStatus returns just the order's settlement status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.Service.GetCheckoutStatus(orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStatus: order %s not found: %v", orderID, err))
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		return
	}

	response := struct {
		OrderID string             `json:"order_id"`
		Status  models.OrderStatus `json:"status"`
		Reason  string             `json:"reason,omitempty"`
	}{
		OrderID: order.OrderID,
		Status:  order.Status,
		Reason:  order.Reason,
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Status retrieved", response))
}

// AbandonCheckout stops reconciling a pending order
func (h *Handler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", "AbandonCheckout: "+orderID)

	h.Service.AbandonCheckout(orderID)
	w.WriteHeader(http.StatusNoContent)
}

// GatewayWebhook handles payment notifications. The payload only identifies
// the intent; the service re-queries the gateway for the real status.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	intentID := extractIntentID(r)
	if intentID == "" {
		h.Logger.Error("API", "GatewayWebhook: notification without an intent id")
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Missing intent id", "notification payload did not identify a payment intent"))
		return
	}

	h.Logger.Info("API", "GatewayWebhook: notification for intent "+intentID)

	if err := h.Service.HandleGatewayNotification(r.Context(), intentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown intent: acknowledge so the gateway stops retrying
			h.Logger.Warn("API", "GatewayWebhook: no order for intent "+intentID)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GatewayWebhook: failed to process notification: %v", err))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Failed to process notification", err.Error()))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// extractIntentID reads the intent id from either the MercadoPago payload
// shape ({"data":{"id":"..."}}), the query string, or a flat intent_id field.
func extractIntentID(r *http.Request) string {
	if id := r.URL.Query().Get("data.id"); id != "" {
		return id
	}

	var payload struct {
		IntentID string `json:"intent_id"`
		Data     struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Data.ID != "" {
		return payload.Data.ID
	}
	return payload.IntentID
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var configErr *gateway.ConfigError
	var requestErr *gateway.RequestError

	switch {
	case errors.Is(err, checkout.ErrEmptySelection), errors.Is(err, checkout.ErrInvalidContact):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid checkout request", err.Error()))
	case errors.Is(err, gallerydb.ErrPhotoNotFound):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Unknown photo in selection", err.Error()))
	case errors.Is(err, checkout.ErrSelectionLocked):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Photos unavailable", err.Error()))
	case errors.Is(err, sql.ErrNoRows):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Album not found", err.Error()))
	case errors.As(err, &configErr):
		h.Logger.Error("API", "StartCheckout: gateway misconfigured: "+configErr.Reason)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Payment gateway misconfigured", configErr.Error()))
	case errors.As(err, &requestErr):
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Payment gateway request failed", requestErr.Error()))
	default:
		h.Logger.Error("API", "StartCheckout: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Checkout failed", err.Error()))
	}
}
