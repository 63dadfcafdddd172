package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-gallery/internal/logger"
)

// MercadoPago drives instant-transfer payments through the MercadoPago REST
// API. The client pays by scanning a QR code; the intent settles
// asynchronously and is observed via GetIntentStatus or a webhook.
type MercadoPago struct {
	baseURL       string
	accessToken   string
	paymentMethod string
	client        *http.Client
	log           *logger.Logger
}

func NewMercadoPago(baseURL, accessToken, paymentMethod string, timeout time.Duration, log *logger.Logger) *MercadoPago {
	return &MercadoPago{
		baseURL:       baseURL,
		accessToken:   accessToken,
		paymentMethod: paymentMethod,
		client:        &http.Client{Timeout: timeout},
		log:           log,
	}
}

type mpPaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

type mpPaymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mpErrorResponse struct {
	Message string `json:"message"`
}

func (m *MercadoPago) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if m.accessToken == "" {
		return nil, &ConfigError{Reason: "MP_ACCESS_TOKEN not set"}
	}

	payload := mpPaymentRequest{
		TransactionAmount: req.Amount,
		Description:       req.Description,
		PaymentMethodID:   m.paymentMethod,
	}
	payload.Payer.Email = req.PayerEmail

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/payments", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	// The gateway deduplicates retried creates on this key
	httpReq.Header.Set("X-Idempotency-Key", req.OrderID)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.log.Error("GATEWAY", fmt.Sprintf("MercadoPago create intent failed for order %s: status %d", req.OrderID, resp.StatusCode))
		return nil, newRequestError(resp)
	}

	var payment mpPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, &RequestError{Message: "invalid gateway response: " + err.Error()}
	}

	intent := &Intent{
		ID:            payment.ID.String(),
		Status:        mapMercadoPagoStatus(payment.Status),
		QRPayload:     payment.PointOfInteraction.TransactionData.QRCode,
		QRImageBase64: payment.PointOfInteraction.TransactionData.QRCodeBase64,
	}

	// Some account tiers omit the rendered image; build the PNG locally
	// from the textual payload so the gallery can always show a code.
	if intent.QRPayload != "" && intent.QRImageBase64 == "" {
		png, err := qrcode.Encode(intent.QRPayload, qrcode.Medium, 256)
		if err != nil {
			m.log.Warn("GATEWAY", fmt.Sprintf("Failed to render QR image for intent %s: %v", intent.ID, err))
		} else {
			intent.QRImageBase64 = base64.StdEncoding.EncodeToString(png)
		}
	}

	m.log.Info("GATEWAY", fmt.Sprintf("Created MercadoPago intent %s for order %s (status %s)", intent.ID, req.OrderID, intent.Status))
	return intent, nil
}

func (m *MercadoPago) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	if m.accessToken == "" {
		return "", &ConfigError{Reason: "MP_ACCESS_TOKEN not set"}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/payments/"+intentID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", &RequestError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newRequestError(resp)
	}

	var payment mpPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return "", &RequestError{Message: "invalid gateway response: " + err.Error()}
	}

	return mapMercadoPagoStatus(payment.Status), nil
}

// newRequestError propagates the gateway's own error message when it sends
// one, falling back to the raw body.
func newRequestError(resp *http.Response) *RequestError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var gatewayErr mpErrorResponse
	if err := json.Unmarshal(body, &gatewayErr); err == nil && gatewayErr.Message != "" {
		return &RequestError{StatusCode: resp.StatusCode, Message: gatewayErr.Message}
	}
	return &RequestError{StatusCode: resp.StatusCode, Message: string(body)}
}

func mapMercadoPagoStatus(status string) IntentStatus {
	switch status {
	case "approved", "authorized":
		return IntentApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return IntentRejected
	default:
		// pending, in_process, in_mediation
		return IntentPending
	}
}
