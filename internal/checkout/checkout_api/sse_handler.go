package checkout_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-gallery/internal/logger"
	"ms-gallery/internal/models"
	"ms-gallery/internal/sse"
)

// AlbumReader resolves albums for share-token validation on album streams.
type AlbumReader interface {
	GetAlbum(id string) (*models.Album, error)
}

// SSEHandler manages Server-Sent Events endpoints for order status updates
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.CheckoutEventEmitter
	Gallery      AlbumReader
}

func NewSSEHandler(log *logger.Logger, emitter *sse.CheckoutEventEmitter, gallery AlbumReader) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
		Gallery:      gallery,
	}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/events/{eventID}/checkouts/stream", h.HandleEventCheckouts)
	r.Get("/api/albums/{albumID}/checkouts/stream", h.HandleAlbumCheckouts)
}

// HandleEventCheckouts streams order status updates for a specific event
func (h *SSEHandler) HandleEventCheckouts(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	h.setupSSEHeaders(w)

	// Create a context that cancels when the client disconnects
	ctx := r.Context()
	updateChan := h.EventEmitter.SubscribeToEvent(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventID\":\"%s\"}\n\n", eventID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", "Client connected to event checkout stream: "+eventID)

	h.stream(w, r, updateChan, eventID)
}

// HandleAlbumCheckouts streams order status updates for a specific album.
// Access is gated on the album's share token so only holders of the gallery
// link can watch its checkouts.
func (h *SSEHandler) HandleAlbumCheckouts(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumID")
	if albumID == "" {
		http.Error(w, "Album ID is required", http.StatusBadRequest)
		return
	}

	album, err := h.Gallery.GetAlbum(albumID)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Album lookup failed for %s: %v", albumID, err))
		http.Error(w, "Album not found", http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("token") != album.ShareToken {
		h.Logger.Warn("SSE", "Rejected album stream subscription with bad share token: "+albumID)
		http.Error(w, "Unauthorized access", http.StatusUnauthorized)
		return
	}

	h.setupSSEHeaders(w)

	ctx := r.Context()
	updateChan := h.EventEmitter.SubscribeToAlbum(ctx, albumID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"albumID\":\"%s\"}\n\n", albumID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", "Client connected to album checkout stream: "+albumID)

	h.stream(w, r, updateChan, albumID)
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, updates chan models.OrderStatusUpdate, scope string) {
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				h.Logger.Debug("SSE", "Channel closed for: "+scope)
				return
			}

			jsonData, err := json.Marshal(update)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize status update: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: order_status\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-r.Context().Done():
			h.Logger.Debug("SSE", "Client disconnected from: "+scope)
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
