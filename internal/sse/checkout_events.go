package sse

import (
	"context"
	"sync"

	"ms-gallery/internal/models"
)

// CheckoutEventEmitter manages SSE connections and event broadcasting for checkout events
type CheckoutEventEmitter struct {
	// Event channel clients map - key: eventID, value: slice of client channels
	eventClients     map[string][]chan models.OrderStatusUpdate
	eventClientMutex sync.RWMutex

	// Album channel clients map - key: albumID, value: slice of client channels
	albumClients     map[string][]chan models.OrderStatusUpdate
	albumClientMutex sync.RWMutex
}

// NewCheckoutEventEmitter creates a new SSE event emitter for checkout events
func NewCheckoutEventEmitter() *CheckoutEventEmitter {
	return &CheckoutEventEmitter{
		eventClients: make(map[string][]chan models.OrderStatusUpdate),
		albumClients: make(map[string][]chan models.OrderStatusUpdate),
	}
}

// SubscribeToEvent adds a client to the event's checkout updates
func (e *CheckoutEventEmitter) SubscribeToEvent(ctx context.Context, eventID string) chan models.OrderStatusUpdate {
	clientChan := make(chan models.OrderStatusUpdate, 10)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeEventClient(eventID, clientChan)
	}()

	return clientChan
}

// SubscribeToAlbum adds a client to the album's checkout updates
func (e *CheckoutEventEmitter) SubscribeToAlbum(ctx context.Context, albumID string) chan models.OrderStatusUpdate {
	clientChan := make(chan models.OrderStatusUpdate, 10)

	e.albumClientMutex.Lock()
	e.albumClients[albumID] = append(e.albumClients[albumID], clientChan)
	e.albumClientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeAlbumClient(albumID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts an order status update to all subscribed clients
func (e *CheckoutEventEmitter) Emit(update models.OrderStatusUpdate) {
	e.eventClientMutex.RLock()
	eventClients := e.eventClients[update.EventID]
	e.eventClientMutex.RUnlock()

	for _, clientChan := range eventClients {
		// Non-blocking send to avoid slowing down emitter if client is slow
		select {
		case clientChan <- update:
		default:
			// Channel buffer full, skip this client for now
		}
	}

	e.albumClientMutex.RLock()
	albumClients := e.albumClients[update.AlbumID]
	e.albumClientMutex.RUnlock()

	for _, clientChan := range albumClients {
		select {
		case clientChan <- update:
		default:
		}
	}
}

// Helper methods to remove clients when they disconnect
func (e *CheckoutEventEmitter) removeEventClient(eventID string, clientChan chan models.OrderStatusUpdate) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

func (e *CheckoutEventEmitter) removeAlbumClient(albumID string, clientChan chan models.OrderStatusUpdate) {
	e.albumClientMutex.Lock()
	defer e.albumClientMutex.Unlock()

	clients := e.albumClients[albumID]
	for i, ch := range clients {
		if ch == clientChan {
			e.albumClients[albumID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.albumClients[albumID]) == 0 {
		delete(e.albumClients, albumID)
	}
}

// GetEventClientCount returns the number of clients currently subscribed to an event
func (e *CheckoutEventEmitter) GetEventClientCount(eventID string) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}

// GetAlbumClientCount returns the number of clients currently subscribed to an album
func (e *CheckoutEventEmitter) GetAlbumClientCount(albumID string) int {
	e.albumClientMutex.RLock()
	defer e.albumClientMutex.RUnlock()
	return len(e.albumClients[albumID])
}
