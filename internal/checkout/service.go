package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-gallery/internal/config"
	"ms-gallery/internal/gateway"
	"ms-gallery/internal/logger"
	"ms-gallery/internal/models"
	orderdb "ms-gallery/internal/order/db"
	"ms-gallery/internal/pricing"
	"ms-gallery/internal/utils"
)

type OrderStore interface {
	CreatePendingOrder(order models.Order) error
	GetOrderByID(id string) (*models.Order, error)
	GetOrderByIntentID(intentID string) (*models.Order, error)
	UpdateStatus(orderID string, status models.OrderStatus, reason string) (bool, error)
}

type GalleryReader interface {
	GetAlbum(id string) (*models.Album, error)
	GetPhotos(albumID string, photoIDs []string) ([]models.Photo, error)
}

type SelectionLock interface {
	LockPhotos(albumID string, photoIDs []string, orderID string) (bool, error)
	UnlockPhotos(albumID string, photoIDs []string, orderID string) error
}

type Notifier interface {
	NotifyOrderConfirmed(order models.Order) error
	NotifyOrderFailed(order models.Order, reason string) error
}

type StatusEmitter interface {
	Emit(update models.OrderStatusUpdate)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service drives a selection from confirmation to a settled order: price the
// photos, lock them, open a payment intent, persist the pending order and
// reconcile it against the gateway until it settles.
type Service struct {
	Store    OrderStore
	Gallery  GalleryReader
	Locks    SelectionLock
	Gateway  gateway.Gateway
	Notifier Notifier
	Emitter  StatusEmitter
	Logger   *logger.Logger

	PollInterval   time.Duration
	MaxWait        time.Duration
	GatewayTimeout time.Duration

	rootCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	watchers map[string]context.CancelFunc
}

func NewService(
	store OrderStore,
	gallery GalleryReader,
	locks SelectionLock,
	gw gateway.Gateway,
	notifier Notifier,
	emitter StatusEmitter,
	log *logger.Logger,
	cfg *config.Config,
) *Service {
	rootCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		Store:          store,
		Gallery:        gallery,
		Locks:          locks,
		Gateway:        gw,
		Notifier:       notifier,
		Emitter:        emitter,
		Logger:         log,
		PollInterval:   cfg.Checkout.PollInterval,
		MaxWait:        cfg.Checkout.MaxWait,
		GatewayTimeout: cfg.Gateway.RequestTimeout,
		rootCtx:        rootCtx,
		cancel:         cancel,
		watchers:       make(map[string]context.CancelFunc),
	}
}

// StartCheckout confirms a selection: validates it, prices it, locks the
// photos, opens a payment intent and persists the pending order. Gateway
// failures surface unchanged and leave no order behind.
func (s *Service) StartCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	photoIDs := dedupe(req.PhotoIDs)
	if len(photoIDs) == 0 {
		return nil, ErrEmptySelection
	}
	if !emailPattern.MatchString(req.ClientEmail) {
		return nil, ErrInvalidContact
	}

	album, err := s.Gallery.GetAlbum(req.AlbumID)
	if err != nil {
		return nil, fmt.Errorf("album lookup failed: %w", err)
	}
	photos, err := s.Gallery.GetPhotos(req.AlbumID, photoIDs)
	if err != nil {
		return nil, err
	}

	policy := pricing.Policy{
		UnitPrice:         album.UnitPrice,
		DiscountThreshold: album.DiscountThreshold,
		DiscountRate:      album.DiscountRate,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	prices := make([]float64, len(photos))
	for i, photo := range photos {
		if photo.Price > 0 {
			prices[i] = photo.Price
		} else {
			prices[i] = album.UnitPrice
		}
	}
	total := pricing.Total(prices, policy)

	orderID := uuid.New().String()
	locked, err := s.Locks.LockPhotos(album.AlbumID, photoIDs, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock photos: %w", err)
	}
	if !locked {
		return nil, ErrSelectionLocked
	}

	order := models.Order{
		OrderID:     orderID,
		EventID:     album.EventID,
		AlbumID:     album.AlbumID,
		ClientEmail: req.ClientEmail,
		PhotoIDs:    photoIDs,
		TotalAmount: total,
		Status:      models.OrderPending,
		CreatedAt:   time.Now(),
	}

	// A fully discounted selection never touches the gateway.
	if total == 0 {
		order.PaymentIntentID = utils.GenerateIntentID("free")
		if err := s.Store.CreatePendingOrder(order); err != nil {
			s.Locks.UnlockPhotos(album.AlbumID, photoIDs, orderID)
			return nil, err
		}
		s.Logger.LogOrder("FREE", orderID, "zero-amount order settles immediately")
		s.settlePaid(order)
		return &models.CheckoutResponse{
			OrderID:     orderID,
			Status:      models.OrderPaid,
			TotalAmount: 0,
		}, nil
	}

	intent, err := s.Gateway.CreateIntent(ctx, gateway.CreateIntentRequest{
		Amount:      total,
		Description: fmt.Sprintf("Photo selection (%d photos) from album %s", len(photoIDs), album.AlbumID),
		PayerEmail:  req.ClientEmail,
		OrderID:     orderID,
	})
	if err != nil {
		s.Locks.UnlockPhotos(album.AlbumID, photoIDs, orderID)
		s.Logger.Error("CHECKOUT", "Failed to create payment intent: "+err.Error())
		return nil, err
	}

	order.PaymentIntentID = intent.ID
	if err := s.Store.CreatePendingOrder(order); err != nil {
		s.Locks.UnlockPhotos(album.AlbumID, photoIDs, orderID)
		if errors.Is(err, orderdb.ErrDuplicateIntent) {
			return s.resumeCheckout(intent)
		}
		return nil, err
	}

	s.Logger.LogOrder("CREATE", orderID, fmt.Sprintf("pending order for %.2f, intent %s", total, intent.ID))
	s.Emitter.Emit(statusUpdate(order))

	switch intent.Status {
	case gateway.IntentApproved:
		s.settlePaid(order)
	case gateway.IntentRejected:
		s.settleCancelled(order, "payment rejected by gateway")
	default:
		s.startReconciler(order)
	}

	final, err := s.Store.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	return &models.CheckoutResponse{
		OrderID:     orderID,
		Status:      final.Status,
		TotalAmount: total,
		QRPayload:   intent.QRPayload,
		QRImage:     intent.QRImageBase64,
	}, nil
}

// resumeCheckout handles a retried checkout whose payment intent already has
// an order: the existing order is authoritative, the new attempt folds into
// it.
func (s *Service) resumeCheckout(intent *gateway.Intent) (*models.CheckoutResponse, error) {
	existing, err := s.Store.GetOrderByIntentID(intent.ID)
	if err != nil {
		return nil, err
	}

	s.Logger.LogOrder("RESUME", existing.OrderID, "intent "+intent.ID+" already has an order")

	if existing.Status == models.OrderPending && !s.hasWatcher(existing.OrderID) {
		s.startReconciler(*existing)
	}

	return &models.CheckoutResponse{
		OrderID:     existing.OrderID,
		Status:      existing.Status,
		TotalAmount: existing.TotalAmount,
		QRPayload:   intent.QRPayload,
		QRImage:     intent.QRImageBase64,
	}, nil
}

func (s *Service) GetCheckoutStatus(orderID string) (*models.Order, error) {
	return s.Store.GetOrderByID(orderID)
}

// HandleGatewayNotification is the webhook entry point. The notification is
// only a hint that something changed: the gateway is queried for the
// authoritative status, the payload is never trusted.
func (s *Service) HandleGatewayNotification(ctx context.Context, intentID string) error {
	order, err := s.Store.GetOrderByIntentID(intentID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.GatewayTimeout)
	defer cancel()

	status, err := s.Gateway.GetIntentStatus(callCtx, intentID)
	if err != nil {
		return err
	}

	switch status {
	case gateway.IntentApproved:
		s.settlePaid(*order)
	case gateway.IntentRejected:
		s.settleCancelled(*order, "payment rejected by gateway")
	}
	return nil
}

// AbandonCheckout stops reconciling an order. The order stays pending: a
// late webhook can still settle it, and the photo locks lapse on their TTL.
func (s *Service) AbandonCheckout(orderID string) {
	s.mu.Lock()
	cancel, ok := s.watchers[orderID]
	s.mu.Unlock()
	if ok {
		cancel()
		s.Logger.LogOrder("ABANDON", orderID, "reconciliation stopped, order left pending")
	}
}

// Shutdown stops every reconciliation loop and waits for them to exit.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// settlePaid moves the order to paid. Only the caller that wins the status
// transition notifies and emits, so each order produces at most one
// confirmation.
func (s *Service) settlePaid(order models.Order) {
	transitioned, err := s.Store.UpdateStatus(order.OrderID, models.OrderPaid, "")
	if err != nil {
		s.Logger.Error("CHECKOUT", "Failed to mark order "+order.OrderID+" paid: "+err.Error())
		return
	}
	if !transitioned {
		return
	}

	s.stopWatcher(order.OrderID)
	order.Status = models.OrderPaid
	order.UpdatedAt = time.Now()

	s.Logger.LogOrder("PAID", order.OrderID, "payment approved")
	if err := s.Notifier.NotifyOrderConfirmed(order); err != nil {
		s.Logger.Error("KAFKA", "Failed to publish confirmation for order "+order.OrderID+": "+err.Error())
	}
	s.Emitter.Emit(statusUpdate(order))
}

// settleCancelled moves the order to cancelled and releases its photos.
func (s *Service) settleCancelled(order models.Order, reason string) {
	transitioned, err := s.Store.UpdateStatus(order.OrderID, models.OrderCancelled, reason)
	if err != nil {
		s.Logger.Error("CHECKOUT", "Failed to cancel order "+order.OrderID+": "+err.Error())
		return
	}
	if !transitioned {
		return
	}

	s.stopWatcher(order.OrderID)
	order.Status = models.OrderCancelled
	order.Reason = reason
	order.UpdatedAt = time.Now()

	s.Logger.LogOrder("CANCEL", order.OrderID, reason)
	if err := s.Locks.UnlockPhotos(order.AlbumID, order.PhotoIDs, order.OrderID); err != nil {
		s.Logger.Error("REDIS", "Failed to unlock photos for order "+order.OrderID+": "+err.Error())
	}
	if err := s.Notifier.NotifyOrderFailed(order, reason); err != nil {
		s.Logger.Error("KAFKA", "Failed to publish failure for order "+order.OrderID+": "+err.Error())
	}
	s.Emitter.Emit(statusUpdate(order))
}

func (s *Service) hasWatcher(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watchers[orderID]
	return ok
}

func (s *Service) stopWatcher(orderID string) {
	s.mu.Lock()
	cancel, ok := s.watchers[orderID]
	delete(s.watchers, orderID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func statusUpdate(order models.Order) models.OrderStatusUpdate {
	updatedAt := order.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = order.CreatedAt
	}
	return models.OrderStatusUpdate{
		OrderID:     order.OrderID,
		EventID:     order.EventID,
		AlbumID:     order.AlbumID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Reason:      order.Reason,
		UpdatedAt:   updatedAt,
	}
}

// dedupe removes repeated photo ids, keeping first-occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
