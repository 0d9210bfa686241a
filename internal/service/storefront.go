package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pr-poehali-dev/zdrav-project/internal/catalog"
	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	"github.com/pr-poehali-dev/zdrav-project/internal/event"
	"github.com/pr-poehali-dev/zdrav-project/internal/notify"
	"github.com/pr-poehali-dev/zdrav-project/internal/repository"
	apperrors "github.com/pr-poehali-dev/zdrav-project/pkg/errors"
	"github.com/pr-poehali-dev/zdrav-project/pkg/logger"
	"github.com/pr-poehali-dev/zdrav-project/pkg/tracing"
	"github.com/pr-poehali-dev/zdrav-project/pkg/validator"
)

// Cart operation names used in metrics, logs and events.
const (
	OpAdd            = "add"
	OpRemove         = "remove"
	OpUpdateQuantity = "update_quantity"
)

// StorefrontService runs every shopper action against that shopper's
// session: it loads the session, applies the change, saves it and reports
// the outcome through notifications, events and metrics.
//
// Actions on one session are serialized; different sessions never contend.
type StorefrontService struct {
	catalog    *catalog.Catalog
	repo       repository.SessionRepository
	mailbox    notify.Mailbox
	events     event.Publisher
	logger     *slog.Logger
	sessionTTL time.Duration
	locks      *keyedMutex
	tracer     trace.Tracer
	nowFunc    func() time.Time
}

// NewStorefrontService creates the service.
func NewStorefrontService(
	cat *catalog.Catalog,
	repo repository.SessionRepository,
	mailbox notify.Mailbox,
	events event.Publisher,
	logger *slog.Logger,
	sessionTTL time.Duration,
) *StorefrontService {
	return &StorefrontService{
		catalog:    cat,
		repo:       repo,
		mailbox:    mailbox,
		events:     events,
		logger:     logger,
		sessionTTL: sessionTTL,
		locks:      newKeyedMutex(),
		tracer:     tracing.Tracer("github.com/pr-poehali-dev/zdrav-project/internal/service"),
		nowFunc:    time.Now,
	}
}

// Catalog returns the product catalog.
func (s *StorefrontService) Catalog() *catalog.Catalog { return s.catalog }

// GetSession returns the session, or a fresh empty one when none is stored.
// A fresh session is not saved until the first mutation.
func (s *StorefrontService) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	sess, _, err := s.load(ctx, sessionID)
	return sess, err
}

// Notifications drains the session's pending notifications.
func (s *StorefrontService) Notifications(sessionID string) []domain.Notification {
	return s.mailbox.Drain(sessionID)
}

// AddToCart adds one unit of the catalog product to the cart. A line already
// at domain.MaxQuantity is left as is and an error notification is queued.
func (s *StorefrontService) AddToCart(ctx context.Context, sessionID string, productID int) (*domain.Session, error) {
	product, ok := s.catalog.Get(productID)
	if !ok {
		return nil, apperrors.NotFound("product", strconv.Itoa(productID))
	}

	var full bool
	sess, err := s.mutate(ctx, "AddToCart", sessionID, func(sess *domain.Session) error {
		it, ok := sess.Cart.Find(productID)
		full = ok && it.Quantity >= domain.MaxQuantity
		sess.Cart.Add(product)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if full {
		s.mailbox.Notify(ctx, sessionID, domain.Failure(domain.MsgQuantityLimit))
		return sess, nil
	}
	s.cartChanged(ctx, sess, OpAdd, productID)
	s.mailbox.Notify(ctx, sessionID, domain.Success(domain.MsgAddedToCart))
	return sess, nil
}

// RemoveFromCart deletes the product's line. Unknown products are ignored.
func (s *StorefrontService) RemoveFromCart(ctx context.Context, sessionID string, productID int) (*domain.Session, error) {
	var removed bool
	sess, err := s.mutate(ctx, "RemoveFromCart", sessionID, func(sess *domain.Session) error {
		_, removed = sess.Cart.Find(productID)
		sess.Cart.Remove(productID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		s.cartChanged(ctx, sess, OpRemove, productID)
		s.mailbox.Notify(ctx, sessionID, domain.Success(domain.MsgRemovedFromCart))
	}
	return sess, nil
}

// UpdateQuantity changes the product's quantity by delta, never below 1.
// Unknown products are ignored. Growth past domain.MaxQuantity is cut off
// and the shopper is told so.
func (s *StorefrontService) UpdateQuantity(ctx context.Context, sessionID string, productID, delta int) (*domain.Session, error) {
	var before, after int
	sess, err := s.mutate(ctx, "UpdateQuantity", sessionID, func(sess *domain.Session) error {
		if it, ok := sess.Cart.Find(productID); ok {
			before = it.Quantity
		}
		sess.Cart.UpdateQuantity(productID, delta)
		if it, ok := sess.Cart.Find(productID); ok {
			after = it.Quantity
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if before != after {
		s.cartChanged(ctx, sess, OpUpdateQuantity, productID)
	}
	if before > 0 && delta > after-before {
		s.mailbox.Notify(ctx, sessionID, domain.Failure(domain.MsgQuantityLimit))
	}
	return sess, nil
}

// OpenCart opens the cart sheet.
func (s *StorefrontService) OpenCart(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.Fire(ctx, sessionID, domain.EventOpenCart)
}

// CloseCart closes the cart sheet.
func (s *StorefrontService) CloseCart(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.Fire(ctx, sessionID, domain.EventCloseCart)
}

// Back steps back one checkout step.
func (s *StorefrontService) Back(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.Fire(ctx, sessionID, domain.EventBack)
}

// ProceedToCheckout moves from the cart to the checkout form when the cart
// has items.
func (s *StorefrontService) ProceedToCheckout(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.Fire(ctx, sessionID, domain.EventProceedToCheckout)
}

// Fire applies a checkout flow event. Events that do not apply in the
// current state leave it unchanged and are not an error.
func (s *StorefrontService) Fire(ctx context.Context, sessionID string, ev domain.FlowEvent) (*domain.Session, error) {
	var changed bool
	sess, err := s.mutate(ctx, "Fire", sessionID, func(sess *domain.Session) error {
		changed = sess.Fire(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := "applied"
	if !changed {
		result = "ignored"
	}
	flowEvents.WithLabelValues(string(ev), result).Inc()

	s.log(ctx, sessionID).DebugContext(ctx, "checkout flow event",
		slog.String("event", string(ev)),
		slog.String("result", result),
		slog.String("state", string(sess.State)),
	)
	return sess, nil
}

// UpdateForm stores the entered contact details without validating them.
func (s *StorefrontService) UpdateForm(ctx context.Context, sessionID string, form domain.CheckoutForm) (*domain.Session, error) {
	return s.mutate(ctx, "UpdateForm", sessionID, func(sess *domain.Session) error {
		sess.Form = form
		return nil
	})
}

// SubmitCheckout stores form and places the order. On rejection the form
// values are still kept, and the returned session reflects them alongside
// the error: *validator.ValidationError for an invalid form,
// domain.ErrEmptyCart or domain.ErrCheckoutNotOpen otherwise.
func (s *StorefrontService) SubmitCheckout(ctx context.Context, sessionID string, form domain.CheckoutForm) (*domain.Session, *domain.Order, error) {
	var order *domain.Order
	sess, err := s.mutate(ctx, "SubmitCheckout", sessionID, func(sess *domain.Session) error {
		sess.Form = form
		var err error
		order, err = sess.Submit(s.nowFunc().UTC())
		return err
	})
	if err != nil {
		checkouts.WithLabelValues(checkoutResult(err)).Inc()
		if sess != nil {
			s.log(ctx, sessionID).InfoContext(ctx, "checkout rejected", slog.String("reason", err.Error()))
		}
		return sess, nil, err
	}

	checkouts.WithLabelValues("success").Inc()
	orderValue.Observe(float64(order.Total))

	s.log(ctx, sessionID).InfoContext(ctx, "order submitted",
		slog.Int("items", len(order.Items)),
		slog.Int64("total", order.Total),
	)

	if err := s.events.PublishOrderSubmitted(ctx, order); err != nil {
		s.log(ctx, sessionID).WarnContext(ctx, "failed to publish order event", slog.String("error", err.Error()))
	}
	s.mailbox.Notify(ctx, sessionID, domain.Success(domain.MsgOrderPlaced))

	return sess, order, nil
}

func checkoutResult(err error) string {
	var ve *validator.ValidationError
	switch {
	case errors.As(err, &ve):
		return "invalid_form"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrCheckoutNotOpen):
		return "not_open"
	default:
		return "error"
	}
}

// mutate runs fn on the session under the session lock and saves the
// result. The session is saved even when fn fails, so partial input such as
// form values is kept; fn's error is returned together with the session.
// A failure to load or save returns a nil session.
func (s *StorefrontService) mutate(ctx context.Context, op, sessionID string, fn func(*domain.Session) error) (*domain.Session, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	ctx, span := s.tracer.Start(ctx, "StorefrontService."+op,
		trace.WithAttributes(attribute.String("storefront.session_id", sessionID)),
	)
	defer span.End()

	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, created, err := s.load(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fnErr := fn(sess)

	sess.Touch(s.nowFunc().UTC(), s.sessionTTL)
	if err := s.repo.Save(ctx, sess); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.log(ctx, sessionID).ErrorContext(ctx, "failed to save session", slog.String("error", err.Error()))
		return nil, apperrors.Unavailable("session store", err)
	}
	if created {
		sessionsCreated.Inc()
	}

	if fnErr != nil {
		span.RecordError(fnErr)
	}
	span.SetAttributes(
		attribute.String("storefront.state", string(sess.State)),
		attribute.Int("storefront.cart.lines", sess.Cart.Len()),
	)
	return sess.Clone(), fnErr
}

// load fetches the session or builds a new one; created reports the latter.
func (s *StorefrontService) load(ctx context.Context, sessionID string) (*domain.Session, bool, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err == nil {
		return sess, false, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.NewSession(sessionID, s.nowFunc().UTC(), s.sessionTTL), true, nil
	}

	s.log(ctx, sessionID).ErrorContext(ctx, "failed to load session", slog.String("error", err.Error()))
	return nil, false, apperrors.Unavailable("session store", err)
}

func (s *StorefrontService) cartChanged(ctx context.Context, sess *domain.Session, op string, productID int) {
	cartOperations.WithLabelValues(op).Inc()

	qty := 0
	if it, ok := sess.Cart.Find(productID); ok {
		qty = it.Quantity
	}
	s.log(ctx, sess.ID).InfoContext(ctx, "cart updated",
		slog.String("operation", op),
		slog.Int("product_id", productID),
		slog.Int("quantity", qty),
		slog.Int("lines", sess.Cart.Len()),
		slog.Int64("total", sess.Cart.TotalPrice()),
	)

	if err := s.events.PublishCartUpdated(ctx, sess, op); err != nil {
		s.log(ctx, sess.ID).WarnContext(ctx, "failed to publish cart event", slog.String("error", err.Error()))
	}
}

// log returns the service logger enriched with the request's correlation,
// session and trace IDs.
func (s *StorefrontService) log(ctx context.Context, sessionID string) *slog.Logger {
	if logger.SessionIDFromContext(ctx) == "" {
		ctx = logger.WithSessionID(ctx, sessionID)
	}
	return logger.WithContext(ctx, s.logger)
}
