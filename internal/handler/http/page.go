package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	"github.com/pr-poehali-dev/zdrav-project/internal/service"
	"github.com/pr-poehali-dev/zdrav-project/internal/view"
	apperrors "github.com/pr-poehali-dev/zdrav-project/pkg/errors"
	"github.com/pr-poehali-dev/zdrav-project/pkg/logger"
	"github.com/pr-poehali-dev/zdrav-project/pkg/middleware"
	"github.com/pr-poehali-dev/zdrav-project/pkg/validator"
)

// PageHandler serves the server-rendered storefront. Every POST applies one
// user intent and redirects back to the page (post/redirect/get), except a
// rejected checkout, which re-renders the form with its errors.
type PageHandler struct {
	service  *service.StorefrontService
	renderer *view.Renderer
	logger   *slog.Logger
}

// NewPageHandler creates the HTML handler.
func NewPageHandler(svc *service.StorefrontService, renderer *view.Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{service: svc, renderer: renderer, logger: logger}
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	sess, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, sess, nil)
}

// AddItem handles POST /cart/items/{productId}
func (h *PageHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.withProduct(w, r, func(sessionID string, productID int) error {
		_, err := h.service.AddToCart(r.Context(), sessionID, productID)
		return err
	})
}

// Increment handles POST /cart/items/{productId}/increment
func (h *PageHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.withProduct(w, r, func(sessionID string, productID int) error {
		_, err := h.service.UpdateQuantity(r.Context(), sessionID, productID, 1)
		return err
	})
}

// Decrement handles POST /cart/items/{productId}/decrement
func (h *PageHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.withProduct(w, r, func(sessionID string, productID int) error {
		_, err := h.service.UpdateQuantity(r.Context(), sessionID, productID, -1)
		return err
	})
}

// RemoveItem handles POST /cart/items/{productId}/remove
func (h *PageHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.withProduct(w, r, func(sessionID string, productID int) error {
		_, err := h.service.RemoveFromCart(r.Context(), sessionID, productID)
		return err
	})
}

// Flow returns the handler for POST /cart/{open,close,back,checkout}.
// Going back from the checkout form keeps whatever was typed into it.
func (h *PageHandler) Flow(ev domain.FlowEvent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())

		if ev == domain.EventBack {
			if form, ok := formFromRequest(r); ok {
				if _, err := h.service.UpdateForm(r.Context(), sessionID, form); err != nil {
					h.fail(w, r, err)
					return
				}
			}
		}

		if _, err := h.service.Fire(r.Context(), sessionID, ev); err != nil {
			h.fail(w, r, err)
			return
		}
		h.redirect(w, r)
	}
}

// Checkout handles POST /checkout
func (h *PageHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	form, _ := formFromRequest(r)
	sess, _, err := h.service.SubmitCheckout(r.Context(), sessionID, form)
	if err == nil {
		h.redirect(w, r)
		return
	}
	if sess == nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusConflict
	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		status = http.StatusUnprocessableEntity
	}
	h.render(w, r, status, sess, err)
}

func (h *PageHandler) withProduct(w http.ResponseWriter, r *http.Request, fn func(sessionID string, productID int) error) {
	productID, err := strconv.Atoi(chi.URLParam(r, "productId"))
	if err != nil || productID <= 0 {
		http.Error(w, "Некорректный товар", http.StatusBadRequest)
		return
	}

	if err := fn(middleware.SessionIDFromContext(r.Context()), productID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, sess *domain.Session, submitErr error) {
	page := view.NewPage(view.PageInput{
		Products:      h.service.Catalog().List(),
		Session:       sess,
		Notifications: h.service.Notifications(sess.ID),
		SubmitErr:     submitErr,
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.Render(w, page); err != nil {
		h.log(r).ErrorContext(r.Context(), "failed to render page", slog.String("error", err.Error()))
	}
}

// redirect sends the browser back to the page after a POST.
func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	msg := "Что-то пошло не так. Попробуйте позже."
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		msg = "Товар не найден"
	case status >= http.StatusInternalServerError:
		h.log(r).ErrorContext(r.Context(), "request failed", slog.String("error", err.Error()))
	}
	http.Error(w, msg, status)
}

func (h *PageHandler) log(r *http.Request) *slog.Logger {
	return logger.WithContext(r.Context(), h.logger)
}

// formFromRequest reads the checkout inputs from a urlencoded body. ok is
// false when none of them was posted.
func formFromRequest(r *http.Request) (domain.CheckoutForm, bool) {
	if err := r.ParseForm(); err != nil {
		return domain.CheckoutForm{}, false
	}

	_, hasName := r.PostForm["name"]
	_, hasEmail := r.PostForm["email"]
	_, hasPhone := r.PostForm["phone"]
	_, hasAddress := r.PostForm["address"]

	form := domain.CheckoutForm{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Address: r.PostForm.Get("address"),
	}
	return form, hasName || hasEmail || hasPhone || hasAddress
}
