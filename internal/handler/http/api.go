package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	"github.com/pr-poehali-dev/zdrav-project/internal/service"
	"github.com/pr-poehali-dev/zdrav-project/internal/view"
	apperrors "github.com/pr-poehali-dev/zdrav-project/pkg/errors"
	"github.com/pr-poehali-dev/zdrav-project/pkg/httputil"
	"github.com/pr-poehali-dev/zdrav-project/pkg/middleware"
	"github.com/pr-poehali-dev/zdrav-project/pkg/pagination"
	"github.com/pr-poehali-dev/zdrav-project/pkg/validator"
)

// APIHandler serves the JSON API. It operates on the same cookie session
// as the HTML page.
type APIHandler struct {
	service *service.StorefrontService
	logger  *slog.Logger
}

// NewAPIHandler creates the JSON API handler.
func NewAPIHandler(svc *service.StorefrontService, logger *slog.Logger) *APIHandler {
	return &APIHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID int `json:"product_id" validate:"required,gt=0"`
}

// UpdateQuantityRequest is the JSON request body for changing a quantity.
type UpdateQuantityRequest struct {
	Delta *int `json:"delta" validate:"required"`
}

// --- Response DTOs ---

// CartItemResponse is one cart line.
type CartItemResponse struct {
	domain.CartItem
	Subtotal int64 `json:"subtotal"`
}

// SessionResponse is the cart, form and checkout step of the session.
type SessionResponse struct {
	ID             string              `json:"id"`
	Items          []CartItemResponse  `json:"items"`
	Count          int                 `json:"count"`
	ItemCount      int                 `json:"item_count"`
	Total          int64               `json:"total"`
	TotalFormatted string              `json:"total_formatted"`
	State          domain.FlowState    `json:"state"`
	ResumeCheckout bool                `json:"resume_checkout"`
	Form           domain.CheckoutForm `json:"form"`
	CanSubmit      bool                `json:"can_submit"`
}

// OrderResponse is the result of a successful checkout.
type OrderResponse struct {
	Order   *domain.Order    `json:"order"`
	Session *SessionResponse `json:"session"`
}

func toSessionResponse(s *domain.Session) *SessionResponse {
	items := make([]CartItemResponse, 0, s.Cart.Len())
	for _, it := range s.Cart.Snapshot() {
		items = append(items, CartItemResponse{CartItem: it, Subtotal: it.Subtotal()})
	}

	total := s.Cart.TotalPrice()
	return &SessionResponse{
		ID:             s.ID,
		Items:          items,
		Count:          s.Cart.Len(),
		ItemCount:      s.Cart.ItemCount(),
		Total:          total,
		TotalFormatted: view.FormatPrice(total),
		State:          s.State,
		ResumeCheckout: s.ResumeCheckout,
		Form:           s.Form,
		CanSubmit:      s.Form.CanSubmit(),
	}
}

// --- Catalog ---

// ListProducts handles GET /api/v1/products
func (h *APIHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	result := pagination.Slice(h.service.Catalog().List(), pagination.FromRequest(r))
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *APIHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, found := h.service.Catalog().Get(id)
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("product", strconv.Itoa(id)), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// --- Cart ---

// GetCart handles GET /api/v1/cart
func (h *APIHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.GetSession(r.Context(), sessionID(r))
	h.respond(w, r, http.StatusOK, sess, err)
}

// AddItem handles POST /api/v1/cart/items
func (h *APIHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sess, err := h.service.AddToCart(r.Context(), sessionID(r), req.ProductID)
	h.respond(w, r, http.StatusOK, sess, err)
}

// UpdateItem handles PATCH /api/v1/cart/items/{productId}
func (h *APIHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sess, err := h.service.UpdateQuantity(r.Context(), sessionID(r), productID, *req.Delta)
	h.respond(w, r, http.StatusOK, sess, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *APIHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	sess, err := h.service.RemoveFromCart(r.Context(), sessionID(r), productID)
	h.respond(w, r, http.StatusOK, sess, err)
}

// --- Checkout ---

// PutForm handles PUT /api/v1/checkout/form. Values are stored as entered
// and only validated on submit.
func (h *APIHandler) PutForm(w http.ResponseWriter, r *http.Request) {
	var form domain.CheckoutForm
	if err := decode(r, &form); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sess, err := h.service.UpdateForm(r.Context(), sessionID(r), form)
	h.respond(w, r, http.StatusOK, sess, err)
}

// FireEvent handles POST /api/v1/checkout/{event}
func (h *APIHandler) FireEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := domain.ParseFlowEvent(chi.URLParam(r, "event"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: err.Error()},
		})
		return
	}

	sess, err := h.service.Fire(r.Context(), sessionID(r), ev)
	h.respond(w, r, http.StatusOK, sess, err)
}

// Submit handles POST /api/v1/checkout
func (h *APIHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form domain.CheckoutForm
	if err := decode(r, &form); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sess, order, err := h.service.SubmitCheckout(r.Context(), sessionID(r), form)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: OrderResponse{Order: order, Session: toSessionResponse(sess)},
	})
}

// Notifications handles GET /api/v1/notifications
func (h *APIHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	notes := h.service.Notifications(sessionID(r))
	if notes == nil {
		notes = []domain.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: notes})
}

func (h *APIHandler) respond(w http.ResponseWriter, r *http.Request, status int, sess *domain.Session, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: toSessionResponse(sess)})
}

func sessionID(r *http.Request) string {
	return middleware.SessionIDFromContext(r.Context())
}

// decode reads a JSON body without validating it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
