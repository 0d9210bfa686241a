package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/zdrav-project/internal/catalog"
	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	"github.com/pr-poehali-dev/zdrav-project/internal/event"
	"github.com/pr-poehali-dev/zdrav-project/internal/notify"
	"github.com/pr-poehali-dev/zdrav-project/internal/repository/memory"
	"github.com/pr-poehali-dev/zdrav-project/internal/service"
	"github.com/pr-poehali-dev/zdrav-project/internal/view"
	"github.com/pr-poehali-dev/zdrav-project/pkg/health"
	"github.com/pr-poehali-dev/zdrav-project/pkg/middleware"
)

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()

	logger := testLogger()
	svc := service.NewStorefrontService(
		catalog.Default(),
		memory.NewSessionRepository(),
		notify.NewInbox(0, time.Hour, logger),
		event.NopPublisher{},
		logger,
		time.Hour,
	)
	if cfg.CORS.AllowedOrigins == nil {
		cfg.CORS = middleware.DefaultCORSConfig()
	}
	return NewRouter(svc, view.MustNewRenderer(), health.NewHandler(), logger, cfg)
}

// client replays the session cookie the way a browser would.
type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func newClient(t *testing.T, router http.Handler) *client {
	return &client{t: t, router: router}
}

func (c *client) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	c.t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.DefaultSessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (c *client) sendJSON(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	return c.do(method, path, "application/json", r)
}

func (c *client) page() *goquery.Document {
	c.t.Helper()

	rec := c.do(http.MethodGet, "/", "", nil)
	require.Equal(c.t, http.StatusOK, rec.Code)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(c.t, err)
	return doc
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	env := decodeEnvelope(t, rec)
	require.Nil(t, env.Error)
	var s SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s
}

func validForm() url.Values {
	return url.Values{
		"name":    {"Анна Смирнова"},
		"email":   {"anna@example.ru"},
		"phone":   {"+7 900 000-00-00"},
		"address": {"Москва, Тверская 1"},
	}
}

// ============================================================================
// HTML page
// ============================================================================

func TestIndex_IssuesSessionCookie(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	rec := c.do(http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Find("#catalog article.product").Length())
}

func TestPage_PostRedirectGet(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	rec := c.post("/cart/items/1", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	doc := c.page()
	assert.Equal(t, "1", doc.Find("#cart-count").Text())
	assert.Contains(t, doc.Find(".toasts").Text(), "Товар добавлен в корзину")

	// Toasts are shown once.
	assert.Equal(t, 0, c.page().Find(".toasts").Length())
}

func TestPage_FullCheckout(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	c.post("/cart/items/1", nil)
	c.post("/cart/items/2", nil)
	c.post("/cart/items/1/increment", nil)
	c.post("/cart/open", nil)

	doc := c.page()
	step, _ := doc.Find("#cart").Attr("data-step")
	assert.Equal(t, view.StepItems, step)
	assert.Equal(t, "2", doc.Find("#cart .line").First().Find(".quantity").Text())

	c.post("/cart/checkout", nil)
	doc = c.page()
	assert.Equal(t, 1, doc.Find("form.checkout").Length())

	rec := c.post("/checkout", validForm())
	require.Equal(t, http.StatusSeeOther, rec.Code)

	doc = c.page()
	assert.Equal(t, 0, doc.Find("#cart-count").Length())
	assert.Equal(t, 0, doc.Find("#cart").Length())
	assert.Contains(t, doc.Find(".toasts").Text(), "Заказ успешно оформлен")
}

func TestPage_InvalidCheckoutRerendersForm(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))
	c.post("/cart/items/3", nil)
	c.post("/cart/open", nil)
	c.post("/cart/checkout", nil)

	form := validForm()
	form.Set("email", "not-an-email")
	rec := c.post("/checkout", form)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	email, _ := doc.Find("input#email").Attr("value")
	name, _ := doc.Find("input#name").Attr("value")
	assert.Equal(t, "not-an-email", email)
	assert.Equal(t, "Анна Смирнова", name)
	assert.Equal(t, "Введите корректный email", strings.TrimSpace(doc.Find(`.field-error[data-field="email"]`).Text()))

	// The cart is untouched.
	assert.Equal(t, "1", c.page().Find("#cart-count").Text())
}

func TestPage_BackKeepsTypedValues(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))
	c.post("/cart/items/2", nil)
	c.post("/cart/open", nil)
	c.post("/cart/checkout", nil)

	rec := c.post("/cart/back", url.Values{"name": {"Анна"}, "email": {""}, "phone": {""}, "address": {""}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	step, _ := c.page().Find("#cart").Attr("data-step")
	assert.Equal(t, view.StepItems, step)

	c.post("/cart/checkout", nil)
	name, _ := c.page().Find("input#name").Attr("value")
	assert.Equal(t, "Анна", name)
}

func TestPage_ProductErrors(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	assert.Equal(t, http.StatusNotFound, c.post("/cart/items/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, c.post("/cart/items/abc", nil).Code)
}

// ============================================================================
// JSON API
// ============================================================================

func TestAPI_ListProducts_Paginated(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	rec := c.do(http.MethodGet, "/api/v1/products?per_page=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	var page struct {
		Data       []json.RawMessage `json:"data"`
		TotalCount int               `json:"total_count"`
		HasNext    bool              `json:"has_next"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 3, page.TotalCount)
	assert.True(t, page.HasNext)
}

func TestAPI_GetProduct(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	rec := c.do(http.MethodGet, "/api/v1/products/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var product struct {
		Price int64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &product))
	assert.Equal(t, int64(1250000), product.Price)

	rec = c.do(http.MethodGet, "/api/v1/products/9", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)

	rec = c.do(http.MethodGet, "/api/v1/products/x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_HugeDeltaIsCapped(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	c.sendJSON(http.MethodPost, "/api/v1/cart/items", map[string]int{"product_id": 1})
	c.do(http.MethodGet, "/api/v1/notifications", "", nil)

	rec := c.sendJSON(http.MethodPatch, "/api/v1/cart/items/1", map[string]int{"delta": math.MaxInt})
	require.Equal(t, http.StatusOK, rec.Code)

	sess := decodeSession(t, rec)
	assert.Equal(t, domain.MaxQuantity, sess.ItemCount)
	assert.Equal(t, int64(485000*domain.MaxQuantity), sess.Total)

	rec = c.do(http.MethodGet, "/api/v1/notifications", "", nil)
	var notes []domain.Notification
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &notes))
	assert.Equal(t, []domain.Notification{domain.Failure(domain.MsgQuantityLimit)}, notes)
}

func TestAPI_EndToEnd(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	c.sendJSON(http.MethodPost, "/api/v1/cart/items", map[string]int{"product_id": 1})
	c.sendJSON(http.MethodPost, "/api/v1/cart/items", map[string]int{"product_id": 2})
	rec := c.sendJSON(http.MethodPatch, "/api/v1/cart/items/1", map[string]int{"delta": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	sess := decodeSession(t, rec)
	assert.Equal(t, int64(2220000), sess.Total)
	assert.Equal(t, 2, sess.Count)
	assert.Equal(t, 3, sess.ItemCount)

	c.sendJSON(http.MethodPost, "/api/v1/checkout/open", nil)
	rec = c.sendJSON(http.MethodPost, "/api/v1/checkout/proceed", nil)
	assert.Equal(t, "checkout_form", string(decodeSession(t, rec).State))

	rec = c.sendJSON(http.MethodPost, "/api/v1/checkout", map[string]string{"name": "Анна"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "email")

	rec = c.sendJSON(http.MethodPost, "/api/v1/checkout", map[string]string{
		"name": "Анна", "email": "anna@example.ru", "phone": "+7 900", "address": "Москва",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var placed struct {
		Order struct {
			Total int64 `json:"total"`
		} `json:"order"`
		Session SessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &placed))
	assert.Equal(t, int64(2220000), placed.Order.Total)
	assert.Empty(t, placed.Session.Items)
	assert.Equal(t, "browsing", string(placed.Session.State))

	rec = c.do(http.MethodGet, "/api/v1/notifications", "", nil)
	var notes []struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &notes))
	require.NotEmpty(t, notes)
	assert.Equal(t, "Заказ успешно оформлен! Мы свяжемся с вами в ближайшее время.", notes[len(notes)-1].Message)
}

func TestAPI_SubmitOutsideCheckoutIsConflict(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))
	c.sendJSON(http.MethodPost, "/api/v1/cart/items", map[string]int{"product_id": 1})

	rec := c.sendJSON(http.MethodPost, "/api/v1/checkout", map[string]string{
		"name": "Анна", "email": "anna@example.ru", "phone": "+7 900", "address": "Москва",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, rec).Error.Code)
}

func TestAPI_FormIsStoredUnvalidated(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	rec := c.sendJSON(http.MethodPut, "/api/v1/checkout/form", map[string]string{"email": "half@"})

	require.Equal(t, http.StatusOK, rec.Code)
	sess := decodeSession(t, rec)
	assert.Equal(t, "half@", sess.Form.Email)
	assert.False(t, sess.CanSubmit)
}

func TestAPI_BadRequests(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	rec := c.sendJSON(http.MethodPost, "/api/v1/checkout/teleport", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/api/v1/cart/items", "text/plain", strings.NewReader("1"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = c.sendJSON(http.MethodPost, "/api/v1/cart/items", map[string]int{"product_id": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)

	rec = c.sendJSON(http.MethodPatch, "/api/v1/cart/items/1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.sendJSON(http.MethodPost, "/api/v1/cart/items", map[string]int{"product_id": 42})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CORSPreflight(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// ============================================================================
// Operational endpoints
// ============================================================================

func TestHealthAndMetrics(t *testing.T) {
	c := newClient(t, newTestRouter(t, RouterConfig{}))

	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health/ready", "", nil).Code)
	assert.Nil(t, c.cookie, "health checks do not start sessions")

	rec := c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRateLimitOnMutatingRoutes(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 1, time.Minute, testLogger())
	t.Cleanup(limiter.Close)
	c := newClient(t, newTestRouter(t, RouterConfig{RateLimiter: limiter}))

	assert.Equal(t, http.StatusSeeOther, c.post("/cart/items/1", nil).Code)

	rec := c.post("/cart/items/1", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/", "", nil).Code)
}
