package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"julianmorley.ca/con-plar/petstore/pkg/adoption"
	"julianmorley.ca/con-plar/petstore/pkg/cart"
	"julianmorley.ca/con-plar/petstore/pkg/checkout"
	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/models"
	"julianmorley.ca/con-plar/petstore/pkg/store"
	"julianmorley.ca/con-plar/petstore/pkg/store/storetest"
	"julianmorley.ca/con-plar/petstore/pkg/wishlist"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryOrders stands in for the remote order service.
type memoryOrders struct {
	mu     sync.Mutex
	orders map[int]models.Order
	down   bool
}

func (m *memoryOrders) CreateOrder(_ context.Context, order models.Order) (*models.CreateOrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, &errs.TransportError{Op: "create order"}
	}
	m.orders[order.OrderNumber] = order
	return &models.CreateOrderResponse{Success: true, OrderNumber: order.OrderNumber}, nil
}

func (m *memoryOrders) GetOrder(_ context.Context, n int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[n]
	if !ok {
		return nil, &errs.NotFoundError{Resource: "order", ID: strconv.Itoa(n)}
	}
	return &o, nil
}

func (m *memoryOrders) GetOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryOrders) GetAllOrders(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryOrders) UpdateOrderStatus(_ context.Context, n int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[n]
	if !ok {
		return &errs.NotFoundError{Resource: "order", ID: strconv.Itoa(n)}
	}
	o.Status = status
	m.orders[n] = o
	return nil
}

type testServer struct {
	engine *gin.Engine
	store  *storetest.Flaky
	orders *memoryOrders
	h      *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	s := storetest.NewFlaky(nil)
	userID, err := store.UserID(ctx, s)
	require.NoError(t, err)

	orders := &memoryOrders{orders: map[int]models.Order{}}
	c := cart.New(ctx, s)
	h := &Handler{
		Store:     s,
		UserID:    userID,
		Cart:      c,
		Wishlist:  wishlist.New(ctx, s),
		Checkout:  checkout.New(c, orders, userID),
		Adoptions: adoption.NewRegistry(s),
		Orders:    orders,
	}

	engine := InitEngine(global.Config{CORSOrigins: []string{"http://localhost:3000"}})
	InitializeRoutes(engine, h)
	return &testServer{engine: engine, store: s, orders: orders, h: h}
}

type envelope struct {
	Success bool                     `json:"success"`
	Data    json.RawMessage          `json:"data"`
	Message string                   `json:"message"`
	Errors  []global.ValidationError `json:"errors"`
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func product(id, price string) map[string]interface{} {
	p, _ := strconv.ParseFloat(price, 64)
	return map[string]interface{}{"id": id, "name": "Product " + id, "price": p}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	code, env := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	ts.store.FailReads(true)
	code, env = ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, env.Success)
}

func TestCartEndpoints(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, http.MethodPost, "/api/cart/items", product("a", "2.50"))
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodPost, "/api/cart/items", product("a", "2.50"))
	require.Equal(t, http.StatusOK, code)
	code, env := ts.do(t, http.MethodPut, "/api/cart/items/a", map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, code)

	var summary cart.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 5, summary.ItemCount)
	assert.Equal(t, "12.5", summary.Total.String())

	code, env = ts.do(t, http.MethodDelete, "/api/cart/items/a", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Empty(t, summary.Items)
}

func TestAddToCartRejectsInvalidProduct(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/cart/items", map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "id", env.Errors[0].Field)

	code, _ = ts.do(t, http.MethodPost, "/api/cart/items", product("a", "-1"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 0, ts.h.Cart.Len())
}

func TestCartWriteFailureFlaggedButApplied(t *testing.T) {
	ts := newTestServer(t)
	ts.store.FailWrites(true)

	code, env := ts.do(t, http.MethodPost, "/api/cart/items", product("a", "1"))
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, unsavedMessage, env.Message)
	assert.True(t, ts.h.Cart.Contains("a"))
}

func TestWishlistEndpoints(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/wishlist/toggle", product("w", "3"))
	require.Equal(t, http.StatusOK, code)
	var toggled struct {
		InWishlist bool `json:"in_wishlist"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	assert.True(t, toggled.InWishlist)

	code, _ = ts.do(t, http.MethodPost, "/api/wishlist/w/move-to-cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, ts.h.Cart.Contains("w"))
	assert.False(t, ts.h.Wishlist.IsInWishlist("w"))

	code, _ = ts.do(t, http.MethodPost, "/api/wishlist/w/move-to-cart", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodDelete, "/api/wishlist/nothing", nil)
	assert.Equal(t, http.StatusOK, code)
}

func fillCheckoutForm(t *testing.T, ts *testServer) {
	t.Helper()
	code, _ := ts.do(t, http.MethodPut, "/api/checkout/form", map[string]string{
		"firstName":  "Ada",
		"lastName":   "Lovelace",
		"email":      "ada@example.com",
		"phone":      "555-010-2000",
		"address":    "12 Analytical Way",
		"city":       "London",
		"state":      "LN",
		"zipCode":    "10001",
		"cardNumber": "4111111111114242",
		"expiryDate": "09/29",
		"cvv":        "123",
	})
	require.Equal(t, http.StatusOK, code)
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	_, _ = ts.do(t, http.MethodPost, "/api/cart/items", product("a", "10"))
	fillCheckoutForm(t, ts)

	code, env := ts.do(t, http.MethodGet, "/api/checkout", nil)
	require.Equal(t, http.StatusOK, code)
	var view struct {
		State string        `json:"state"`
		Form  checkout.Form `json:"form"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "editing", view.State)
	assert.Equal(t, "************4242", view.Form.CardNumber)
	assert.Empty(t, view.Form.CVV)

	code, env = ts.do(t, http.MethodPost, "/api/checkout/submit", nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var result struct {
		OrderNumber int `json:"orderNumber"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, models.ValidOrderNumber(result.OrderNumber))
	assert.Equal(t, 0, ts.h.Cart.Len())

	code, _ = ts.do(t, http.MethodPost, "/api/checkout/submit", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = ts.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, code)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, ts.h.UserID, orders[0].UserID)

	path := "/api/orders/" + strconv.Itoa(result.OrderNumber)
	code, _ = ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodPatch, path+"/status", map[string]string{"status": models.OrderStatusShipped})
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodPatch, path+"/status", map[string]string{"status": "Lost"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/checkout/reset", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, checkout.Editing, ts.h.Checkout.State())
}

func TestCheckoutValidationAndTransportFailures(t *testing.T) {
	ts := newTestServer(t)
	fillCheckoutForm(t, ts)

	code, env := ts.do(t, http.MethodPost, "/api/checkout/submit", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Your cart is empty", env.Message)

	_, _ = ts.do(t, http.MethodPost, "/api/cart/items", product("a", "10"))
	ts.orders.down = true
	code, env = ts.do(t, http.MethodPost, "/api/checkout/submit", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "There was an error processing your order. Please try again.", env.Message)
	assert.Equal(t, 1, ts.h.Cart.Len())
}

func TestCancelOnlyWhileProcessing(t *testing.T) {
	ts := newTestServer(t)
	ts.orders.orders[111111] = models.Order{OrderNumber: 111111, Status: models.OrderStatusProcessing}
	ts.orders.orders[222222] = models.Order{OrderNumber: 222222, Status: models.OrderStatusShipped}
	cancel := map[string]string{"status": models.OrderStatusCancelled}

	code, _ := ts.do(t, http.MethodPatch, "/api/orders/111111/status", cancel)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderStatusCancelled, ts.orders.orders[111111].Status)

	code, env := ts.do(t, http.MethodPatch, "/api/orders/222222/status", cancel)
	assert.Equal(t, http.StatusConflict, code)
	require.NotEmpty(t, env.Errors)
	assert.Equal(t, "invalid_transition", env.Errors[0].Code)
	assert.Equal(t, models.OrderStatusShipped, ts.orders.orders[222222].Status)

	code, _ = ts.do(t, http.MethodPatch, "/api/orders/333333/status", cancel)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOrderEndpointsValidateNumber(t *testing.T) {
	ts := newTestServer(t)
	code, _ := ts.do(t, http.MethodGet, "/api/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, http.MethodGet, "/api/orders/12345", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, http.MethodGet, "/api/orders/123456", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func applicationBody(first, pet string) map[string]interface{} {
	return map[string]interface{}{
		"firstName":     first,
		"lastName":      "Tester",
		"email":         first + "@example.com",
		"phone":         "555-010-2000",
		"address":       "1 Main St",
		"housingType":   "house",
		"hasYard":       "yes",
		"otherPets":     "no",
		"petExperience": "lots",
		"preferredPet":  "dog",
		"workSchedule":  "remote",
		"selectedPet":   map[string]string{"id": "p-" + pet, "name": pet},
	}
}

func TestAdoptionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/adoptions", applicationBody("Ada", "Rex"))
	require.Equal(t, http.StatusCreated, code)
	var created models.Application
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, models.StatusPending, created.Status)

	code, _ = ts.do(t, http.MethodPost, "/api/adoptions", applicationBody("Bob", "Max"))
	require.Equal(t, http.StatusCreated, code)

	code, env = ts.do(t, http.MethodPatch, "/api/adoptions/"+created.ID, map[string]string{"status": "approved", "note": "Great fit"})
	require.Equal(t, http.StatusOK, code)
	var updated models.Application
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	last, _ := updated.StatusHistory.Last()
	assert.Equal(t, "Great fit", last.Note)

	code, env = ts.do(t, http.MethodGet, "/api/adoptions?status=approved", nil)
	require.Equal(t, http.StatusOK, code)
	var listed []models.Application
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	code, env = ts.do(t, http.MethodGet, "/api/adoptions?search=max&sort=name", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Bob", listed[0].FirstName)

	code, _ = ts.do(t, http.MethodGet, "/api/adoptions?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, http.MethodGet, "/api/adoptions?sort=price", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPatch, "/api/adoptions/"+created.ID, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = ts.do(t, http.MethodGet, "/api/adoptions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodDelete, "/api/adoptions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodGet, "/api/adoptions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateApplicationValidatesInput(t *testing.T) {
	ts := newTestServer(t)
	body := applicationBody("Ada", "Rex")
	body["email"] = "not-an-email"
	body["hasYard"] = "maybe"

	code, env := ts.do(t, http.MethodPost, "/api/adoptions", body)
	assert.Equal(t, http.StatusBadRequest, code)
	fields := []string{}
	for _, e := range env.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"email", "hasYard"}, fields)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	_, _ = ts.do(t, http.MethodGet, "/api/health", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
