package router

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/adoption"
	"julianmorley.ca/con-plar/petstore/pkg/cart"
	"julianmorley.ca/con-plar/petstore/pkg/checkout"
	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/models"
	"julianmorley.ca/con-plar/petstore/pkg/store"
	"julianmorley.ca/con-plar/petstore/pkg/wishlist"
)

// OrderService is the read and status side of the order API.
type OrderService interface {
	GetOrder(ctx context.Context, orderNumber int) (*models.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderNumber int, status string) error
}

// Handler serves one storefront session.
type Handler struct {
	Store     store.Store
	UserID    string
	Cart      *cart.Cart
	Wishlist  *wishlist.Wishlist
	Checkout  *checkout.Orchestrator
	Adoptions *adoption.Registry
	Orders    OrderService
}

func (h *Handler) HealthCheck(c *gin.Context) {
	status := map[string]string{"status": "OK", "store": "Connected"}
	if breaker, ok := h.Orders.(interface{ CircuitState() string }); ok {
		status["order_api_circuit"] = breaker.CircuitState()
	}

	if _, _, err := h.Store.Get(c.Request.Context(), store.KeyUserID); err != nil {
		log.WithError(err).Error("Store health check failed")
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Store connection failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(status))
}

// Cart

func (h *Handler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(h.Cart.Summary()))
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid product", bindingErrors(err)))
		return
	}
	if err := req.Product.Validate(); err != nil {
		respondError(c, err, "Invalid product")
		return
	}

	err := h.Cart.AddToCart(c.Request.Context(), req.Product)
	respondMutation(c, http.StatusOK, h.Cart.Summary(), err)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid JSON format", bindingErrors(err)))
		return
	}

	err := h.Cart.UpdateQuantity(c.Request.Context(), c.Param("id"), req.Quantity)
	respondMutation(c, http.StatusOK, h.Cart.Summary(), err)
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	err := h.Cart.RemoveFromCart(c.Request.Context(), c.Param("id"))
	respondMutation(c, http.StatusOK, h.Cart.Summary(), err)
}

// Wishlist

func (h *Handler) GetWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(h.Wishlist.Items()))
}

func (h *Handler) ToggleWishlist(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid product", bindingErrors(err)))
		return
	}
	if err := product.Validate(); err != nil {
		respondError(c, err, "Invalid product")
		return
	}

	present, err := h.Wishlist.Toggle(c.Request.Context(), product)
	respondMutation(c, http.StatusOK, map[string]interface{}{
		"in_wishlist": present,
		"items":       h.Wishlist.Items(),
	}, err)
}

func (h *Handler) RemoveFromWishlist(c *gin.Context) {
	err := h.Wishlist.RemoveFromWishlist(c.Request.Context(), c.Param("id"))
	respondMutation(c, http.StatusOK, h.Wishlist.Items(), err)
}

func (h *Handler) MoveWishlistItemToCart(c *gin.Context) {
	err := h.Wishlist.MoveToCart(c.Request.Context(), c.Param("id"), h.Cart)
	respondMutation(c, http.StatusOK, map[string]interface{}{
		"wishlist": h.Wishlist.Items(),
		"cart":     h.Cart.Summary(),
	}, err)
}

// Checkout

func (h *Handler) GetCheckout(c *gin.Context) {
	c.JSON(http.StatusOK, global.SuccessResponse(h.Checkout.View()))
}

func (h *Handler) UpdateCheckoutForm(c *gin.Context) {
	var patch checkout.FormPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid JSON format", bindingErrors(err)))
		return
	}
	if err := h.Checkout.UpdateForm(patch); err != nil {
		respondError(c, err, "Could not update checkout form")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(h.Checkout.View()))
}

func (h *Handler) SubmitCheckout(c *gin.Context) {
	result, err := h.Checkout.Submit(c.Request.Context())
	if err != nil {
		fallback := h.Checkout.Message()
		if fallback == "" {
			fallback = "Checkout failed"
		}
		respondError(c, err, fallback)
		return
	}

	resp := global.SuccessResponse(result)
	if len(result.Unremoved) > 0 {
		resp.Message = "Order placed, but some cart items could not be cleared"
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ResetCheckout(c *gin.Context) {
	if err := h.Checkout.Reset(); err != nil {
		respondError(c, err, "Could not reset checkout")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(h.Checkout.View()))
}

// Adoption applications

func (h *Handler) GetAllApplications(c *gin.Context) {
	q, _ := c.Get(ctxListQuery)
	query, _ := q.(adoption.Query)

	apps := adoption.Filter(h.Adoptions.GetAllApplications(c.Request.Context()), query)
	c.Header("X-Total-Count", strconv.Itoa(len(apps)))
	c.JSON(http.StatusOK, global.SuccessResponse(apps))
}

func (h *Handler) CreateApplication(c *gin.Context) {
	var input models.ApplicationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid application", bindingErrors(err)))
		return
	}

	app, err := h.Adoptions.SaveApplication(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "Failed to save application")
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(app))
}

func (h *Handler) GetApplication(c *gin.Context) {
	app, err := h.Adoptions.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load application")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(app))
}

type updateApplicationRequest struct {
	models.ApplicationPatch
	Note string `json:"note"`
}

func (h *Handler) UpdateApplication(c *gin.Context) {
	var req updateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid JSON format", bindingErrors(err)))
		return
	}

	app, err := h.Adoptions.UpdateApplication(c.Request.Context(), c.Param("id"), req.ApplicationPatch, req.Note)
	if err != nil {
		respondError(c, err, "Failed to update application")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(app))
}

func (h *Handler) DeleteApplication(c *gin.Context) {
	if err := h.Adoptions.DeleteApplication(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete application")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"id": c.Param("id")}))
}

// Orders

// GetOrders lists this session's orders, or every order with ?scope=all.
func (h *Handler) GetOrders(c *gin.Context) {
	var (
		orders []models.Order
		err    error
	)
	if c.Query("scope") == "all" {
		orders, err = h.Orders.GetAllOrders(c.Request.Context())
	} else {
		orders, err = h.Orders.GetOrdersByUser(c.Request.Context(), h.UserID)
	}
	if err != nil {
		respondError(c, err, "Failed to load orders")
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(orders)))
	c.JSON(http.StatusOK, global.SuccessResponse(orders))
}

func (h *Handler) GetOrderByNumber(c *gin.Context) {
	order, err := h.Orders.GetOrder(c.Request.Context(), c.GetInt(ctxOrderNumber))
	if err != nil {
		respondError(c, err, "Failed to load order")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid order status", bindingErrors(err)))
		return
	}

	n := c.GetInt(ctxOrderNumber)
	if req.Status == models.OrderStatusCancelled {
		order, err := h.Orders.GetOrder(c.Request.Context(), n)
		if err != nil {
			respondError(c, err, "Failed to load order")
			return
		}
		if !order.CanBeCancelled() {
			c.JSON(http.StatusConflict, global.ErrorResponse("Only orders still processing can be cancelled", []global.ValidationError{
				{Field: "status", Message: "Order is already " + order.Status, Code: "invalid_transition"},
			}))
			return
		}
	}
	if err := h.Orders.UpdateOrderStatus(c.Request.Context(), n, req.Status); err != nil {
		respondError(c, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]interface{}{
		"orderNumber": n,
		"status":      req.Status,
	}))
}
