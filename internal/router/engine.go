package router

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/metrics"
)

const serviceName = "storefront"

var registerTagNames sync.Once

func InitEngine(cfg global.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Report binding failures by JSON field name.
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(), metrics.PrometheusMiddleware(serviceName))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	return engine
}

func InitializeRoutes(engine *gin.Engine, h *Handler) {
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		cart := api.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.POST("/items", h.AddToCart)
			cart.PUT("/items/:id", h.UpdateCartItem)
			cart.DELETE("/items/:id", h.RemoveFromCart)
		}

		wishlist := api.Group("/wishlist")
		{
			wishlist.GET("", h.GetWishlist)
			wishlist.POST("/toggle", h.ToggleWishlist)
			wishlist.DELETE("/:id", h.RemoveFromWishlist)
			wishlist.POST("/:id/move-to-cart", h.MoveWishlistItemToCart)
		}

		checkout := api.Group("/checkout")
		{
			checkout.GET("", h.GetCheckout)
			checkout.PUT("/form", h.UpdateCheckoutForm)
			checkout.POST("/submit", h.SubmitCheckout)
			checkout.POST("/reset", h.ResetCheckout)
		}

		adoptions := api.Group("/adoptions")
		{
			adoptions.GET("", ApplicationListMiddleware(), h.GetAllApplications)
			adoptions.POST("", h.CreateApplication)
			adoptions.GET("/:id", h.GetApplication)
			adoptions.PATCH("/:id", h.UpdateApplication)
			adoptions.DELETE("/:id", h.DeleteApplication)
		}

		orders := api.Group("/orders")
		{
			orders.GET("", h.GetOrders)
			orders.GET("/:orderNumber", OrderNumberMiddleware(), h.GetOrderByNumber)
			orders.PATCH("/:orderNumber/status", OrderNumberMiddleware(), h.UpdateOrderStatus)
		}
	}
}
