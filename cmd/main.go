package main

import (
	"fmt"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/internal/router"
	"julianmorley.ca/con-plar/petstore/pkg/adoption"
	"julianmorley.ca/con-plar/petstore/pkg/cart"
	"julianmorley.ca/con-plar/petstore/pkg/checkout"
	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/mongo"
	"julianmorley.ca/con-plar/petstore/pkg/orderapi"
	"julianmorley.ca/con-plar/petstore/pkg/redis"
	"julianmorley.ca/con-plar/petstore/pkg/store"
	"julianmorley.ca/con-plar/petstore/pkg/wishlist"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using process environment")
	}

	cfg := global.LoadConfig()
	log.SetFormatter(&log.JSONFormatter{})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	s, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer s.Close()

	ctx, cancel := global.GetDefaultTimer()
	defer cancel()

	userID, err := store.UserID(ctx, s)
	if err != nil {
		log.WithError(err).Fatal("Failed to load session id")
	}

	orders := orderapi.New(orderapi.Config{
		BaseURL: cfg.OrderAPIURL,
		Timeout: cfg.OrderAPITimeout,
		Service: "storefront",
	})
	c := cart.New(ctx, s)

	h := &router.Handler{
		Store:     s,
		UserID:    userID,
		Cart:      c,
		Wishlist:  wishlist.New(ctx, s),
		Checkout:  checkout.New(c, orders, userID),
		Adoptions: adoption.NewRegistry(s),
		Orders:    orders,
	}

	engine := router.InitEngine(cfg)
	router.InitializeRoutes(engine, h)

	log.WithFields(log.Fields{
		"port":      cfg.Port,
		"store":     cfg.StoreBackend,
		"order_api": cfg.OrderAPIURL,
		"user_id":   userID,
	}).Info("Server is running")

	if err := engine.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Failed to run server")
	}
}

func openStore(cfg global.Config) (store.Backend, error) {
	ctx, cancel := global.GetDefaultTimer()
	defer cancel()

	switch cfg.StoreBackend {
	case global.StoreBackendMemory:
		return store.NewMemory(), nil
	case global.StoreBackendRedis:
		return redis.Open(ctx, cfg)
	case global.StoreBackendMongo:
		return mongo.Open(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
