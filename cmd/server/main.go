package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/smstore/backend/internal/auth"
	"github.com/smstore/backend/internal/cache"
	"github.com/smstore/backend/internal/chat"
	"github.com/smstore/backend/internal/config"
	"github.com/smstore/backend/internal/database"
	"github.com/smstore/backend/internal/handler"
	"github.com/smstore/backend/internal/middleware"
	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/obs"
	"github.com/smstore/backend/internal/payment"
	"github.com/smstore/backend/internal/repository"
	"github.com/smstore/backend/internal/router"
	"github.com/smstore/backend/internal/service"
	"github.com/smstore/backend/internal/settlement"
	"github.com/smstore/backend/internal/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	obs.Init()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis is optional: without it the rate limiter disables itself and
	// the cache falls back to its in-process backend.
	rdb := config.NewRedisClient()
	var store cache.Cache
	if rdb != nil {
		store = cache.NewRedis(rdb)
	} else {
		log.Printf("redis unavailable, using in-memory cache")
		store = cache.NewMemory()
	}

	users := repository.NewUserRepo(db)
	credentials := repository.NewCredentialRepo(db)
	orders := repository.NewOrderRepo(db)

	authority := auth.NewAuthority(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), credentials, users)

	hub := ws.NewHub()
	publisher := service.NewQueuePublisher()
	machine := settlement.NewMachine(orders, hub, publisher)

	stripe := payment.NewStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.APIBase)
	paypal := payment.NewPayPalClient(cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.WebhookID, cfg.PayPal.APIBase)

	chatSvc := chat.NewService(store, cfg.OpenRouter.APIKey, cfg.OpenRouter.Model,
		cfg.OpenRouter.APIURL, cfg.OpenRouter.HistoryTTL, cfg.OpenRouter.MaxTokens)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowCredentials: true,
	}))
	e.Use(echomw.Secure())
	e.Use(obs.Middleware())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.Register(e, router.Deps{
		Auth:   handler.NewAuthHandler(cfg, users, authority),
		Orders: handler.NewOrderHandler(orders, machine, map[model.PaymentMethod]payment.Initiator{
			model.PaymentMethodStripe: stripe,
			model.PaymentMethodPayPal: paypal,
		}),
		Webhooks: handler.NewWebhookHandler(stripe, paypal, machine),
		Socket:   handler.NewSocketHandler(authority, hub, cfg.FrontendURL),
		Chat:     handler.NewChatHandler(chatSvc),
		Verifier: authority,
		Redis:    rdb,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
