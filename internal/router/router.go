// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/smstore/backend/internal/config"
	"github.com/smstore/backend/internal/handler"
	"github.com/smstore/backend/internal/middleware"
	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/obs"
)

// Deps carries every handler and shared collaborator the routes need.
// Everything is constructed in cmd/server and passed down explicitly.
type Deps struct {
	Auth     *handler.AuthHandler
	Orders   *handler.OrderHandler
	Webhooks *handler.WebhookHandler
	Socket   *handler.SocketHandler
	Chat     *handler.ChatHandler
	Verifier middleware.ClaimVerifier
	Redis    *redis.Client
}

// Register wires all routes onto the Echo instance.
//
// Webhooks live outside /api and skip authentication: their caller is a
// payment processor, authenticated by signature at the handler boundary.
// Everything under /api except the auth endpoints requires a valid claim.
func Register(e *echo.Echo, d Deps) {
	e.GET("/health", handler.Health)
	e.GET("/metrics", echo.WrapHandler(obs.Handler()))

	wh := e.Group("/payments/webhook")
	wh.POST("/stripe", d.Webhooks.StripeWebhook)
	wh.POST("/paypal", d.Webhooks.PayPalWebhook)

	// Push-channel handshake. Authentication happens inside the handler
	// because the token may arrive via query parameter during the upgrade.
	e.GET("/ws", d.Socket.Serve)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.NewTokenBucket(config.LoadAuthRateLimit(), d.Redis))
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)
	authGroup.POST("/logout", d.Auth.Logout)
	authGroup.GET("/me", d.Auth.Me, middleware.Authenticate(d.Verifier))

	orders := api.Group("/orders")
	orders.Use(middleware.Authenticate(d.Verifier))
	orders.Use(middleware.NewTokenBucket(config.LoadOrderRateLimit(), d.Redis))
	orders.POST("", d.Orders.Create, middleware.RequirePermission(model.PermOrdersCreate))
	orders.GET("", d.Orders.List, middleware.RequirePermission(model.PermOrdersRead))
	orders.GET("/:id", d.Orders.Get, middleware.RequirePermission(model.PermOrdersRead))
	orders.PATCH("/:id/status", d.Orders.UpdateStatus,
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin))
	orders.DELETE("/:id", d.Orders.Delete,
		middleware.RequireRole(model.RoleSuperAdmin))

	chatbot := api.Group("/chatbot")
	chatbot.Use(middleware.Authenticate(d.Verifier))
	chatbot.Use(middleware.NewTokenBucket(config.LoadChatbotRateLimit(), d.Redis))
	chatbot.POST("", d.Chat.Ask, middleware.RequirePermission(model.PermChatAccess))
}
