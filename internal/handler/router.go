package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/freshmart/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	ClientCookie      middleware.ClientCookieConfig
	CSRF              middleware.CSRFConfig

	// クライアント状態とカタログ
	States           StateOpener
	Catalog          CatalogReader
	CatalogRefresher CatalogRefresher

	// 運用
	HealthChecker  Pinger
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → ClientID → CSRF → RateLimit(General)
//
// /health と /metrics はクライアントIDを発行しないようチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	catalogHandler := NewCatalogHandler(deps.Catalog, deps.CatalogRefresher, deps.States, logger)
	sessionHandler := NewSessionHandler(deps.States, logger)
	cartHandler := NewCartHandler(deps.States, logger)
	orderHandler := NewOrderHandler(deps.States, logger)
	wishlistHandler := NewWishlistHandler(deps.States, logger)
	adminHandler := NewAdminHandler(deps.States, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewClientIDMiddleware(deps.ClientCookie))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// カタログ
		r.Get("/catalog", catalogHandler.List)
		r.Post("/catalog/refresh", catalogHandler.Refresh)
		r.Get("/categories", catalogHandler.Categories)

		// セッション
		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
			r.Post("/logout", sessionHandler.Logout)
		})

		// カート
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Get("/server", cartHandler.Server)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{productID}", cartHandler.ChangeQuantity)
		})

		// POST /api/checkout - チェックアウト専用のレート制限を追加
		r.With(deps.RateLimiter.CheckoutMiddleware()).Post("/checkout", orderHandler.Checkout)

		// 注文
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Get("/{id}/qr-code", orderHandler.QRCode)
			r.Get("/{id}/qr-code/image", orderHandler.QRImage)
		})

		r.Post("/wishlist", wishlistHandler.Add)

		// 管理
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", adminHandler.Stats)
			r.Put("/products/{id}/price", adminHandler.UpdatePrice)
			r.Post("/price-preview", adminHandler.PricePreview)
		})
	})

	return r
}
