// Package router はHTTPルーティングを組み立てます。
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accounthandler "studio_backend/internal/feature/account/transport/handler"
	generationhandler "studio_backend/internal/feature/generation/transport/handler"
	"studio_backend/internal/platform/http/handler"
	jwtmw "studio_backend/internal/platform/jwt"
)

// Handlers はルーターに登録するフィーチャーのハンドラーです。
type Handlers struct {
	Account    *accounthandler.AccountHandler
	Generation *generationhandler.GenerationHandler
}

// Options はルーター全体に効く設定です。
type Options struct {
	JWTSecret    string
	Production   bool
	CORSOrigins  []string
	HealthChecks map[string]handler.Check

	// Gatherer が nil の場合は prometheus.DefaultGatherer を使用します。
	Gatherer prometheus.Gatherer
}

func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), secureHeaders(opts.Production), corsMiddleware(opts.CORSOrigins))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// 認証不要
	// 導通確認用
	health := handler.Health(opts.HealthChecks)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	// 新規ユーザー登録
	r.POST("/signup", h.Account.Signup)
	// ログイン（JWT 発行）
	r.POST("/login", h.Account.Login)
	r.GET("/plans", h.Account.Plans)

	// 認証必須のルート
	// → リクエストヘッダーに JWT が必要になる
	auth := r.Group("/")
	auth.Use(jwtmw.AuthRequired(opts.JWTSecret))
	{
		auth.POST("/logout", h.Account.Logout)
		auth.GET("/me", h.Account.Me)
		auth.GET("/history", h.Account.History)
		auth.POST("/credits/purchase", h.Account.PurchasePlan)
		auth.POST("/generate", h.Generation.Generate)
	}

	// 管理者のみ
	admin := auth.Group("/admin")
	admin.Use(h.Account.RequireAdmin)
	{
		admin.GET("/users", h.Account.ListUsers)
		admin.PUT("/users/:id/credits", h.Account.SetCredits)
		admin.GET("/stats", h.Account.Stats)
		admin.PUT("/plans/:id", h.Account.SavePlan)
	}

	return r
}
