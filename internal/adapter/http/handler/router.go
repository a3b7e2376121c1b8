package handler

import (
	"qr-payment-ledger/internal/adapter/http/middleware"
	"qr-payment-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	RedemptionSvc  ports.RedemptionService
	Ledger         ports.Ledger
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Mode           string             // gin mode; empty = release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(middleware.DefaultMaxBodyBytes))
	r.Use(middleware.RequireJSON())

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check: storage backends plus ledger integrity
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// Every API route requires a bearer token; its subject is the caller
	// recorded on redemptions and audit entries.
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	v1.POST("/payments", rl("issue"), paymentHandler.IssuePayment)

	redemptionHandler := NewRedemptionHandler(deps.RedemptionSvc)
	v1.POST("/redemptions", rl("redeem"), redemptionHandler.Redeem)
	v1.POST("/codes/inspect", rl("inspect"), redemptionHandler.Inspect)

	chainHandler := NewChainHandler(deps.Ledger)
	chain := v1.Group("/chain")
	{
		chain.GET("", rl("chain"), chainHandler.ListBlocks)
		chain.POST("/validate", rl("audit"), chainHandler.Validate)
		chain.GET("/blocks/:index", rl("chain"), chainHandler.GetBlock)
		chain.GET("/references/:ref", rl("chain"), chainHandler.GetByReference)
	}

	return r
}
