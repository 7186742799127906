package handler

import (
	"github.com/leuf-systems/nexus/internal/adapter/http/middleware"
	redisStore "github.com/leuf-systems/nexus/internal/adapter/storage/redis"
	"github.com/leuf-systems/nexus/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ConnectionSvc  ports.ConnectionService
	LedgerSvc      ports.LedgerService
	InitiationSvc  ports.InitiationService
	SchedulerSvc   ports.SchedulerService
	TaskRepo       ports.ScheduledTaskRepository
	APIUserRepo    ports.APIUserRepository
	HashSvc        ports.HashService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService        // nil = audit logging disabled
	Notifier       ports.TransactionNotifier // nil = transactions endpoint never long-polls
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
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

	// Every /api/v1 route is authenticated by HTTP Basic; routes marked
	// superuser-only additionally require RequireSuperuser.
	basicAuth := middleware.BasicAuth(deps.APIUserRepo, deps.HashSvc, deps.Logger)
	superuser := middleware.RequireSuperuser()

	v1 := r.Group("/api/v1", basicAuth)

	connHandler := NewConnectionHandler(deps.ConnectionSvc)
	connections := v1.Group("/bank-connections", superuser)
	{
		connections.POST("", rl("connections"), connHandler.Create)
		connections.POST("/:n/connect", rl("connections"), connHandler.Connect)
		connections.POST("/:n/fetch-accounts", rl("connections"), connHandler.FetchAccounts)
		connections.POST("/:n/import-account", rl("connections"), connHandler.ImportAccount)
		connections.POST("/:n/confirm-bank-keys", rl("connections"), connHandler.ConfirmKeys)
	}

	initHandler := NewInitiationHandler(deps.InitiationSvc)
	txHandler := NewTransactionHandler(deps.LedgerSvc, deps.Notifier)
	scheduleHandler := NewScheduleHandler(deps.TaskRepo, deps.SchedulerSvc)

	accounts := v1.Group("/bank-accounts")
	{
		accounts.POST("/:a/payment-initiations", rl("initiations"), initHandler.Create)
		accounts.GET("/:a/payment-initiations/:uuid", rl("initiations"), initHandler.Get)
		accounts.POST("/:a/payment-initiations/:uuid/submit", superuser, rl("submit"), initHandler.Submit)
		accounts.POST("/:a/submit-all-payment-initiations", superuser, rl("submit"), initHandler.SubmitAll)
		accounts.POST("/:a/fetch-transactions", superuser, rl("fetch"), txHandler.FetchTransactions)
		accounts.GET("/:a/transactions", rl("transactions"), txHandler.ListTransactions)
		accounts.POST("/:a/schedule", superuser, rl("schedule"), scheduleHandler.Create)
	}

	return r
}
