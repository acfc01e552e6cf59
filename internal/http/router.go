// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Role-gated route groups that mirror the moderation workflow
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/cultivarhq/go-moderation-backend/docs"
	"github.com/cultivarhq/go-moderation-backend/internal/config"
	"github.com/cultivarhq/go-moderation-backend/internal/http/handlers"
	"github.com/cultivarhq/go-moderation-backend/internal/http/middleware"
	"github.com/cultivarhq/go-moderation-backend/internal/repo"
	"github.com/cultivarhq/go-moderation-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter + gzip
//  6. Metrics
//  7. Authentication (identity before idempotency and rate keys)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ledger *services.AuditLedger, rdb *redis.Client, submitter services.Submitter, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint. Liveness is registered here
	// too, ahead of authentication, so probes and scrapers need no token.
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// 7) Bearer-token authentication (demo header fallback without a secret)
	r.Use(middleware.Authenticate(cfg.JWTSecret))

	// 8) Idempotency validation (before rate limiting). Replays are detected
	// against the audit ledger: a stored event under the same key from the
	// same actor means the operation already completed.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, targetID, key string, now time.Time) (bool, error) {
			ev, err := repo.GetEventByIdempotencyKey(ctx, db, key)
			if err != nil || ev == nil {
				return false, nil
			}
			return ev.ActorID == userID, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Swagger UI (off by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/ledger
	reportSvc := services.NewReportService(db, ledger, cfg.SLA, cfg.Moderation)
	modSvc := services.NewModerationService(db, ledger, cfg.Moderation)
	execSvc := services.NewExecutionService(db, ledger, rdb)
	appealSvc := services.NewAppealService(db, ledger, cfg.Moderation)
	slaSvc := services.NewSlaService(db, ledger)
	compSvc := services.NewComplianceService(db)
	notifySvc := services.NewNotificationService(db)
	exportSvc := services.NewExportService(db, submitter, cfg.Transparency)

	h := handlers.New(reportSvc, modSvc, execSvc, appealSvc, ledger, slaSvc, compSvc, notifySvc, exportSvc)

	// Public API, grouped by minimum role
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Any authenticated caller
		api.POST("/reports", h.SubmitReport)
		api.GET("/reports/:id", h.GetReport)
		api.GET("/appeals/:id", h.GetAppeal)
		api.POST("/decisions/:id/appeals", h.FileAppeal)
		api.POST("/appeals/:id/escalate", h.EscalateAppeal)
		api.GET("/ods-bodies", h.ListOdsBodies)

		// Moderators
		mod := api.Group("", middleware.RequireRole(middleware.RoleModerator))
		{
			mod.GET("/reports", h.ListReports)
			mod.GET("/queue", h.ReviewQueue)
			mod.POST("/reports/:id/claim", h.ClaimReport)
			mod.DELETE("/reports/:id/claim", h.ReleaseClaim)
			mod.POST("/reports/:id/decision", h.RecordDecision)
			mod.GET("/decisions/:id", h.GetDecision)
			mod.POST("/decisions/:id/execute", h.ExecuteDecision)
			mod.GET("/decisions/:id/execution", h.GetExecution)
			mod.GET("/statements/:id", h.GetStatement)
			mod.POST("/appeals/:id/review", h.ReviewAppeal)
			mod.POST("/appeals/:id/resolve", h.ResolveAppeal)
		}

		// Supervisors
		sup := api.Group("", middleware.RequireRole(middleware.RoleSupervisor))
		{
			sup.POST("/decisions/:id/approve", h.ApproveDecision)
			sup.GET("/sla/alerts", h.ListSlaAlerts)
			sup.POST("/sla/alerts/:id/ack", h.AckSlaAlert)
			sup.GET("/sla/incidents", h.ListSlaIncidents)
			sup.POST("/sla/incidents/:id/close", h.CloseSlaIncident)
			sup.GET("/compliance/nearing-breach", h.NearingBreach)
			sup.GET("/compliance/daily", h.DailyCompliance)
			sup.GET("/audit/events", h.AuditHistory)
			sup.GET("/audit/events/:id/verify", h.VerifyEvent)
			sup.GET("/audit/partitions/:id", h.GetPartition)
		}

		// Admins
		adm := api.Group("", middleware.RequireRole(middleware.RoleAdmin))
		{
			adm.POST("/appeals/:id/ods-outcome", h.RecordOdsOutcome)
			adm.POST("/audit/partitions/:id/seal", h.SealPartition)
			adm.POST("/audit/keys/rotate", h.RotateKey)
			adm.GET("/notifications/due", h.DueNotifications)
			adm.POST("/notifications/:id/delivered", h.NotificationDelivered)
			adm.POST("/notifications/:id/failed", h.NotificationFailed)
			adm.GET("/exports/dead-letters", h.ExportDeadLetters)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
