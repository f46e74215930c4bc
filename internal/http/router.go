// Package httpapi wires the HTTP transport (Gin) to the poll service, the
// realtime channel and the shared middleware stack.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID, AccessLog, Recovery
//  3. Body size limit
//  4. Metrics
//  5. Idempotency validator (before the rate limiter so replays bypass it)
//  6. Global per-IP rate limiter
//  7. CORS and security headers
//  8. Gzip (never on the WebSocket upgrade)
//
// The vote endpoint additionally carries the per-address vote guard.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-live-polls/docs"
	"github.com/tbourn/go-live-polls/internal/config"
	"github.com/tbourn/go-live-polls/internal/http/handlers"
	"github.com/tbourn/go-live-polls/internal/http/middleware"
	"github.com/tbourn/go-live-polls/internal/services"
)

// Paths outside the API base path.
const (
	PathHealth  = "/health"
	PathMetrics = "/metrics"
	PathWS      = "/ws"
)

// maxBodyBytes caps JSON request bodies; poll payloads are a few KiB at most.
const maxBodyBytes = 64 << 10

// Deps are the collaborators mounted by RegisterRoutes.
type Deps struct {
	Polls *services.PollService
	// Realtime serves the WebSocket channel; nil leaves /ws unmounted.
	Realtime http.Handler
	// VoteLimiter guards POST /polls/:id/vote; nil disables the guard.
	VoteLimiter middleware.Limiter
}

// RegisterRoutes attaches all middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	// ClientIP keys the limiters and the stored address hash, so forwarding
	// headers count only when the peer is a configured proxy.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Warn().Err(err).Strs("proxies", cfg.TrustedProxies).Msg("invalid trusted proxies; trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.RedactOptions{MaskHeaders: []string{middleware.HeaderIdempotencyKey}}))
	r.Use(middleware.Recovery())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET(PathMetrics, gin.WrapH(promhttp.Handler()))

	createPath := joinPath(apiBase, "/polls")
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			ScopeFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == createPath {
					return services.ScopeCreatePoll
				}
				return ""
			},
		},
		deps.Polls.HasIdempotentResult,
	))
	r.Use(middleware.RateLimiter(cfg.RateRPS, cfg.RateBurst))

	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CacheControl: "no-cache",
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{PathWS, PathMetrics})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})
	})

	if deps.Realtime != nil {
		r.GET(PathWS, gin.WrapH(deps.Realtime))
	}

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	voteChain := []gin.HandlerFunc{}
	if deps.VoteLimiter != nil {
		voteChain = append(voteChain, middleware.Limit(deps.VoteLimiter, middleware.LimitOptions{
			Scope:   "vote",
			Code:    handlers.ErrCodeRateLimited,
			Message: handlers.MsgVoteRateLimit,
		}))
	}

	h := handlers.New(deps.Polls)
	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/polls", h.CreatePoll)
		api.GET("/polls/user", h.ListUserPolls)
		api.GET("/polls/:id", h.GetPoll)
		api.POST("/polls/:id/vote", append(voteChain, h.Vote)...)
		api.DELETE("/polls/:id", h.DeletePoll)
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.HeaderIdempotencyKey, middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID, "ETag", "Retry-After", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
