// Command server runs the live polls API: REST endpoints under the API base
// path, the realtime WebSocket channel on /ws, Prometheus metrics and,
// optionally, Swagger UI.
//
// @title       Live Polls API
// @version     1.0
// @description Create polls, vote once per voter token, and follow live tallies over WebSocket (/ws).
// @BasePath    /api
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-live-polls/internal/cache"
	"github.com/tbourn/go-live-polls/internal/config"
	httpapi "github.com/tbourn/go-live-polls/internal/http"
	"github.com/tbourn/go-live-polls/internal/http/middleware"
	"github.com/tbourn/go-live-polls/internal/identity"
	"github.com/tbourn/go-live-polls/internal/observability"
	"github.com/tbourn/go-live-polls/internal/realtime"
	"github.com/tbourn/go-live-polls/internal/repo"
	"github.com/tbourn/go-live-polls/internal/services"
	"github.com/tbourn/go-live-polls/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = 15 * time.Minute
	limiterGC       = time.Minute
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	log := sysutil.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	secret, err := identity.LoadSecret(cfg.Vote.IPHashSecret)
	if err != nil {
		return err
	}
	if secret.Ephemeral() {
		log.Warn().Msg("IP_HASH_SECRET not set; client address hashes will change on restart")
	}

	db, err := repo.Open(repo.Options{
		Driver:      cfg.DB.Driver,
		SQLitePath:  cfg.DB.Path,
		PostgresDSN: cfg.DB.URL,
		Tracing:     cfg.OTEL.Enabled,
	})
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("vote ledger ready")

	svc := services.NewPollService(db, identity.NewHasher(secret), nil)
	svc.IdempotencyTTL = cfg.IdempotencyTTL

	hub := realtime.NewHub(svc, realtime.Options{
		MaxTopicsPerConn: cfg.Realtime.MaxRoomsPerConn,
		SendBuffer:       cfg.Realtime.SendBuffer,
		Log:              log.With().Str("component", "realtime").Logger(),
	})
	svc.Publisher = hub

	g, gctx := errgroup.WithContext(ctx)

	voteLimiter, err := newVoteLimiter(gctx, g, cfg, log)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, httpapi.Deps{
		Polls: svc,
		Realtime: realtime.NewHandler(hub, realtime.HandlerOptions{
			AllowedOrigins: cfg.Realtime.AllowedOrigins,
			WriteTimeout:   cfg.Realtime.WriteTimeout,
			PingInterval:   cfg.Realtime.PingInterval,
		}),
		VoteLimiter: voteLimiter,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		purgeIdempotency(gctx, db, log)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		// Hijacked WebSocket connections are not tracked by Shutdown.
		hub.Close()
		return err
	})

	return g.Wait()
}

// newVoteLimiter returns the Redis-backed guard when REDIS_URL is set so the
// budget is shared by all replicas; otherwise an in-process limiter whose
// idle entries are swept in the background.
func newVoteLimiter(ctx context.Context, g *errgroup.Group, cfg config.Config, log zerolog.Logger) (middleware.Limiter, error) {
	rc, err := cache.Open(ctx, cfg.Vote.RedisURL)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		g.Go(func() error {
			<-ctx.Done()
			return rc.Close()
		})
		log.Info().Int("per_minute", cfg.Vote.RatePerMinute).Msg("vote limiter: redis")
		return middleware.NewRedisLimiter(rc, cfg.Vote.RatePerMinute, time.Minute), nil
	}

	ml := middleware.NewMemoryLimiter(cfg.Vote.RatePerMinute, time.Minute)
	g.Go(func() error {
		ml.RunGC(ctx, limiterGC)
		return nil
	})
	log.Info().Int("per_minute", cfg.Vote.RatePerMinute).Msg("vote limiter: memory")
	return ml, nil
}

func purgeIdempotency(ctx context.Context, db *gorm.DB, log zerolog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged idempotency keys")
			}
		}
	}
}
