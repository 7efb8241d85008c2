package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/keygate/internal/digest"
	"github.com/jmerrifield20/keygate/internal/handler"
	"github.com/jmerrifield20/keygate/internal/issuance"
	"github.com/jmerrifield20/keygate/internal/keygen"
	"github.com/jmerrifield20/keygate/internal/ledger"
	"github.com/jmerrifield20/keygate/internal/oracle"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("keygate exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	cfg, found, err := loadConfig(newViper())
	if err != nil {
		return err
	}
	if !found {
		logger.Warn("no config file found, using defaults and env vars")
	}
	for _, name := range cfg.insecureDefaults() {
		logger.Warn("insecure default in use; override before deploying", zap.String("setting", name))
	}

	// ── Issuance Ledger ──────────────────────────────────────────────────────
	store, closeStore, err := openLedger(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── Wire up layers ───────────────────────────────────────────────────────
	verifier := oracle.New(oracle.Config{
		BaseURL: cfg.VerificationBaseURL,
		Token:   cfg.VerificationToken,
		Timeout: cfg.VerificationTimeout,
	}, logger)
	verifier.SetMetricsRecord(handler.RecordOracleCheck)

	svc := issuance.NewService(store, verifier, keygen.New(), digest.NewHasher(cfg.KeySalt), logger)
	svc.SetMetricsRecord(handler.RecordIssuance)

	keyHandler := handler.NewKeyHandler(svc, cfg.AdminKey, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(handler.SecurityHeaders())
	router.Use(handler.PrometheusMiddleware())
	router.Use(handler.RequestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())
	keyHandler.Register(router)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("keygate HTTP listening",
			zap.Int("port", cfg.Port),
			zap.String("ledger", cfg.LedgerBackend),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down keygate...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("keygate stopped")
	return nil
}

// openLedger constructs the configured ledger backend. The returned func
// releases its connections and must be called on shutdown.
func openLedger(ctx context.Context, cfg config, logger *zap.Logger) (ledger.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case "postgres":
		db, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("issuance ledger: postgres")
		return ledger.NewPostgres(db, logger), db.Close, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		logger.Info("issuance ledger: redis", zap.String("addr", opts.Addr))
		return ledger.NewRedis(client), func() { client.Close() }, nil //nolint:errcheck

	default:
		logger.Warn("issuance ledger: memory — records are lost on restart")
		return ledger.NewMemory(), func() {}, nil
	}
}

// corsConfig allows cross-origin GETs, so a dashboard can read /admin.
// Credentials are never allowed; the admin key travels in the query string.
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if containsWildcard(origins) {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
