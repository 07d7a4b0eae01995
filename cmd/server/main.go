package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"studio_backend/internal/app/di"
	"studio_backend/internal/app/router"
	accountadapters "studio_backend/internal/feature/account/adapters"
	accountentity "studio_backend/internal/feature/account/domain/entity"
	accounthandler "studio_backend/internal/feature/account/transport/handler"
	accountusecase "studio_backend/internal/feature/account/usecase"
	generationhandler "studio_backend/internal/feature/generation/transport/handler"
	generationusecase "studio_backend/internal/feature/generation/usecase"
	"studio_backend/internal/platform/config"
	infradb "studio_backend/internal/platform/db"
	"studio_backend/internal/platform/http/handler"
	jwtmw "studio_backend/internal/platform/jwt"
	"studio_backend/internal/platform/kv"
	"studio_backend/internal/platform/logger"
	"studio_backend/internal/platform/metrics"
	infraredis "studio_backend/internal/platform/redis"
	"studio_backend/internal/shared/ratelimiter"
)

const (
	shutdownTimeout = 15 * time.Second

	// purgeInterval は期限切れのkvエントリ（セッション）を削除する間隔です。
	purgeInterval = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.App.LogLevel, cfg.App.LogFormat))
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	// db
	var gdb *gorm.DB
	if cfg.App.StoreBackend == config.StoreBackendSQL {
		gdb, err = infradb.Open(infradb.Config{
			Driver:         cfg.DB.Driver,
			Host:           cfg.DB.Host,
			Port:           cfg.DB.Port,
			User:           cfg.DB.User,
			Password:       cfg.DB.Password,
			Name:           cfg.DB.Name,
			SSLMode:        cfg.DB.SSLMode,
			SQLitePath:     cfg.DB.SQLitePath,
			ConnectTimeout: cfg.DB.ConnectTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		sqlDB, dbErr := gdb.DB()
		if dbErr != nil {
			return dbErr
		}
		defer func() { err = multierr.Append(err, sqlDB.Close()) }()
		if err := kv.Migrate(gdb); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		checks["store"] = sqlDB.PingContext
	}

	// Redis
	var rdb *redisv9.Client
	if cfg.Redis.Addr != "" {
		rdb, err = infraredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			if cfg.App.StoreBackend == config.StoreBackendRedis {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			slog.Warn("Redis unavailable. Running without cache.", "error", err)
			rdb = nil
		} else {
			defer func() { err = multierr.Append(err, rdb.Close()) }()
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	store, err := di.NewStore(cfg.App.StoreBackend, gdb, rdb, cfg.Redis.PlansCacheTTL)
	if err != nil {
		return err
	}

	// Usecase
	accountUC := accountusecase.NewAccountUsecase(
		accountadapters.NewUserKV(store),
		accountadapters.NewSessionKV(store, cfg.JWT.Expiration),
		accountadapters.NewHistoryKV(store),
		accountadapters.NewPlanKV(store),
	)
	if err := accountUC.Seed(ctx, accountentity.AdminSeed{Email: cfg.Admin.Email, Password: cfg.Admin.Password}); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	generator, err := di.NewImageGenerator(ctx, cfg.Gemini)
	if err != nil {
		return err
	}
	images, err := di.NewImageStore(ctx, cfg.ImageStore)
	if err != nil {
		return err
	}
	generationUC := generationusecase.NewGenerationUsecase(
		accountUC,
		generator,
		images,
		ratelimiter.NewRateLimiter(cfg.Gemini.RateLimit, time.Minute),
		metrics.NewGenerationMetrics(reg),
		cfg.Gemini.GenerationTimeout,
	)

	// Handler
	handlers := router.Handlers{
		Account:    accounthandler.NewAccountHandler(accountUC, jwtmw.NewGenerator(cfg.JWT.Secret, cfg.JWT.Expiration)),
		Generation: generationhandler.NewGenerationHandler(generationUC),
	}

	// ルータ生成
	r := router.NewRouter(handlers, router.Options{
		JWTSecret:    cfg.JWT.Secret,
		Production:   cfg.App.IsProduction(),
		CORSOrigins:  cfg.App.CORSOrigins,
		HealthChecks: checks,
		Gatherer:     reg,
	})

	srv := &http.Server{
		Addr:              cfg.App.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// 生成リクエストはベンダー呼び出しを待つ
		WriteTimeout: cfg.Gemini.GenerationTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.App.Addr, "store", cfg.App.StoreBackend, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if gdb != nil {
		g.Go(func() error {
			purgeExpired(gctx, gdb)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// purgeExpired は ctx が終了するまで期限切れのkvエントリを定期的に削除します。
// Redis はTTLで自動的に削除するのでSQLバックエンドだけが対象です。
func purgeExpired(ctx context.Context, db *gorm.DB) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := kv.PurgeExpired(ctx, db, now)
			if err != nil {
				slog.Warn("failed to purge expired entries", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired entries", "count", n)
			}
		}
	}
}
