package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kanban-board/api"
	"kanban-board/config"
	"kanban-board/remote"
	"kanban-board/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := log.New()
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rc *redis.Client
	if cfg.RedisConn != "" {
		opts, err := config.RedisOptions(cfg.RedisConn)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc = redis.NewClient(opts)
		defer rc.Close()
	}

	coll, err := openCollection(ctx, cfg, rc)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	if rc != nil && cfg.CacheTTL > 0 && cfg.Store != config.StoreRedis {
		coll = storage.NewCache(coll, rc, cfg.CacheTTL)
	}
	store := remote.NewMock(coll, append(cfg.Mock.Options(), remote.WithLogger(logger))...)

	var deduper api.Deduper
	if rc != nil {
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, remote.HeaderIdempotencyKey},
	}))
	api.Register(e, store, deduper, logger)

	logger.WithFields(log.Fields{
		"addr":         cfg.ListenAddr(),
		"store":        cfg.Store,
		"failure_rate": cfg.Mock.FailureRate,
		"min_delay":    cfg.Mock.MinDelay.String(),
		"max_delay":    cfg.Mock.MaxDelay.String(),
	}).Info("board api starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	logger.Info("board api stopped")
}

func openCollection(ctx context.Context, cfg config.API, rc *redis.Client) (storage.Collection, error) {
	switch cfg.Store {
	case config.StoreRedis:
		return storage.NewSlotCollection(storage.NewRedisSlot(rc, "kanban:")), nil
	case config.StoreTable:
		tc, err := storage.NewTableCollection(cfg.StorageConnStr, cfg.TasksTable)
		if err != nil {
			return nil, err
		}
		if err := tc.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return tc, nil
	default:
		return storage.NewSlotCollection(storage.NewMemorySlot()), nil
	}
}
