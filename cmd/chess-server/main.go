package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	appcfg "github.com/park285/cheese-arbiter/internal/config"
	"github.com/park285/cheese-arbiter/internal/matchmaker"
	"github.com/park285/cheese-arbiter/internal/msgcat"
	"github.com/park285/cheese-arbiter/internal/obslog"
	"github.com/park285/cheese-arbiter/internal/registry"
	"github.com/park285/cheese-arbiter/internal/session"
	"github.com/park285/cheese-arbiter/internal/status"
	"github.com/park285/cheese-arbiter/internal/transport"
	"github.com/park285/cheese-arbiter/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	if err := run(cfg); err != nil {
		obslog.L().Error("server_exit", zap.Error(err))
		obslog.Sync()
		os.Exit(1)
	}
}

func run(cfg *appcfg.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}
	reasons := wire.LoadReasons(catalog)

	store, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	mm := matchmaker.New(ctx, matchmaker.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Reasons:          reasons,
		Registry:         store,
		OnResult: func(id string, res session.Result) {
			obslog.L().Debug("session_result", zap.String("session_id", id), zap.Int("plies", res.Plies))
		},
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return transport.ServeTCP(gctx, ln, mm.Handle) })
	if cfg.WSAddr != "" {
		g.Go(func() error { return transport.ServeWebSocket(gctx, cfg.WSAddr, cfg.WSOrigins, mm.Handle) })
	}
	if cfg.StatusAddr != "" {
		st := status.New(mm, store)
		g.Go(func() error { return st.ListenAndServe(gctx, cfg.StatusAddr) })
	}

	obslog.L().Info("server_start",
		zap.String("listen", cfg.ListenAddr),
		zap.String("ws", cfg.WSAddr),
		zap.String("status", cfg.StatusAddr),
		zap.Bool("redis", cfg.RedisURL != ""),
	)

	err = g.Wait()
	stop()
	// sessions run on ctx, not gctx
	mm.Shutdown()
	obslog.L().Info("server_stop")
	return err
}

func openRegistry(ctx context.Context, cfg *appcfg.AppConfig) (registry.Store, error) {
	if cfg.RedisURL == "" {
		return registry.NewMemoryStore(), nil
	}
	s, err := registry.Open(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return s, nil
}
