package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/bootstrap"
	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	authsvc "github.com/NordCoder/Gatekeeper/internal/services/auth-server/auth"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/auth-server.yaml", "path to the YAML config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting auth-server",
		zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version), zap.String("storage", cfg.Storage.Driver))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	store, err := bootstrap.OpenStore(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	signer, verifier, err := bootstrap.Keys(cfg)
	if err != nil {
		logger.Fatal("load keys", zap.Error(err))
	}

	workersCtx, cancelWorkers := context.WithCancel(rootCtx)
	defer cancelWorkers()
	var workers sync.WaitGroup

	events, closeEvents := initEvents(workersCtx, cfg, store, logger, &workers)
	defer closeEvents()

	sessions, err := bootstrap.SessionManager(cfg, store, signer, events, logger)
	if err != nil {
		logger.Fatal("session manager", zap.Error(err))
	}
	guard := authsvc.NewGuard(verifier, store.Users, logger)

	startSweeper(workersCtx, cfg, store, logger, &workers)
	closeRevocations := startRevocations(workersCtx, cfg, sessions, logger, &workers)
	defer closeRevocations()

	grpcServer, grpcLn, err := buildGRPCServer(cfg, guard)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpSrv, err := buildHTTPServer(cfg, logger, store, sessions, guard)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-grpcErrCh:
		if runErr != nil {
			logger.Error("grpc serve", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	gracefulStopGRPC(grpcServer)

	cancelWorkers()
	waitWorkers(shCtx, &workers, logger)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}

func waitWorkers(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("background workers did not stop in time")
	}
}
