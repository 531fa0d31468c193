package main

import (
	"net/http"
	"time"

	"github.com/NordCoder/Gatekeeper/internal/bootstrap"
	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	authsvc "github.com/NordCoder/Gatekeeper/internal/services/auth-server/auth"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, store *bootstrap.Store, sessions authsvc.Sessions, guard authsvc.Authenticator) (*http.Server, error) {
	mux := runtime.NewServeMux()
	if err := authsvc.NewController(sessions, guard, logger).Mount(mux); err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/", otelhttp.NewHandler(mux, "auth-server.http"))
	root.Handle("/metrics", obs.MetricsHandler())
	root.Handle("/healthz", obs.HealthHandler(store.Ping))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
