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

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jjoniel/secretsanta/internal/api"
	"github.com/jjoniel/secretsanta/internal/auth"
	"github.com/jjoniel/secretsanta/internal/config"
	"github.com/jjoniel/secretsanta/internal/metrics"
	"github.com/jjoniel/secretsanta/internal/middleware"
	"github.com/jjoniel/secretsanta/internal/notify"
	"github.com/jjoniel/secretsanta/internal/rpc"
	"github.com/jjoniel/secretsanta/internal/service"
	"github.com/jjoniel/secretsanta/internal/storage/sqlstore"
	"github.com/jjoniel/secretsanta/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "type", cfg.DatabaseType)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var notifier notify.Notifier
	switch cfg.Notifier {
	case "smtp":
		notifier = notify.NewSMTPNotifier(cfg.SMTP)
		slog.Info("Sending assignment emails over SMTP", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	default:
		notifier = notify.NewLogNotifier(slog.Default())
		slog.Info("Assignment emails are logged, not sent")
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyWorkers, cfg.NotifyTimeout)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	assignments := service.NewAssignmentService(store, dispatcher, m, service.AssignmentConfig{
		Policy:       cfg.HistoryPolicy,
		HistoryYears: cfg.HistoryYears,
		Attempts:     cfg.MatchAttempts,
	})

	router := api.NewRouter(api.Services{
		Auth:         service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, slog.Default()),
		Groups:       service.NewGroupService(store),
		Participants: service.NewParticipantService(store),
		Assignments:  assignments,
	}, api.Options{JWT: jwtManager, Metrics: m, Gatherer: reg})

	// Register Connect services
	rpcPath, rpcHandler := rpc.NewAssignmentServiceHandler(rpc.NewAssignmentServer(assignments),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor()),
	)
	router.PathPrefix(rpcPath).Handler(rpcHandler)

	handler := middleware.Logging(middleware.CORS(cfg.CORSOrigins)(router))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr),
			"history_policy", cfg.HistoryPolicy.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("Server closed")
	return nil
}
