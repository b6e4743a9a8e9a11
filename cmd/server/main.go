package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-customer/pkg/simplecustomer/api"
	"github.com/tendant/simple-customer/pkg/simplecustomer/config"
)

func main() {
	configFile := flag.String("config", "", "YAML, JSON or TOML config file, overridden by the environment")
	portFlag := flag.String("port", "", "HTTP port (default: 8080)")
	flag.Parse()

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	opts = append(opts, config.WithEnv())
	if *portFlag != "" {
		opts = append(opts, config.WithPort(*portFlag))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	rt, err := cfg.BuildService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Error("Failed to release resources", "err", err)
		}
	}()

	router, err := newRouter(rt, cfg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("Customer server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.Storage.Type,
		)
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

	rt.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	rt.Logger.Info("Server exiting")
	return nil
}

// newRouter mounts the customer API, health checks and local image assets
func newRouter(rt *config.Runtime, cfg *config.ServerConfig) (*chi.Mux, error) {
	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(rt.Logger))
	r.Use(middleware.Recoverer)

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	handler := api.NewCustomerHandler(rt.Service,
		api.WithMaxUploadSize(maxUpload),
		api.WithLogger(rt.Logger),
	)
	r.Mount("/api/customers", handler.Routes())

	if rt.Assets != nil {
		r.Mount(config.AssetsPath, http.StripPrefix(config.AssetsPath, rt.Assets))
	}
	return r, nil
}
