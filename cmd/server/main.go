package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/project-files/pkg/projectfiles/api"
	"github.com/tendant/project-files/pkg/projectfiles/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	rt, err := cfg.Build(context.Background())
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer rt.Close()
	slog.SetDefault(rt.Logger)

	rt.Logger.Info("project-files configured",
		"environment", cfg.Environment,
		"table_backend", cfg.Table.Backend,
		"storage_backend", cfg.Storage.Backend,
		"auth_mode", cfg.Auth.Mode,
		"presign_ttl", cfg.PresignTTL,
	)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Handle("/metrics", promhttp.Handler())
	server.R.Mount("/api/v1", api.Routes(api.Options{
		Service:       rt.Service,
		Authenticator: rt.Authenticator,
		Logger:        rt.Logger,
		Development:   cfg.IsDevelopment(),
	}))

	server.Run()
}
