package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidian-tools/plugin-manager/internal/app"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/internal/metrics"
	"github.com/obsidian-tools/plugin-manager/internal/server"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func run(log *logrus.Logger, cfg *config.Config) error {
	log.Infof("starting plugin-manager-server (version=%s, stage=%s)", cfg.Version, cfg.Stage)
	if cfg.AdminAccessToken == "" {
		log.Warn("ADMIN_ACCESS_TOKEN is not set, mutating routes are disabled")
	}

	if !cfg.DisableMetrics && cfg.MetricsProjectID != "" {
		log.Println("setting up metrics exporter...")
		exporter, err := metrics.NewExporter(cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Println("flushing metrics...")
			exporter.StopMetricsExporter()
			exporter.Flush()
		}()
	} else if err := metrics.RegisterViews(); err != nil {
		return err
	}

	log.Printf("opening vault %s...", cfg.VaultDir)
	a, err := app.New(context.Background(), log, cfg, host.NewLogNotifier(log))
	if err != nil {
		return err
	}

	log.Println("starting server...")
	srv := &http.Server{
		Addr:              cfg.GetServerAddr(),
		Handler:           server.New(log, a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Println("stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); errors.Is(err, context.DeadlineExceeded) {
		log.Println("closing server...")
		if closeErr := srv.Close(); closeErr != nil {
			return closeErr
		}
	} else if err != nil {
		return err
	}

	log.Println("closing history store...")
	if err := a.Close(); err != nil {
		log.Error(err)
	}
	log.Println("server stopped!")
	return nil
}

func main() {
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		logrus.Fatal(err)
	}
	cfg.Version = version
	log := cfg.NewLogger()
	if err := run(log, cfg); err != nil {
		log.Fatal(err)
	}
}
