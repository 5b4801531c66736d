package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bettyorganic/golang_services/internal/platform/database"
	"github.com/bettyorganic/golang_services/internal/platform/messagebroker"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func runServe(parent context.Context, migrateFirst bool) error {
	if parent == nil {
		parent = context.Background()
	}
	mainCtx, mainCancel := context.WithCancel(parent)
	defer mainCancel()

	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	log.Info("Starting service...", "provider_kind", cfg.ProviderKind, "http_port", cfg.HTTPPort)

	if migrateFirst {
		if err := database.RunMigrations(cfg.PostgresDSN, "up", log); err != nil {
			return err
		}
	}

	startupCtx, startupCancel := context.WithTimeout(mainCtx, startupTimeout)
	dbPool, err := database.NewDBPool(startupCtx, cfg.PostgresDSN)
	startupCancel()
	if err != nil {
		log.Error("Failed to initialize database connection pool", "error", err)
		return err
	}
	defer dbPool.Close()
	log.Info("Database connection pool initialized")

	nc, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		return err
	}
	defer nc.Close()
	log.Info("NATS connection initialized")

	svc, err := buildService(cfg, dbPool, nc, log)
	if err != nil {
		log.Error("Failed to build service", "error", err)
		return err
	}
	defer svc.session.Close()

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return svc.dispatcher.Run(groupCtx)
	})

	g.Go(func() error {
		svc.connectProvider(groupCtx, log)
		return svc.session.Run(groupCtx)
	})

	if svc.listener != nil {
		g.Go(func() error {
			return svc.listener.Run(groupCtx)
		})
	} else {
		log.Info("Change feed listener disabled; relying on database webhooks")
	}

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", svc.httpServer.Addr)
		if err := svc.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return svc.httpServer.Shutdown(shutdownCtx)
	})

	log.Info("Service components initialized and workers started. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var groupErr error
	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig)
	case <-parent.Done():
		log.Info("Parent context done")
	case groupErr = <-watchGroup(g):
		log.Error("A critical component failed, initiating shutdown", "error", groupErr)
	}

	log.Info("Attempting graceful shutdown...")
	mainCancel()

	if err := g.Wait(); err != nil && !isShutdownErr(err) {
		log.Error("Error during graceful shutdown of components", "error", err)
		return err
	}
	log.Info("Service shutdown complete.")
	return nil
}

// watchGroup reports the error that made the group exit.
func watchGroup(g *errgroup.Group) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()
	return errCh
}

func isShutdownErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
