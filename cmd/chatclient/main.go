package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/pkg/config"
	"realtime-chat/client/pkg/di"
	"realtime-chat/client/pkg/logger"
	"realtime-chat/client/pkg/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	showSnapshot := flag.Bool("snapshot", false, "print the last saved session snapshot and exit")
	user := flag.String("user", "", "user whose snapshot to print (defaults to the credential's user)")
	flag.Parse()

	cfg := config.Load()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showSnapshot {
		if err := printSnapshot(ctx, cfg, models.UserID(*user), os.Stdout); err != nil {
			log.LogError(err, "Failed to print snapshot")
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		log.LogError(err, "Chat client stopped")
		os.Exit(1)
	}
	log.Info("Chat client exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	container, err := di.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			log.LogError(err, "Failed to release resources")
		}
	}()

	r, err := router.New(cfg, log)
	if err != nil {
		return err
	}
	r.SetupRoutes(container.Session, container.Health)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Control API starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.LogError(err, "Control API forced to shutdown")
		}
	}()

	container.Health.Start(ctx)
	container.Session.OnMessage(func(msg models.Message) {
		log.Info("Message received",
			"room_id", msg.RoomID,
			"message_id", msg.ID,
			"content_type", string(msg.ContentType),
			"own", container.Session.IsOwn(msg),
		)
	})

	if err := container.Session.Start(ctx); err != nil {
		return err
	}
	log.Info("Session ready", "session_id", container.Session.ID(), "rooms", container.Session.RoomCount())

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
		return nil
	case <-container.Session.Done():
		return container.Session.Err()
	case err := <-serverErr:
		return err
	}
}
