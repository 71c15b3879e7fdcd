package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"travelmate/internal/collab"
	"travelmate/internal/config"
	"travelmate/internal/domain"
	"travelmate/internal/httpserver"
	"travelmate/internal/logging"
	"travelmate/internal/media"
	"travelmate/internal/presence"
	"travelmate/internal/security"
	"travelmate/internal/service"
	"travelmate/internal/store/postgres"
	"travelmate/internal/store/sqlite"
	"travelmate/internal/ws"
)

// @title           travelmate realtime API
// @version         1.0
// @description     Direct messages, presence and notifications for the traveler platform.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type stores struct {
	db            *sql.DB
	messages      domain.MessageRepository
	notifications domain.NotificationRepository
}

func openStores(cfg *config.Config) (*stores, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		db, err := sqlite.Open(sqlite.DSN(cfg.SQLitePath))
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &stores{db: db, messages: sqlite.NewMessageRepo(db), notifications: sqlite.NewNotificationRepo(db)}, nil
	default:
		db, err := postgres.Open(cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &stores{db: db, messages: postgres.NewMessageRepo(db), notifications: postgres.NewNotificationRepo(db)}, nil
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("app", cfg.AppName, "env", cfg.Env)
	slog.SetDefault(log)

	st, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.db.Close()
	log.Info("database ready", "driver", cfg.DatabaseDriver)

	directory, err := collab.LoadDirectory(cfg.DirectoryFile)
	if err != nil {
		return err
	}

	tokens := security.NewTokenService(cfg.JWTSecret, time.Hour)
	registry := presence.NewRegistry(log.With("component", "presence"))

	notifications := service.NewNotificationService(st.notifications)
	dispatcher := service.NewDispatcher(notifications, registry, cfg.NotifyMaxAttempts, cfg.NotifyBackoff, log.With("component", "dispatcher"))

	var offline service.Notifier
	if cfg.NotifyOfflineMessages {
		offline = dispatcher
	}
	messages := service.NewMessageService(st.messages, registry, offline, cfg.MaxMessageLength, log.With("component", "messages"))
	conversations := service.NewConversationService(st.messages, registry, directory, log.With("component", "conversations"))
	presenceSvc := service.NewPresenceService(registry, st.messages, directory, log.With("component", "presence"))

	gateway := ws.NewGateway(tokens, registry, messages, presenceSvc, collab.NewLocationLogger(log), ws.Options{
		AllowedOrigins:  cfg.CORSOrigins,
		AuthTimeout:     cfg.WSAuthTimeout,
		IdleTimeout:     cfg.WSIdleTimeout,
		WriteTimeout:    cfg.WSWriteTimeout,
		SendBuffer:      cfg.WSSendBuffer,
		MaxFrameBytes:   cfg.WSMaxFrameBytes,
		EventsPerSecond: cfg.WSEventsPerSecond,
		EventBurst:      cfg.WSEventBurst,
		StoreTimeout:    cfg.StoreTimeout,
	}, log.With("component", "gateway"))

	router := httpserver.NewRouter(httpserver.Deps{
		Config:        cfg,
		Auth:          tokens,
		Messages:      messages,
		Conversations: conversations,
		Notifications: notifications,
		Dispatcher:    dispatcher,
		Presence:      presenceSvc,
		Files:         media.NewLocalStore(cfg.UploadDir, "/api/uploads", cfg.MaxAttachmentBytes),
		Gateway:       gateway,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gateway.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
