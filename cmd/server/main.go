package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"social-app/internal/auth"
	"social-app/internal/chat"
	"social-app/internal/config"
	"social-app/internal/database"
	"social-app/internal/handlers"
	"social-app/internal/monitoring"
	"social-app/internal/notify"
	"social-app/internal/presence"
	"social-app/internal/proximity"
	"social-app/internal/registry"
	"social-app/internal/storage"
	"social-app/internal/websocket"
	"social-app/pkg/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.Log.Level, Dev: cfg.Log.Dev, Quiet: cfg.IsTest()})
	log := logger.L()
	defer logger.GlobalLogger.Sync()

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	opts := presence.Options{
		Concurrency:           cfg.Presence.FanoutConcurrency,
		BroadcastOnDisconnect: cfg.Presence.BroadcastOnDisconnect,
	}
	reg := registry.New()
	var online handlers.OnlineLookup = handlers.LocalLookup{Registry: reg, Instance: "local"}
	if cfg.Redis.Addr != "" {
		mirror, err := storage.NewRedisPresence(ctx, cfg.Redis, cfg.Presence.TTL)
		if err != nil {
			logger.Warn("Presence mirror disabled: %v", err)
		} else {
			defer mirror.Close()
			opts.Mirror = mirror
			online = mirror
		}
	}

	notifier := notify.New(reg, db, log, cfg.IsTest())
	guard := monitoring.NewGuard(log, monitoring.NewLogReporter(log),
		database.ErrNotFound, chat.ErrNotParticipant, chat.ErrInvalidRequest)
	prox := proximity.NewService(db)
	coordinator := presence.NewCoordinator(reg, db, prox, notifier, guard, log, opts)
	relay := chat.NewRelay(chat.Stores{
		Users:         db,
		Conversations: db,
		Messages:      db,
		Calls:         db,
		Social:        db,
	}, reg, notifier, log)

	authService := auth.NewService(db, &cfg.JWT)
	dispatcher := websocket.NewDispatcher(relay, guard, log)
	wsHandler := websocket.NewHandler(authService, coordinator, dispatcher, cfg.Server.SendBuffer, log)

	router := handlers.NewRouter(handlers.Routes{
		Auth:          handlers.NewAuthHandlers(authService),
		Users:         handlers.NewUserHandlers(db, prox, coordinator, online, notifier, guard),
		WebSocket:     wsHandler,
		Authenticator: authService,
		Log:           log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}

// openDatabase picks the in-process store for memory:// URLs and PostgreSQL
// otherwise.
func openDatabase(ctx context.Context, url string) (database.Database, error) {
	if strings.HasPrefix(url, "memory://") {
		logger.Warn("Using in-memory database, data is lost on restart")
		return database.NewMemoryDB(), nil
	}

	db, err := database.NewPostgresDB(url)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   GET  /health")
	logger.Info("   POST /register")
	logger.Info("   POST /login")
	logger.Info("   GET  /ws")
	logger.Info("   PUT  /users/me/location")
	logger.Info("   GET  /users/nearby")
	logger.Info("   GET  /users/{id}/online")
	logger.Info("   POST /users/{id}/follow")
	logger.Info("   POST /users/{id}/visit")
}
