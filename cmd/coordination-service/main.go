package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/carelink/care-coordination/internal/appointment"
	"github.com/carelink/care-coordination/internal/chat"
	"github.com/carelink/care-coordination/internal/identity"
	"github.com/carelink/care-coordination/internal/notification"
	"github.com/carelink/care-coordination/pkg/auth"
	"github.com/carelink/care-coordination/pkg/config"
	"github.com/carelink/care-coordination/pkg/database"
	"github.com/carelink/care-coordination/pkg/httputil"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/monitoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)

	// Connect to the database
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.CreateSchema(context.Background()); err != nil {
		log.Fatalf("Failed to create database schema: %v", err)
	}

	// Repositories
	directoryRepo := identity.NewRepository(db, log)
	appointmentRepo := appointment.NewRepository(db, log)
	notificationRepo := notification.NewRepository(db, log)
	messageRepo := chat.NewRepository(db, log)

	// Services
	resolver := identity.NewResolver(directoryRepo, log)
	notificationService := notification.NewService(notificationRepo, log)
	hub := chat.NewHub(log)
	chatService := chat.NewService(messageRepo, appointmentRepo, resolver, hub, log)
	delivery := notification.NewLogSender(log)
	notifier := appointment.NewNotifier(resolver, notificationService, chatService, delivery, log)
	appointmentService := appointment.NewService(appointmentRepo, resolver, directoryRepo, notifier, log)

	// HTTP surface
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler(db)).Methods("GET")
	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	middleware := auth.NewMiddleware(&cfg.JWT, log)
	api.Use(middleware.Handler)

	identity.NewHandlers(directoryRepo, resolver, log).Register(api)
	appointment.NewHandlers(appointmentService, log).Register(api)
	notification.NewHandlers(notificationService, log).Register(api)
	chat.NewHandlers(chatService, hub, log).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background sweeper
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	if cfg.Sweep.Enabled {
		sweeper := appointment.NewSweeper(appointmentService, cfg.SweepInterval(), log)
		go sweeper.Run(sweepCtx)
	}

	go func() {
		log.Infof("Starting Coordination Service on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start Coordination Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Coordination Service...")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}
	log.Info("Coordination Service stopped")
}

// healthHandler reports service and database health
func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]string{
			"status":  status,
			"service": "coordination-service",
		})
	}
}
