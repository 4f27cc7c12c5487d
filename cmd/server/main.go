package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/parlor-social/realtime-hub/internal/config"
	"github.com/parlor-social/realtime-hub/internal/handler"
	"github.com/parlor-social/realtime-hub/internal/hub"
	"github.com/parlor-social/realtime-hub/internal/metrics"
	"github.com/parlor-social/realtime-hub/internal/service"
	"github.com/parlor-social/realtime-hub/internal/store"
)

func main() {
	log.Println("Starting realtime hub")

	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open the message store
	messageStore, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}

	blobStore, err := store.NewFileBlobStore(cfg.Store.MediaDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	// Create metrics collector
	collector := metrics.NewPrometheusCollector()

	// Create the connection registry and the dispatcher
	registry := hub.New()
	svc := service.New(cfg, registry, messageStore, blobStore, collector)
	svc.Start()

	// Create handlers
	wsHandler := handler.NewWebSocketHandler(cfg, svc, collector)
	httpHandler := handler.NewHTTPHandler(cfg, svc, messageStore)

	// Create HTTP router
	router := mux.NewRouter()
	router.Handle(cfg.WebSocket.Path, wsHandler)
	router.Handle("/metrics", collector.Handler())
	httpHandler.SetupRoutes(router)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  2 * cfg.HTTP.ReadTimeout,
	}

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTP.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop the dispatcher and close the store
	svc.Close()
	if err := messageStore.Close(); err != nil {
		log.Printf("Message store close error: %v", err)
	}

	log.Println("Shutdown complete")
}
