package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wmstack/blueprintgo/internal/config"
	"github.com/wmstack/blueprintgo/internal/database"
	"github.com/wmstack/blueprintgo/internal/editor"
	"github.com/wmstack/blueprintgo/internal/geometry"
	"github.com/wmstack/blueprintgo/internal/handlers"
	"github.com/wmstack/blueprintgo/internal/models"
	"github.com/wmstack/blueprintgo/internal/remote"
	"github.com/wmstack/blueprintgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(&models.LayoutBlock{}); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Wire the remote layout service and the editor session
	remoteSvc := remote.NewGormService(db.DB)

	halfW := cfg.Editor.WarehouseWidth / 2
	halfD := cfg.Editor.WarehouseDepth / 2
	session := editor.NewSession(editor.Options{
		Bounds:       geometry.AABB{MinX: -halfW, MinZ: -halfD, MaxX: halfW, MaxZ: halfD},
		GridCellSize: cfg.Editor.GridCellSize,
		HistoryDepth: cfg.Editor.HistoryLimit,
		Remote:       remoteSvc,
	})

	runCtx, stopSession := context.WithCancel(context.Background())
	go func() {
		if err := session.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("🔴 Editor session stopped: %v", err)
		}
	}()

	// 5. Fan commit outcomes and layout changes out to connected editors
	hub := websocket.NewHub()
	go hub.Run()

	go func() {
		for ev := range session.Events() {
			msg := map[string]interface{}{
				"type":     "COMMIT_RESULT",
				"local_id": ev.LocalID,
				"op":       ev.Op,
			}
			if ev.Err != nil {
				msg["error"] = ev.Err.Error()
				msg["rolled_back"] = ev.RolledBack
			}
			hub.Broadcast(msg)
		}
	}()

	go func() {
		for blocks := range remoteSvc.Subscribe() {
			hub.Broadcast(map[string]interface{}{
				"type":   "LAYOUT_CHANGED",
				"blocks": blocks,
			})
		}
	}()

	// 6. Set up HTTP router
	router := handlers.NewRouter(session, hub)

	// 7. Start server with graceful shutdown
	port := cfg.Port
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Layout server starting on port %s\n", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	stopSession()

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
