package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/api"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/app"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/config"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/scheduler"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/watcher"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v\n"+
			"  Hint: stop the other process or set PORT", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  GA4 Reports Server (cmd/server/main.go)                   ║")
	log.Println("║  Report API + fixed-hour scheduler                         ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Pre-flight check: verify the target port is available
	addr := cfg.Server.Address()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()
	log.Printf("Storage: %s (store %s)", cfg.Storage.Type, a.Store.Key())

	// Scheduler
	if cfg.Scheduler.SchedulerEnabled() {
		go a.Scheduler.Start(ctx)
		st := a.Scheduler.Status()
		log.Printf("Scheduler started: %s (%s), next run %s",
			st.Description, st.Timezone, st.NextExecution.Format(time.RFC3339))
	} else {
		log.Println("Scheduler disabled")
	}

	if cfg.Scheduler.RunOnStart {
		go func() {
			log.Println("Running startup report...")
			if _, err := a.Scheduler.RunNow(ctx, scheduler.TriggerStartup); err != nil {
				log.Printf("Startup report failed: %v", err)
			}
		}()
	}

	// Data directory watcher
	if cfg.Watch.Enabled {
		w := watcher.New(cfg.Paths.DataDir, cfg.Watch.Debounce(), a.Store)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
		log.Printf("Watching %s for report files", cfg.Paths.DataDir)
	}

	handlers := api.NewHandlers(a.Store, a.URLs, a.Scheduler)
	server := api.NewServer(handlers, cfg.Server.CORSOrigins)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on http://%s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	// Cancel background tasks
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
