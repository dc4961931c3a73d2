package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Two-Jay/email-auto-sender/internal/api"
	"github.com/Two-Jay/email-auto-sender/internal/config"
	"github.com/Two-Jay/email-auto-sender/internal/dispatch"
	"github.com/Two-Jay/email-auto-sender/internal/message"
	"github.com/Two-Jay/email-auto-sender/internal/smtp"
	"github.com/Two-Jay/email-auto-sender/internal/store"
	"github.com/Two-Jay/email-auto-sender/internal/upload"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from a stale process occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Startup check failed: %v", err)
	}

	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to open data store: %v", err)
	}
	uploads, err := upload.New(cfg.Storage.UploadDir, "/uploads/")
	if err != nil {
		log.Fatalf("Failed to open upload directory: %v", err)
	}

	compiler := message.NewCompiler(cfg.Storage.UploadDir, uploads.URLPrefix(), cfg.Storage.PublicBaseURL)
	transport := smtp.NewClient(cfg.SMTP.Timeout())
	dispatcher := dispatch.New(transport, compiler, dispatch.Config{
		BatchSize: cfg.Mailing.BatchSize,
		SendDelay: cfg.Mailing.SendDelay(),
	})

	router := api.NewRouter(api.Deps{
		Store:       st,
		Uploads:     uploads,
		Sender:      dispatcher,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Bulk sends run inside the request; the write timeout must cover
		// the whole paced run, not a single response write.
		WriteTimeout: 30 * time.Minute,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s (batch size %d, send delay %s)",
			addr, cfg.Mailing.BatchSize, cfg.Mailing.SendDelay())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
