/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fuel station engine server. Handles
  configuration, dependency wiring, local export-file import, and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Import local terminal export files (DATA0001.TXT, DATAOUT.TXT)
  5. Configure HTTP router and start the server

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: fuel.db, env DATABASE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/fuel.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/fuel-engine/api"
	"github.com/warp/fuel-engine/ingest"
	"github.com/warp/fuel-engine/store/sqlite"
)

// Export files the terminal drops next to the binary; imported on boot
// when present, deduplicated by content hash.
var localExportFiles = []string{"DATA0001.TXT", "DATAOUT.TXT"}

func main() {
	// .env is optional; flags and defaults cover everything.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "fuel.db"), "SQLite database path")
	flag.Parse()

	logger, err := newLogger("fuel-engine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	importer := ingest.NewImporter(store, logger)
	importLocalFiles(importer, logger)

	handler := api.NewHandler(store, importer, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.Int("port", *port), zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// importLocalFiles picks up terminal exports dropped in the working
// directory. Already-imported files are skipped by content hash.
func importLocalFiles(importer *ingest.Importer, logger *zap.Logger) {
	for _, name := range localExportFiles {
		data, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		if _, err := importer.ImportFile(context.Background(), name, data); err != nil {
			logger.Warn("failed to import local file", zap.String("file", name), zap.Error(err))
		}
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
