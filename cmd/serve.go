package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjzll/stringart/internal/server"
	"github.com/fjzll/stringart/internal/store"
)

var (
	serverAddr string
	serverPort int
	dataDir    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for background generation jobs",
	Long: `Starts an HTTP server that accepts generation jobs via REST API.
Jobs run in the background; progress is available via SSE or status endpoints,
and finished plans are persisted to the data directory.`,
	RunE: runServer,
}

func init() {
	serveCmd.Flags().StringVar(&serverAddr, "addr", "localhost", "Server bind address")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&dataDir, "data", "./data", "Plan store directory")

	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	addr := fmt.Sprintf("%s:%d", serverAddr, serverPort)

	slog.Info("Starting stringart server", "addr", addr, "data", dataDir)
	fmt.Printf("Server listening on http://%s\n", addr)
	fmt.Println("API endpoints:")
	fmt.Println("  POST   /api/v1/jobs                  - Create new job")
	fmt.Println("  GET    /api/v1/jobs                  - List all jobs")
	fmt.Println("  GET    /api/v1/jobs/:id              - Get job status")
	fmt.Println("  GET    /api/v1/jobs/:id/stream       - SSE progress stream")
	fmt.Println("  POST   /api/v1/jobs/:id/cancel       - Cancel a running job")
	fmt.Println("  GET    /api/v1/jobs/:id/plan.json    - Current plan (partial while running)")
	fmt.Println("  GET    /api/v1/jobs/:id/preview.png  - Rendered preview")
	fmt.Println("  GET    /api/v1/jobs/:id/ref.png      - Canonicalised reference")
	fmt.Println("  POST   /api/v1/validate              - Validate parameters")
	fmt.Println("\nPress Ctrl+C to shutdown")

	planStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create plan store: %w", err)
	}

	srv := server.NewServer(addr, planStore)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)
		fmt.Println("\nShutting down server...")

		// Give outstanding jobs 10 seconds to persist partial plans
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		fmt.Println("Server stopped gracefully")
	}

	return nil
}
