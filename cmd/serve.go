package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the FindMe HTTP API.

The API exposes post creation (as background jobs with SSE progress),
listing, deletion, face search, match recomputation, index maintenance
and the stored post images under /api/v1.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (env WEB_PORT, default 8085)")
	serveCmd.Flags().String("host", "", "Host to bind to (env WEB_HOST, default 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, cfg, appOptions{extract: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.extractor.Available(); err != nil {
		fmt.Println("Warning: no embedding server answered; adding posts and searching will fail until restart")
	}

	server := web.NewServer(cfg, a.service, a.blobs, a.extractor.Backend())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting FindMe API on http://%s:%d/api/v1\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	// Drain queued writes before the index is written out.
	a.service.Close()
	a.saveIndex()
	return nil
}
