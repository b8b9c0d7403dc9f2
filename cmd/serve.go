package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/server"
)

var (
	flagServeAddr         string
	flagServeInterval     time.Duration
	flagServeEventsBuffer int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local usage API with HTTP/SSE endpoints",
}

func init() {
	serveCmd.RunE = runServe
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (default from config)")
	serveCmd.Flags().DurationVar(&flagServeInterval, "interval", 10*time.Second, "Polling interval")
	serveCmd.Flags().IntVar(&flagServeEventsBuffer, "events-buffer", 200, "Max in-memory events retained")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cfg := loadAppConfig()
	addr := flagServeAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	interval := flagServeInterval
	if cfg.Server.PollSecs > 0 && !serveCmd.Flags().Changed("interval") {
		interval = time.Duration(cfg.Server.PollSecs) * time.Second
	}
	buffer := flagServeEventsBuffer
	if cfg.Server.EventsBuffer > 0 && !serveCmd.Flags().Changed("events-buffer") {
		buffer = cfg.Server.EventsBuffer
	}

	svc := server.New(db, server.Config{
		Addr:         addr,
		Days:         flagDays,
		Interval:     interval,
		EventsBuffer: buffer,
	})

	fmt.Printf("  spendcap API listening on http://%s\n", addr)
	fmt.Printf("  Polling every %s\n", interval)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
