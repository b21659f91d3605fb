package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanehara/tsugite/internal/adapter/ui"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides, err := buildOverrides()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			overrides.HTTPAddr = &serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		a, err := newApp(ctx, overrides)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		handler := ui.NewHandler(a.askService(a.cfg.MaxRows, a.cfg.MaxLimit), a.explorer, a.logger)

		srv := &http.Server{
			Addr:              a.cfg.HTTPAddr,
			Handler:           ui.NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("dashboard listening", slog.String("addr", a.cfg.HTTPAddr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
		}

		a.logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}
