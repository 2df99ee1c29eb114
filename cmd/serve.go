package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hdb-fairness/internal/fairness"
	"github.com/sells-group/hdb-fairness/internal/server"
)

var (
	servePort int
	servePool string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fairness HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		src, err := newSource(ctx, cfg, servePool)
		if err != nil {
			return eris.Wrap(err, "serve: init source")
		}

		api := server.New(server.Options{
			Estimator:    fairness.NewEstimator(cfg.FairnessParams()),
			Coefficients: cfg.Coefficients(),
			Source:       src,
			CORSOrigins:  cfg.Server.CORSOrigins,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Bool("file_pool", servePool != ""),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&servePool, "pool", "", "serve GET estimates from a local export (.csv, .json, .xlsx) instead of data.gov.sg")
	rootCmd.AddCommand(serveCmd)
}
