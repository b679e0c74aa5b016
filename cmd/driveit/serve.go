package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httptransport "github.com/mihir-logicrays/drive-it/internal/http"
	"github.com/mihir-logicrays/drive-it/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger API",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	log := logger.For("main")

	gin.SetMode(gin.ReleaseMode)
	handler := httptransport.NewServer(httptransport.ServerDeps{
		Paths:    a.paths,
		Gatherer: a.registry,
	})
	server := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: handler.Routes()}

	if every := a.cfg.Paths.ScheduleInterval; every > 0 {
		go a.paths.RunScheduler(ctx, every)
		log.WithField("interval", every.String()).Info("due route scheduler started")
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", a.cfg.HTTP.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
