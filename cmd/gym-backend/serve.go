package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/botio91514/gym-backend/internal/app"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var withoutScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the daily lifecycle scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(withoutScheduler)
		},
	}
	cmd.Flags().BoolVar(&withoutScheduler, "no-scheduler", false, "do not run the daily sweep in this process")

	return cmd
}

func serve(withoutScheduler bool) error {
	log := logger.NewFromEnv()
	log.Info("app: starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, log)
	if err != nil {
		log.Critical("app: init failed", "err", err)
		return err
	}

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	var schedulerDone sync.WaitGroup
	if application.SchedulerEnabled() && !withoutScheduler {
		schedulerDone.Add(1)
		go func() {
			defer schedulerDone.Done()
			application.Scheduler().Run(schedulerCtx)
		}()
	} else {
		log.Info("scheduler: disabled in this process")
	}

	srv := application.HTTPServer()
	log.Info("http: listening", "addr", srv.Addr)

	serverErrCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("app: shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			log.Critical("http: server failed", "addr", srv.Addr, "err", err)
			runErr = err
		}
	}

	stopScheduler()
	schedulerDone.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http: graceful shutdown failed", "err", err)
		runErr = errors.Join(runErr, err)
	}

	// Queued emails get their own budget so a slow SMTP server does not eat the HTTP drain.
	closeCtx, cancelClose := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelClose()

	if err := application.Close(closeCtx); err != nil {
		log.Error("app: close failed", "err", err)
		runErr = errors.Join(runErr, err)
	}

	if runErr == nil {
		log.Info("app: stopped")
	}
	return runErr
}
