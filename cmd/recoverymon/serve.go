package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/cron"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/httpapi"
)

type ServeCmd struct {
	Listen string `name:"listen" help:"Override LISTEN_ADDR."`
}

func (c *ServeCmd) Run(rt *runtime) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.NewScheduler(cron.WithLogger(rt.logger))
	if _, err := cron.SchedulePurge(scheduler, rt.cfg.Store.PurgeSchedule, rt.sessions, rt.logger); err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	addr := rt.cfg.Server.ListenAddr
	if c.Listen != "" {
		addr = c.Listen
	}
	srv := httpapi.NewServer(addr, httpapi.NewRouter(rt.controller,
		httpapi.WithLogger(rt.logger),
		httpapi.WithRequestTimeout(rt.cfg.HTTP.Timeout+30*time.Second),
	))

	errCh := make(chan error, 1)
	go func() {
		defer rt.recoverPanic("http-server", map[string]any{"addr": addr})
		rt.logger.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		rt.logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn("http shutdown: %v", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		rt.logger.Warn("scheduler stop: %v", err)
	}
	return serveErr
}
