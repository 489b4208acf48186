package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astromechza/automerge-docs/pkg/config"
	"github.com/astromechza/automerge-docs/pkg/pagecache"
	"github.com/astromechza/automerge-docs/pkg/rooms"
	"github.com/astromechza/automerge-docs/pkg/rooms/liveblocks"
	"github.com/astromechza/automerge-docs/pkg/webapp"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	var cfg config.App
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "the address to listen on")
	flag.StringVar(&cfg.Backend.BaseURL, "backend", cfg.Backend.BaseURL, "the collaboration backend url")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "how long rendered pages are served from cache")
	flag.Parse()

	backend, err := liveblocks.NewClient(cfg.Backend.BaseURL, cfg.Backend.Secret)
	if err != nil {
		return err
	}
	cache := pagecache.New(pagecache.WithTTL(cfg.CacheTTL))
	service := rooms.NewService(backend, rooms.WithRevalidator(cache))
	app := webapp.New(service, cache)

	httpServer := &http.Server{Addr: cfg.Addr, Handler: app.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr, "backend", cfg.Backend.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case err := <-errs:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return <-errs
}
