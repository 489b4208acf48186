package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/automerge-docs/pkg/config"
	"github.com/astromechza/automerge-docs/pkg/roomserver"
	"github.com/astromechza/automerge-docs/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	var cfg config.Server
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "the address to listen on")
	flag.StringVar(&cfg.Database, "database", cfg.Database, "the sqlite database file")
	flag.DurationVar(&cfg.BackupInterval, "backup-interval", cfg.BackupInterval, "how often open documents are written to the database")
	flag.Parse()

	slog.Info("Opening database", "path", cfg.Database)
	store, err := roomserver.OpenStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Secret == "" {
		slog.Warn("no secret key configured, the api is unauthenticated")
	}
	s := roomserver.New(store,
		roomserver.WithSecret(cfg.Secret),
		roomserver.WithSyncInterval(cfg.SyncInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Backup(ctx, cfg.BackupInterval)
	}()

	httpServer := &http.Server{Addr: cfg.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
			cancel()
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case <-ctx.Done():
	}
	cancel()
	_ = httpServer.Close()

	wg.Wait()

	for roomID, content := range s.OpenDocuments() {
		tf := filepath.Join(os.TempDir(), roomID+".automerge")
		if err := os.WriteFile(tf, content, 0o644); err != nil {
			slog.Error("failed to dump", "room", roomID, "err", err)
			continue
		}
		slog.Info("dumped", "room", roomID, "path", tf)
		doc, err := automerge.Load(content)
		if err != nil {
			slog.Error("failed to load dump", "room", roomID, "err", err)
			continue
		}
		if svgPath, err := viz.RenderToTemp(doc); err != nil {
			slog.Error("failed to render", "room", roomID, "err", err)
		} else {
			slog.Info("rendered", "room", roomID, "path", "file://"+svgPath)
		}
	}
	return nil
}
