package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/astromechza/automerge-docs/pkg/config"
	"github.com/astromechza/automerge-docs/pkg/docstore"
	"github.com/astromechza/automerge-docs/pkg/editor"
	"github.com/astromechza/automerge-docs/pkg/rooms"
	"github.com/astromechza/automerge-docs/pkg/rooms/liveblocks"
	"github.com/astromechza/automerge-docs/pkg/toolbar"
	"github.com/astromechza/automerge-docs/pkg/tui"
	"github.com/astromechza/automerge-docs/pkg/wsync"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	var cfg config.Editor
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	roomVar := flag.String("room", "", "the room to open")
	emailVar := flag.String("email", "", "the email of the user opening the room")
	flag.StringVar(&cfg.Backend.BaseURL, "backend", cfg.Backend.BaseURL, "the collaboration backend url")
	flag.StringVar(&cfg.Presets, "presets", cfg.Presets, "an optional toml file of font presets")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "where to write logs while the terminal is in use")
	flag.Parse()
	if *roomVar == "" || *emailVar == "" {
		return fmt.Errorf("both -room and -email are required")
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	presets, err := config.LoadPresets(cfg.Presets)
	if err != nil {
		return err
	}

	backend, err := liveblocks.NewClient(cfg.Backend.BaseURL, cfg.Backend.Secret)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	room, err := rooms.NewService(backend, rooms.WithLogger(logger)).GetDocument(ctx, *roomVar, *emailVar)
	if err != nil {
		return fmt.Errorf("failed to open room: %w", err)
	}
	raw, err := backend.Document(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return fmt.Errorf("failed to load doc: %w", err)
	}
	_ = doc.SetActorID(hex.EncodeToString([]byte(fmt.Sprintf("%d", os.Getpid()))))
	logger.Info("established base doc", "room", room.ID, "heads", doc.Heads())

	e := editor.New(editor.WithLogger(logger))
	defer editor.RegisterHistory(e)()
	binding, err := docstore.Bind(e, doc, docstore.WithLogger(logger))
	if err != nil {
		return err
	}
	defer binding.Close()
	tb := toolbar.New(e, toolbar.WithPresets(presets), toolbar.WithLogger(logger))
	defer tb.Mount()()

	p := tea.NewProgram(tui.New(tui.Options{
		Editor:  e,
		Toolbar: tb,
		Reload:  binding.Reload,
		Title:   room.Metadata.Title,
		Logger:  logger,
	}), tea.WithAltScreen(), tea.WithContext(ctx))

	c := &client{
		url:     backend.SyncURL(room.ID),
		header:  backend.AuthHeader(),
		binding: binding,
		logger:  logger,
		onReceive: func() {
			p.Send(tui.RemoteChangeMsg{})
		},
	}
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.connectAndSyncContinuously(ctx)
	}()

	_, runErr := p.Run()
	cancel()
	wg.Wait()

	binding.Locker().Lock()
	saved := doc.Save()
	binding.Locker().Unlock()
	tf := filepath.Join(os.TempDir(), room.ID+"-"+doc.ActorID()+".automerge")
	if err := os.WriteFile(tf, saved, 0o644); err != nil {
		return fmt.Errorf("failed to dump doc: %w", err)
	}
	logger.Info("dumped", "dump", tf)
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run editor: %w", runErr)
	}
	return nil
}

type client struct {
	url       string
	header    http.Header
	binding   *docstore.Binding
	logger    *slog.Logger
	onReceive func()
}

func (c *client) connectAndSyncContinuously(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		if err := c.connectAndSync(ctx); err != nil {
			c.logger.Error("failed to sync", "err", err)
		} else {
			c.logger.Info("finished sync")
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			c.logger.Info("stopping scheduled sync")
			return
		}
	}
}

func (c *client) connectAndSync(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()
	lock := c.binding.Locker()
	lock.Lock()
	state := automerge.NewSyncState(c.binding.Doc())
	lock.Unlock()
	return wsync.Sync(ctx, conn, &wsync.Peer{
		State:     state,
		Lock:      lock,
		OnReceive: c.onReceive,
		Logger:    c.logger,
	})
}
