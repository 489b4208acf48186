package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/automerge-docs/pkg/docstore"
	"github.com/astromechza/automerge-docs/pkg/rooms"
	"github.com/astromechza/automerge-docs/pkg/roomserver"
)

func newBackend(t *testing.T) string {
	t.Helper()
	store, err := roomserver.OpenStore(filepath.Join(t.TempDir(), "rooms.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(roomserver.New(store, roomserver.WithSecret("sk_test"), roomserver.WithLogger(logger)).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var outBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), err
}

func mustRun(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("docctl %s: %v", strings.Join(args, " "), err)
	}
	if v != nil {
		if err := json.Unmarshal([]byte(out), v); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
	}
}

func TestRoomsCommands(t *testing.T) {
	url := newBackend(t)
	base := []string{"--backend", url, "--secret", "sk_test"}
	as := func(email string, args ...string) []string {
		return append(append(append([]string{}, base...), "--email", email, "--name", "Ann"), args...)
	}

	var room rooms.Room
	mustRun(t, &room, as("ann@x.com", "rooms", "create")...)
	if room.ID == "" || room.Metadata.Title != rooms.DefaultTitle {
		t.Fatalf("created %+v", room)
	}

	mustRun(t, &room, as("ann@x.com", "rooms", "rename", room.ID, "Plans")...)
	if room.Metadata.Title != "Plans" {
		t.Fatalf("title = %q", room.Metadata.Title)
	}

	mustRun(t, &room, as("ann@x.com", "rooms", "share", room.ID, "bob@x.com", "--type", "viewer")...)
	if !room.HasAccess("bob@x.com") {
		t.Fatal("bob was not granted access")
	}

	var inbox struct {
		Data []rooms.Notification `json:"data"`
	}
	mustRun(t, &inbox, as("bob@x.com", "rooms", "inbox")...)
	if len(inbox.Data) != 1 || inbox.Data[0].Kind != rooms.KindDocumentAccess {
		t.Fatalf("inbox = %+v", inbox.Data)
	}

	var list struct {
		Data []rooms.Room `json:"data"`
	}
	mustRun(t, &list, as("bob@x.com", "rooms", "list")...)
	if len(list.Data) != 1 || list.Data[0].ID != room.ID {
		t.Fatalf("list = %+v", list.Data)
	}

	if _, err := run(t, as("ann@x.com", "rooms", "unshare", room.ID, "ann@x.com")...); !errors.Is(err, rooms.ErrSelfRemoval) {
		t.Fatalf("self removal err = %v", err)
	}
	mustRun(t, &room, as("ann@x.com", "rooms", "unshare", room.ID, "bob@x.com")...)
	if _, err := run(t, as("bob@x.com", "rooms", "get", room.ID)...); !errors.Is(err, rooms.ErrAccessDenied) {
		t.Fatalf("get after unshare err = %v", err)
	}

	saved := filepath.Join(t.TempDir(), "room.automerge")
	mustRun(t, nil, as("ann@x.com", "doc", "fetch", room.ID, saved)...)
	if _, err := loadDoc(saved); err != nil {
		t.Fatalf("fetched document does not load: %v", err)
	}

	var nav rooms.Navigation
	mustRun(t, &nav, as("ann@x.com", "rooms", "delete", room.ID)...)
	if nav.RedirectTo != "/" {
		t.Fatalf("redirect = %q", nav.RedirectTo)
	}
	if _, err := run(t, as("ann@x.com", "rooms", "get", room.ID)...); !errors.Is(err, rooms.ErrNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
}

func TestRoomsCreateRequiresEmail(t *testing.T) {
	if _, err := run(t, "--backend", "http://127.0.0.1:1", "rooms", "create"); err == nil {
		t.Fatal("expected an error without --email")
	}
}

func TestDocDump(t *testing.T) {
	doc := automerge.New()
	if err := docstore.WriteBlocks(doc, []docstore.Block{
		{ID: "a", Type: "heading", Tag: "h1", Children: []docstore.Inline{{Text: "Title"}}},
		{ID: "b", Type: "list", Tag: "bullet", Items: [][]docstore.Inline{{{Text: "one"}}, {{Text: "two"}}}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Commit("first"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "doc.automerge")
	if err := os.WriteFile(path, doc.Save(), 0o644); err != nil {
		t.Fatal(err)
	}

	var dump struct {
		Heads   []string     `json:"heads"`
		Text    []string     `json:"text"`
		Changes []changeInfo `json:"changes"`
	}
	mustRun(t, &dump, "doc", "dump", path)
	if len(dump.Heads) != 1 || len(dump.Changes) != 1 {
		t.Fatalf("dump = %+v", dump)
	}
	if strings.Join(dump.Text, "|") != "Title|one\ntwo" {
		t.Fatalf("text = %q", dump.Text)
	}
	if c := dump.Changes[0]; c.Message != "first" || c.Summary != `2 blocks "Title"` {
		t.Fatalf("change = %+v", c)
	}
}

func TestDocDumpMissingFile(t *testing.T) {
	if _, err := run(t, "doc", "dump", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}
