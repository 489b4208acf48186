package roomserver

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/astromechza/automerge-docs/pkg/rooms"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "rooms.sqlite3"))
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreSnapshotsPointAtLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateRoom(ctx, rooms.CreateRoomRequest{ID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if got, err := s.LatestSnapshot(ctx, "r1"); err != nil || got != nil {
		t.Fatalf("fresh room snapshot = %v, %v", got, err)
	}
	for _, content := range [][]byte{[]byte("one"), []byte("two")} {
		if _, err := s.SaveSnapshot(ctx, "r1", content); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.LatestSnapshot(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("two")) {
		t.Fatalf("latest = %q", got)
	}
	if _, err := s.SaveSnapshot(ctx, "missing", []byte("x")); !errors.Is(err, rooms.ErrNotFound) {
		t.Fatalf("snapshot of missing room error = %v", err)
	}
}

func TestStoreUpdateMergesAccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateRoom(ctx, rooms.CreateRoomRequest{
		ID:            "r1",
		Metadata:      rooms.Metadata{Title: "t", Email: "a@x.com"},
		UsersAccesses: rooms.AccessMap{"a@x.com": {rooms.RoomWrite}},
	}); err != nil {
		t.Fatal(err)
	}
	r, err := s.UpdateRoom(ctx, "r1", rooms.UpdateRoomRequest{UsersAccesses: rooms.AccessUpdate{
		"b@x.com": rooms.AccessForUserType(rooms.UserViewer),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.UsersAccesses) != 2 || r.Metadata.Title != "t" {
		t.Fatalf("room = %+v", r)
	}
	r, err = s.UpdateRoom(ctx, "r1", rooms.UpdateRoomRequest{UsersAccesses: rooms.AccessUpdate{"a@x.com": nil}})
	if err != nil {
		t.Fatal(err)
	}
	if r.HasAccess("a@x.com") || !r.HasAccess("b@x.com") {
		t.Fatalf("accesses = %v", r.UsersAccesses)
	}
	if _, err := s.UpdateRoom(ctx, "nope", rooms.UpdateRoomRequest{}); !errors.Is(err, rooms.ErrNotFound) {
		t.Fatalf("update missing error = %v", err)
	}
}

func TestStoreDeleteRemovesSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateRoom(ctx, rooms.CreateRoomRequest{ID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveSnapshot(ctx, "r1", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRoom(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.database.QueryRowContext(ctx, `SELECT count(*) FROM snapshots`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("%d snapshots left", n)
	}
	if err := s.DeleteRoom(ctx, "r1"); !errors.Is(err, rooms.ErrNotFound) {
		t.Fatalf("second delete error = %v", err)
	}
}
