package roomserver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/automerge-docs/pkg/docstore"
)

// openDoc is a room document held in memory while clients sync against it.
type openDoc struct {
	mu  sync.Mutex
	doc *automerge.Doc
	// saved is the last content written to the snapshots table.
	saved []byte
}

// docCache loads room documents on first use and keeps them in memory until the room is
// deleted. Changes are written back by Backup.
type docCache struct {
	store  *Store
	cache  sync.Map
	loadMu sync.Mutex
}

func (c *docCache) open(ctx context.Context, roomID string) (*openDoc, error) {
	if raw, ok := c.cache.Load(roomID); ok {
		return raw.(*openDoc), nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if raw, ok := c.cache.Load(roomID); ok {
		return raw.(*openDoc), nil
	}
	content, err := c.store.LatestSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	od := &openDoc{saved: content}
	if content == nil {
		// seeded once and stored straight away so that a restart hands out the same block list
		if od.doc, err = docstore.NewDocument(); err != nil {
			return nil, fmt.Errorf("failed to create doc: %w", err)
		}
		od.saved = od.doc.Save()
		if _, err := c.store.SaveSnapshot(ctx, roomID, od.saved); err != nil {
			return nil, fmt.Errorf("failed to store new doc: %w", err)
		}
	} else if od.doc, err = automerge.Load(content); err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	c.cache.Store(roomID, od)
	return od, nil
}

// save returns the current document bytes, taken under the document lock.
func (od *openDoc) save() []byte {
	od.mu.Lock()
	defer od.mu.Unlock()
	return od.doc.Save()
}

// saves returns the current content of every open document by room.
func (c *docCache) saves() map[string][]byte {
	out := map[string][]byte{}
	c.cache.Range(func(key, value any) bool {
		out[key.(string)] = value.(*openDoc).save()
		return true
	})
	return out
}

func (c *docCache) forget(roomID string) {
	c.cache.Delete(roomID)
}

// Backup snapshots every open document whose content changed since its last snapshot.
func (c *docCache) Backup(ctx context.Context) {
	c.cache.Range(func(key, value any) bool {
		roomID, od := key.(string), value.(*openDoc)
		content := od.save()
		if bytes.Equal(content, od.saved) {
			return true
		}
		if id, err := c.store.SaveSnapshot(ctx, roomID, content); err != nil {
			slog.Error("failed to backup doc in database", "room", roomID, "err", err)
		} else {
			od.saved = content
			slog.Info("backed up", "room", roomID, "snapshot", id)
		}
		return true
	})
}
