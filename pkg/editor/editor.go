package editor

import (
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
)

// Update tags.
const (
	// TagHistoric marks updates that restore a snapshot from the undo or redo stack.
	TagHistoric = "historic"
	// TagCollaboration marks updates that apply changes received from other peers.
	TagCollaboration = "collaboration"
)

type UpdatePayload struct {
	State            *State
	PrevState        *State
	Tags             []string
	ContentChanged   bool
	SelectionChanged bool
}

func (p UpdatePayload) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

type UpdateListener func(UpdatePayload)

// Editor owns the current State and serialises every mutation of it.
type Editor struct {
	updateMu sync.Mutex

	mu        sync.Mutex
	state     *State
	listeners map[uint64]UpdateListener
	nextID    uint64

	keySeq   atomic.Uint64
	commands commandRegistry
	logger   *slog.Logger
}

type Option func(*Editor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// New returns an editor holding a single empty paragraph with the caret inside it.
func New(opts ...Option) *Editor {
	e := &Editor{
		state:     emptyState(),
		listeners: make(map[uint64]UpdateListener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Update(func(tx *Tx) error {
		p := tx.CreateParagraph()
		if err := tx.Append(RootKey, p.Key); err != nil {
			return err
		}
		tx.SetSelection(Caret(p.Key, 0))
		return nil
	}); err != nil {
		panic(err)
	}
	e.registerBuiltins()
	return e
}

func (e *Editor) nextKey() NodeKey {
	return NodeKey(strconv.FormatUint(e.keySeq.Add(1), 10))
}

// State returns the latest committed state.
func (e *Editor) State() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Read runs fn against the latest committed state.
func (e *Editor) Read(fn func(v *View)) {
	fn(&View{state: e.State()})
}

// RegisterUpdateListener calls fn after every committed update.
func (e *Editor) RegisterUpdateListener(fn UpdateListener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Update runs fn in a mutation scope. When fn returns nil its changes are committed as a
// single update and listeners are notified; otherwise nothing is committed. Update must not
// be called from inside another Update closure.
func (e *Editor) Update(fn func(tx *Tx) error, tags ...string) error {
	payload, err := e.commitUpdate(fn, tags)
	if err != nil || payload == nil {
		return err
	}
	e.notify(*payload)
	return nil
}

func (e *Editor) commitUpdate(fn func(tx *Tx) error, tags []string) (*UpdatePayload, error) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	prev := e.State()
	tx := newTx(e, prev)
	if err := fn(tx); err != nil {
		return nil, err
	}
	next := tx.finish()
	if !tx.dirty && !tx.selectionDirty {
		return nil, nil
	}

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()
	return &UpdatePayload{
		State:            next,
		PrevState:        prev,
		Tags:             tags,
		ContentChanged:   tx.dirty,
		SelectionChanged: tx.selectionDirty,
	}, nil
}

// SetState replaces the current state with a snapshot previously produced by this editor.
func (e *Editor) SetState(s *State, tags ...string) {
	e.updateMu.Lock()
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()
	e.updateMu.Unlock()

	e.notify(UpdatePayload{
		State:            s,
		PrevState:        prev,
		Tags:             tags,
		ContentChanged:   true,
		SelectionChanged: true,
	})
}

func (e *Editor) notify(p UpdatePayload) {
	e.mu.Lock()
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]UpdateListener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, e.listeners[id])
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(p)
	}
	if p.SelectionChanged {
		DispatchCommand(e, SelectionChangeCommand, Empty{})
	}
}
