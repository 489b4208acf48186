package editor

import "sync"

const defaultHistoryLimit = 100

type history struct {
	editor *Editor
	limit  int

	mu      sync.Mutex
	undo    []*State
	redo    []*State
	current *State
	canUndo bool
	canRedo bool
}

type HistoryOption func(*history)

func WithHistoryLimit(n int) HistoryOption {
	return func(h *history) {
		if n > 0 {
			h.limit = n
		}
	}
}

// RegisterHistory records content changes and handles UndoCommand and RedoCommand.
// Availability is pushed through CanUndoCommand and CanRedoCommand whenever it changes.
// Updates from other peers reset both stacks so local undo never reverts remote work.
func RegisterHistory(e *Editor, opts ...HistoryOption) func() {
	h := &history{editor: e, limit: defaultHistoryLimit, current: e.State()}
	for _, opt := range opts {
		opt(h)
	}
	return MergeRegister(
		e.RegisterUpdateListener(h.onUpdate),
		RegisterCommand(e, UndoCommand, func(Empty) bool { return h.step(true) }, PriorityEditor),
		RegisterCommand(e, RedoCommand, func(Empty) bool { return h.step(false) }, PriorityEditor),
	)
}

func (h *history) onUpdate(p UpdatePayload) {
	if p.HasTag(TagHistoric) {
		return
	}
	h.mu.Lock()
	switch {
	case p.HasTag(TagCollaboration):
		h.undo, h.redo = nil, nil
	case p.ContentChanged:
		h.undo = append(h.undo, h.current)
		if len(h.undo) > h.limit {
			h.undo = h.undo[len(h.undo)-h.limit:]
		}
		h.redo = nil
	}
	h.current = p.State
	h.mu.Unlock()
	h.publish()
}

func (h *history) step(undo bool) bool {
	h.mu.Lock()
	from, to := &h.undo, &h.redo
	if !undo {
		from, to = &h.redo, &h.undo
	}
	if len(*from) == 0 {
		h.mu.Unlock()
		return false
	}
	target := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, h.current)
	h.current = target
	h.mu.Unlock()

	h.editor.SetState(target, TagHistoric)
	h.publish()
	return true
}

func (h *history) publish() {
	h.mu.Lock()
	canUndo, canRedo := len(h.undo) > 0, len(h.redo) > 0
	undoChanged, redoChanged := canUndo != h.canUndo, canRedo != h.canRedo
	h.canUndo, h.canRedo = canUndo, canRedo
	h.mu.Unlock()

	if undoChanged {
		DispatchCommand(h.editor, CanUndoCommand, canUndo)
	}
	if redoChanged {
		DispatchCommand(h.editor, CanRedoCommand, canRedo)
	}
}
