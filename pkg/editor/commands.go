package editor

import (
	"slices"
	"sync"
)

// Command is a named intent with a typed payload.
type Command[P any] struct {
	name string
}

func NewCommand[P any](name string) Command[P] {
	return Command[P]{name: name}
}

func (c Command[P]) Name() string {
	return c.name
}

type Priority int

const (
	PriorityEditor Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// CommandHandler returns true when it fully handled the payload and lower priority handlers
// must not run.
type CommandHandler[P any] func(payload P) bool

type Empty struct{}

var (
	SelectionChangeCommand = NewCommand[Empty]("SELECTION_CHANGE_COMMAND")
	UndoCommand            = NewCommand[Empty]("UNDO_COMMAND")
	RedoCommand            = NewCommand[Empty]("REDO_COMMAND")
	CanUndoCommand         = NewCommand[bool]("CAN_UNDO_COMMAND")
	CanRedoCommand         = NewCommand[bool]("CAN_REDO_COMMAND")
	FormatTextCommand      = NewCommand[TextFormat]("FORMAT_TEXT_COMMAND")
	FormatElementCommand   = NewCommand[Alignment]("FORMAT_ELEMENT_COMMAND")
	InsertListCommand      = NewCommand[ListType]("INSERT_LIST_COMMAND")
	RemoveListCommand      = NewCommand[Empty]("REMOVE_LIST_COMMAND")
)

type registeredHandler struct {
	id       uint64
	priority Priority
	fn       func(any) bool
}

type commandRegistry struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]registeredHandler
}

func (r *commandRegistry) register(name string, priority Priority, fn func(any) bool) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string][]registeredHandler)
	}
	r.nextID++
	id := r.nextID
	r.handlers[name] = append(r.handlers[name], registeredHandler{id: id, priority: priority, fn: fn})
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.handlers[name] = slices.DeleteFunc(r.handlers[name], func(h registeredHandler) bool {
				return h.id == id
			})
		})
	}
}

// snapshot returns the handlers for name, highest priority first and in registration order
// within a priority.
func (r *commandRegistry) snapshot(name string) []registeredHandler {
	r.mu.Lock()
	out := slices.Clone(r.handlers[name])
	r.mu.Unlock()
	slices.SortStableFunc(out, func(a, b registeredHandler) int {
		return int(b.priority) - int(a.priority)
	})
	return out
}

// RegisterCommand adds a handler for cmd and returns the function that removes it.
func RegisterCommand[P any](e *Editor, cmd Command[P], fn CommandHandler[P], priority Priority) func() {
	return e.commands.register(cmd.name, priority, func(payload any) bool {
		p, _ := payload.(P)
		return fn(p)
	})
}

// DispatchCommand runs the handlers of cmd until one of them reports it handled the payload.
// It must not be called from inside an Update closure.
func DispatchCommand[P any](e *Editor, cmd Command[P], payload P) bool {
	for _, h := range e.commands.snapshot(cmd.name) {
		if h.fn(payload) {
			return true
		}
	}
	return false
}

// MergeRegister combines several unregister functions into one that runs them in reverse.
func MergeRegister(fns ...func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
