// Package drag turns drag gestures over the board into status updates.
package drag

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"kanban-board/board"
	"kanban-board/domain"
)

// Board is the part of the task store a drag gesture needs.
type Board interface {
	Tasks() []domain.Task
	UpdateTaskStatus(ctx context.Context, id string, status domain.Status) board.Outcome
}

// Result is the decision taken when a drag ends.
type Result int

const (
	// NoTarget means the drop was outside any column or either side could
	// not be resolved.
	NoTarget Result = iota
	SameColumn
	Moved
)

func (r Result) String() string {
	switch r {
	case Moved:
		return "moved"
	case SameColumn:
		return "same column"
	default:
		return "no target"
	}
}

// Translator tracks the task being dragged. Only End mutates the board.
type Translator struct {
	board  Board
	logger *log.Logger

	mu     sync.Mutex
	active string
}

func New(b Board) *Translator {
	return &Translator{board: b, logger: log.StandardLogger()}
}

// WithLogger replaces the logger and returns t.
func (t *Translator) WithLogger(l *log.Logger) *Translator {
	t.logger = l
	return t
}

func (t *Translator) Start(activeID string) {
	t.mu.Lock()
	t.active = activeID
	t.mu.Unlock()
}

// Over reports hover. Hovering never changes state.
func (t *Translator) Over(activeID, overID string) {}

// Active returns the task being dragged, for rendering an overlay.
func (t *Translator) Active() (domain.Task, bool) {
	t.mu.Lock()
	id := t.active
	t.mu.Unlock()
	if id == "" {
		return domain.Task{}, false
	}
	tasks := t.board.Tasks()
	if i := domain.IndexOf(tasks, id); i >= 0 {
		return tasks[i], true
	}
	return domain.Task{}, false
}

func (t *Translator) Cancel() {
	t.mu.Lock()
	t.active = ""
	t.mu.Unlock()
}

// End clears the active task and, when the drop lands in another column,
// issues exactly one status update for activeID. An empty overID is a drop
// outside every column.
func (t *Translator) End(ctx context.Context, activeID, overID string) (Result, board.Outcome) {
	t.Cancel()
	if overID == "" {
		return NoTarget, board.Skipped
	}
	tasks := t.board.Tasks()
	from, ok := container(tasks, activeID)
	if !ok {
		return NoTarget, board.Skipped
	}
	to, ok := container(tasks, overID)
	if !ok {
		return NoTarget, board.Skipped
	}
	if from == to {
		return SameColumn, board.Skipped
	}
	out := t.board.UpdateTaskStatus(ctx, activeID, to)
	t.logger.WithFields(log.Fields{
		"task":    activeID,
		"from":    string(from),
		"to":      string(to),
		"outcome": out.String(),
	}).Debug("drag ended")
	return Moved, out
}

// container resolves an id to a column: a status id is the column itself,
// otherwise the column of the task with that id.
func container(tasks []domain.Task, id string) (domain.Status, bool) {
	if s := domain.Status(id); s.Valid() {
		return s, true
	}
	if i := domain.IndexOf(tasks, id); i >= 0 {
		return tasks[i].Status, true
	}
	return "", false
}
