package board

import (
	"context"

	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
	"kanban-board/notify"
)

// Outcome is the terminal state of one optimistic mutation.
type Outcome int

const (
	// Skipped means the mutation was never applied (unknown id, bad input).
	Skipped Outcome = iota
	Confirmed
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled back"
	default:
		return "skipped"
	}
}

// mutation describes one optimistic change. Task slices handed to the
// callbacks are never modified in place; every callback returns a new slice.
type mutation struct {
	kind   notify.Kind
	notice string
	// local applies the change to a private copy; ok=false skips the mutation.
	local func(tasks []domain.Task) (next []domain.Task, ok bool)
	// remote performs the adapter call.
	remote func(ctx context.Context) error
	// confirm reconciles after success; nil keeps the optimistic state.
	confirm func(current []domain.Task) []domain.Task
	// rollback produces the list after failure from the pre-mutation
	// snapshot and the current list.
	rollback func(snapshot, current []domain.Task) []domain.Task
}

func restoreSnapshot(snapshot, _ []domain.Task) []domain.Task { return snapshot }

// apply runs the optimistic protocol: local change under the lock, adapter
// call without it, then confirm or roll back. Results that arrive after a
// logout are dropped.
func (s *Store) apply(ctx context.Context, m mutation) Outcome {
	s.mu.Lock()
	snapshot := s.state.Tasks
	next, ok := m.local(cloneTasks(snapshot))
	if !ok {
		s.mu.Unlock()
		return Skipped
	}
	s.state.Tasks = next
	epoch := s.epoch
	s.mu.Unlock()
	s.broadcast()

	err := m.remote(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.WithField("op", string(m.kind)).Debug("dropping result from previous session")
		if err != nil {
			return RolledBack
		}
		return Confirmed
	}
	if err != nil {
		s.state.Tasks = m.rollback(snapshot, s.state.Tasks)
		s.mu.Unlock()
		s.broadcast()
		s.logger.WithFields(log.Fields{"op": string(m.kind)}).WithError(err).Warn("optimistic mutation rolled back")
		s.notify(m.kind, m.notice, err)
		return RolledBack
	}
	if m.confirm != nil {
		s.state.Tasks = m.confirm(s.state.Tasks)
	}
	s.mu.Unlock()
	s.broadcast()
	return Confirmed
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out
}
