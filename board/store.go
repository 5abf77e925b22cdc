// Package board holds the client-side board state and keeps it in sync with
// a remote task store through optimistic mutations.
package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
	"kanban-board/notify"
	"kanban-board/remote"
	"kanban-board/storage"
)

var ErrEmptyUsername = errors.New("username is empty")

// Notice messages surfaced for each failing operation.
const (
	MsgLoadFailed   = "Failed to load tasks"
	MsgAddFailed    = "Failed to add task"
	MsgUpdateFailed = "Failed to update task status"
	MsgDeleteFailed = "Failed to delete task"
)

// State is a point-in-time copy of the board.
type State struct {
	User      *domain.User
	Tasks     []domain.Task
	IsLoading bool
	Error     string
}

// Store owns the authoritative in-memory task list. All methods are safe
// for concurrent use; the lock is never held across an adapter call.
type Store struct {
	adapter  remote.Adapter
	identity storage.Slot
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time
	newID    func() string

	mu    sync.Mutex
	state State
	// epoch advances on logout so late results from the old session are dropped.
	epoch uint64

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

type Option func(*Store)

// WithIdentity persists the logged-in user in slot.
func WithIdentity(slot storage.Slot) Option {
	return func(s *Store) { s.identity = slot }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets how provisional task ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store and restores the persisted user, if any.
func New(ctx context.Context, adapter remote.Adapter, opts ...Option) (*Store, error) {
	if adapter == nil {
		return nil, errors.New("board: adapter is nil")
	}
	s := &Store{
		adapter:  adapter,
		identity: storage.NewMemorySlot(),
		notifier: notify.Func(func(notify.Notice) {}),
		logger:   log.StandardLogger(),
		now:      time.Now,
		newID:    uuid.NewString,
		state:    State{Tasks: []domain.Task{}},
		subs:     make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	user, err := loadIdentity(ctx, s.identity)
	switch {
	case errors.Is(err, errUnreadableIdentity):
		s.logger.WithError(err).Warn("ignoring unreadable identity")
	case err != nil:
		return nil, err
	}
	s.state.User = user
	return s, nil
}

// Login sets and persists the user. No network call is made.
func (s *Store) Login(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	user := &domain.User{Username: username}

	s.mu.Lock()
	s.state.User = user
	s.mu.Unlock()
	s.broadcast()

	s.logger.WithField("user", username).Info("logged in")
	return saveIdentity(ctx, s.identity, user)
}

// Logout clears the user and the task list. Calling it again is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasLoggedIn := s.state.User != nil
	s.state = State{Tasks: []domain.Task{}}
	s.epoch++
	s.mu.Unlock()
	s.broadcast()

	if wasLoggedIn {
		s.logger.Info("logged out")
	}
	return saveIdentity(ctx, s.identity, nil)
}

// LoadTasks replaces the task list with the remote one. On failure the
// previous tasks are kept and Error is set. Concurrent loads are not
// serialised: the last response to arrive wins.
func (s *Store) LoadTasks(ctx context.Context) {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Error = ""
	epoch := s.epoch
	s.mu.Unlock()
	s.broadcast()

	tasks, err := s.adapter.List(context.WithoutCancel(ctx))

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.state.IsLoading = false
	if err != nil {
		s.state.Error = err.Error()
		s.mu.Unlock()
		s.broadcast()
		s.logger.WithError(err).Warn("load tasks failed")
		s.notify(notify.KindLoad, MsgLoadFailed, err)
		return
	}
	s.state.Tasks = cloneTasks(tasks)
	s.mu.Unlock()
	s.broadcast()
}

// AddTask appends a provisional task immediately and swaps it for the
// server's task once the create call succeeds. On failure the provisional
// task is removed. Blank titles and unknown statuses are ignored.
func (s *Store) AddTask(ctx context.Context, title string, status domain.Status) Outcome {
	nt := domain.NewTask{Title: title, Status: status}
	if err := nt.Validate(); err != nil {
		s.logger.WithError(err).Debug("ignoring invalid task")
		return Skipped
	}
	tempID := s.newID()
	provisional := domain.Task{
		ID:        tempID,
		Title:     nt.Title,
		Status:    nt.Status,
		CreatedAt: s.now().UnixMilli(),
	}

	var created domain.Task
	return s.apply(ctx, mutation{
		kind:   notify.KindAdd,
		notice: MsgAddFailed,
		local: func(tasks []domain.Task) ([]domain.Task, bool) {
			return append(tasks, provisional), true
		},
		remote: func(ctx context.Context) error {
			var err error
			created, err = s.adapter.Create(remote.WithIdempotencyKey(ctx, tempID), nt)
			return err
		},
		confirm: func(current []domain.Task) []domain.Task {
			out := cloneTasks(current)
			if i := domain.IndexOf(out, tempID); i >= 0 {
				out[i] = created
			}
			return out
		},
		rollback: func(_, current []domain.Task) []domain.Task {
			out := make([]domain.Task, 0, len(current))
			for _, t := range current {
				if t.ID != tempID {
					out = append(out, t)
				}
			}
			return out
		},
	})
}

// UpdateTaskStatus moves a task to another column. It is a no-op when the
// id is unknown. On failure the whole list is restored to the snapshot
// taken before the move, discarding any other change made in between.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status domain.Status) Outcome {
	if !status.Valid() {
		return Skipped
	}
	return s.apply(ctx, mutation{
		kind:   notify.KindUpdate,
		notice: MsgUpdateFailed,
		local: func(tasks []domain.Task) ([]domain.Task, bool) {
			i := domain.IndexOf(tasks, id)
			if i < 0 {
				return nil, false
			}
			tasks[i].Status = status
			return tasks, true
		},
		remote: func(ctx context.Context) error {
			_, err := s.adapter.Update(ctx, id, domain.StatusPatch(status))
			return err
		},
		rollback: restoreSnapshot,
	})
}

// DeleteTask removes a task immediately and restores the whole list if the
// delete call fails. Unknown ids are ignored.
func (s *Store) DeleteTask(ctx context.Context, id string) Outcome {
	return s.apply(ctx, mutation{
		kind:   notify.KindDelete,
		notice: MsgDeleteFailed,
		local: func(tasks []domain.Task) ([]domain.Task, bool) {
			i := domain.IndexOf(tasks, id)
			if i < 0 {
				return nil, false
			}
			return append(tasks[:i], tasks[i+1:]...), true
		},
		remote: func(ctx context.Context) error {
			return s.adapter.Delete(ctx, id)
		},
		rollback: restoreSnapshot,
	})
}

// State returns a copy of the current board state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Tasks = cloneTasks(s.state.Tasks)
	if s.state.User != nil {
		u := *s.state.User
		st.User = &u
	}
	return st
}

func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.state.Tasks)
}

// TasksByStatus returns one column, derived from each task's status.
func (s *Store) TasksByStatus(status domain.Status) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.FilterByStatus(s.state.Tasks, status)
}

func (s *Store) User() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return domain.User{}, false
	}
	return *s.state.User, true
}

// Subscribe returns a channel signalled after every state change. Signals
// are coalesced; read State to get the latest view.
func (s *Store) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch chan struct{}) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

func (s *Store) broadcast() {
	s.subMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.subMu.Unlock()
}

func (s *Store) notify(kind notify.Kind, msg string, err error) {
	s.notifier.Notify(notify.Notice{Kind: kind, Message: msg, Err: err, At: s.now()})
}
