package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"kanban-board/domain"
)

// TasksKey is the slot key holding the whole task array.
const TasksKey = "kanban-mock-db"

// ErrNotFound is returned when an id is absent from the collection.
var ErrNotFound = errors.New("task not found")

// Collection is the backing task list behind the remote store.
type Collection interface {
	List(ctx context.Context) ([]domain.Task, error)
	Insert(ctx context.Context, t domain.Task) error
	Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	Delete(ctx context.Context, id string) error
}

// SeedTasks returns the example tasks an empty board starts with.
func SeedTasks(now time.Time) []domain.Task {
	ms := now.UnixMilli()
	return []domain.Task{
		{ID: "1", Title: "Task 1", Status: domain.StatusTodo, CreatedAt: ms},
		{ID: "2", Title: "Task 2", Status: domain.StatusInProgress, CreatedAt: ms},
		{ID: "3", Title: "Task 3", Status: domain.StatusDone, CreatedAt: ms},
	}
}

// SlotCollection keeps the full task array serialized under TasksKey.
// The array is seeded once per process when it is missing, empty or
// unreadable; an emptied board stays empty afterwards.
type SlotCollection struct {
	mu     sync.Mutex
	slot   Slot
	now    func() time.Time
	seeded bool
}

func NewSlotCollection(slot Slot) *SlotCollection {
	return &SlotCollection{slot: slot, now: time.Now}
}

func (c *SlotCollection) List(ctx context.Context) ([]domain.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *SlotCollection) Insert(ctx context.Context, t domain.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, err := c.loadLocked(ctx)
	if err != nil {
		return err
	}
	if domain.IndexOf(tasks, t.ID) >= 0 {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	return c.saveLocked(ctx, append(tasks, t))
}

func (c *SlotCollection) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, err := c.loadLocked(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	i := domain.IndexOf(tasks, id)
	if i < 0 {
		return domain.Task{}, ErrNotFound
	}
	tasks[i] = patch.Apply(tasks[i])
	if err := c.saveLocked(ctx, tasks); err != nil {
		return domain.Task{}, err
	}
	return tasks[i], nil
}

func (c *SlotCollection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks, err := c.loadLocked(ctx)
	if err != nil {
		return err
	}
	i := domain.IndexOf(tasks, id)
	if i < 0 {
		return ErrNotFound
	}
	tasks = append(tasks[:i], tasks[i+1:]...)
	return c.saveLocked(ctx, tasks)
}

func (c *SlotCollection) loadLocked(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	data, err := c.slot.Load(ctx, TasksKey)
	switch {
	case errors.Is(err, ErrSlotEmpty):
	case err != nil:
		return nil, fmt.Errorf("load tasks: %w", err)
	default:
		if uerr := sonic.Unmarshal(data, &tasks); uerr != nil {
			tasks = nil
		}
	}
	if len(tasks) == 0 && !c.seeded {
		c.seeded = true
		tasks = SeedTasks(c.now())
		if err := c.saveLocked(ctx, tasks); err != nil {
			return nil, err
		}
	}
	c.seeded = true
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (c *SlotCollection) saveLocked(ctx context.Context, tasks []domain.Task) error {
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := c.slot.Store(ctx, TasksKey, data); err != nil {
		return fmt.Errorf("store tasks: %w", err)
	}
	return nil
}
