package remote

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-board/domain"
	"kanban-board/storage"
)

const (
	DefaultMinDelay    = 1000 * time.Millisecond
	DefaultMaxDelay    = 2000 * time.Millisecond
	DefaultFailureRate = 0.2
)

// Mock is an Adapter over a storage.Collection that sleeps a random latency
// before every call and then fails with a fixed probability.
type Mock struct {
	coll        storage.Collection
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
	logger      *log.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

type MockOption func(*Mock)

// WithLatency sets the inclusive latency range.
func WithLatency(min, max time.Duration) MockOption {
	return func(m *Mock) {
		if max < min {
			max = min
		}
		m.minDelay, m.maxDelay = min, max
	}
}

func WithFailureRate(p float64) MockOption {
	return func(m *Mock) { m.failureRate = p }
}

func WithRand(r *rand.Rand) MockOption {
	return func(m *Mock) { m.rnd = r }
}

func WithSleep(fn func(ctx context.Context, d time.Duration) error) MockOption {
	return func(m *Mock) { m.sleep = fn }
}

func WithClock(now func() time.Time) MockOption {
	return func(m *Mock) { m.now = now }
}

func WithIDs(fn func() string) MockOption {
	return func(m *Mock) { m.newID = fn }
}

func WithLogger(l *log.Logger) MockOption {
	return func(m *Mock) { m.logger = l }
}

func NewMock(coll storage.Collection, opts ...MockOption) *Mock {
	m := &Mock{
		coll:        coll,
		minDelay:    DefaultMinDelay,
		maxDelay:    DefaultMaxDelay,
		failureRate: DefaultFailureRate,
		logger:      log.StandardLogger(),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepCtx,
		now:         time.Now,
		newID:       func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) List(ctx context.Context) ([]domain.Task, error) {
	if err := m.simulate(ctx, OpList); err != nil {
		return nil, err
	}
	tasks, err := m.coll.List(ctx)
	if err != nil {
		return nil, storeErr(OpList, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return tasks, nil
}

func (m *Mock) Create(ctx context.Context, nt domain.NewTask) (domain.Task, error) {
	if err := m.simulate(ctx, OpCreate); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:        m.newID(),
		Title:     nt.Title,
		Status:    nt.Status,
		CreatedAt: m.now().UnixMilli(),
	}
	if err := m.coll.Insert(ctx, t); err != nil {
		return domain.Task{}, storeErr(OpCreate, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	return t, nil
}

func (m *Mock) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := m.simulate(ctx, OpUpdate); err != nil {
		return domain.Task{}, err
	}
	t, err := m.coll.Update(ctx, id, patch)
	if err != nil {
		return domain.Task{}, m.collErr(OpUpdate, err)
	}
	return t, nil
}

func (m *Mock) Delete(ctx context.Context, id string) error {
	if err := m.simulate(ctx, OpDelete); err != nil {
		return err
	}
	if err := m.coll.Delete(ctx, id); err != nil {
		return m.collErr(OpDelete, err)
	}
	return nil
}

func (m *Mock) collErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return storeErr(op, ErrNotFound)
	}
	return storeErr(op, fmt.Errorf("%w: %v", ErrUnavailable, err))
}

// simulate waits the injected latency and rolls the failure dice.
func (m *Mock) simulate(ctx context.Context, op string) error {
	delay, fail := m.roll()
	if err := m.sleep(ctx, delay); err != nil {
		return storeErr(op, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	if fail {
		m.logger.WithFields(log.Fields{"op": op, "delay_ms": delay.Milliseconds()}).Debug("mock store injected failure")
		return storeErr(op, ErrUnavailable)
	}
	return nil
}

func (m *Mock) roll() (time.Duration, bool) {
	m.rndMu.Lock()
	defer m.rndMu.Unlock()
	delay := m.minDelay
	if span := m.maxDelay - m.minDelay; span > 0 {
		delay += time.Duration(m.rnd.Int63n(int64(span) + 1))
	}
	return delay, m.rnd.Float64() < m.failureRate
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
