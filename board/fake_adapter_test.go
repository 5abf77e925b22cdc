package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kanban-board/domain"
	"kanban-board/remote"
)

// fakeAdapter records calls and delegates to per-operation functions.
// A nil function fails the test's expectations with an error.
type fakeAdapter struct {
	mu    sync.Mutex
	calls []string

	listFn   func(ctx context.Context) ([]domain.Task, error)
	createFn func(ctx context.Context, nt domain.NewTask) (domain.Task, error)
	updateFn func(ctx context.Context, id string, p domain.TaskPatch) (domain.Task, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeAdapter) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeAdapter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAdapter) List(ctx context.Context) ([]domain.Task, error) {
	f.record("list")
	if f.listFn == nil {
		return nil, errors.New("unexpected List call")
	}
	return f.listFn(ctx)
}

func (f *fakeAdapter) Create(ctx context.Context, nt domain.NewTask) (domain.Task, error) {
	f.record("create")
	if f.createFn == nil {
		return domain.Task{}, errors.New("unexpected Create call")
	}
	return f.createFn(ctx, nt)
}

func (f *fakeAdapter) Update(ctx context.Context, id string, p domain.TaskPatch) (domain.Task, error) {
	f.record("update:" + id)
	if f.updateFn == nil {
		return domain.Task{}, errors.New("unexpected Update call")
	}
	return f.updateFn(ctx, id, p)
}

func (f *fakeAdapter) Delete(ctx context.Context, id string) error {
	f.record("delete:" + id)
	if f.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return f.deleteFn(ctx, id)
}

// gate blocks an adapter call until the test releases it.
type gate struct {
	entered chan struct{}
	release chan error
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan error)}
}

func (g *gate) wait() error {
	g.entered <- struct{}{}
	return <-g.release
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting on channel")
	}
	var zero T
	return zero
}

func send[T any](t *testing.T, ch chan<- T, v T) {
	t.Helper()
	select {
	case ch <- v:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out sending on channel")
	}
}

var errInjected = &remote.StoreError{Op: remote.OpUpdate, Err: remote.ErrUnavailable}
