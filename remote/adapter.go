// Package remote defines the contract between the board state store and the
// task store it synchronises with, together with its implementations.
package remote

import (
	"context"
	"errors"

	"kanban-board/domain"
)

// Adapter is the remote task store. Every call either fully commits its
// effect or has none.
type Adapter interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, t domain.NewTask) (domain.Task, error)
	Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	Delete(ctx context.Context, id string) error
}

// Operation names used in StoreError.
const (
	OpList   = "list tasks"
	OpCreate = "create task"
	OpUpdate = "update task"
	OpDelete = "delete task"
)

var (
	// ErrUnavailable covers injected failures and transport errors alike.
	ErrUnavailable = errors.New("remote store unavailable")
	ErrNotFound    = errors.New("task not found")
)

// StoreError is returned by every failing Adapter call.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
