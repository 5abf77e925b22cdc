package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSQLiteSlotPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	slot, err := OpenSQLiteSlot(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := slot.Load(ctx, "kanban-storage"); !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
	if err := slot.Store(ctx, "kanban-storage", []byte(`{"user":null}`)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := slot.Store(ctx, "kanban-storage", []byte(`{"user":{"username":"ada"}}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := slot.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLiteSlot(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	data, err := reopened.Load(ctx, "kanban-storage")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"user":{"username":"ada"}}` {
		t.Fatalf("unexpected value %s", data)
	}
}
