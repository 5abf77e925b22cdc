package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"kanban-board/domain"
	"kanban-board/storage"
)

// IdentityKey is the slot key of the persisted identity document.
const IdentityKey = "kanban-storage"

var errUnreadableIdentity = errors.New("unreadable identity")

// persistedState is the durable part of the board state. Tasks are never
// persisted client side.
type persistedState struct {
	User *domain.User `json:"user"`
}

func loadIdentity(ctx context.Context, slot storage.Slot) (*domain.User, error) {
	data, err := slot.Load(ctx, IdentityKey)
	if errors.Is(err, storage.ErrSlotEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	var ps persistedState
	if err := sonic.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnreadableIdentity, err)
	}
	if ps.User != nil && ps.User.Username == "" {
		return nil, nil
	}
	return ps.User, nil
}

func saveIdentity(ctx context.Context, slot storage.Slot, user *domain.User) error {
	data, err := sonic.Marshal(persistedState{User: user})
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := slot.Store(ctx, IdentityKey, data); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	return nil
}
