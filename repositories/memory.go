package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
)

// MemoryRepository keeps messages in process memory, in insertion order.
// Nothing survives a restart; it backs STORE_DRIVER=memory and tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	messages     []domain.ChatMessage
	historyLimit *int
	stamper      *stamper
}

func NewMemoryRepository(historyLimit *int, clk clock.Clock) *MemoryRepository {
	return &MemoryRepository{historyLimit: positiveLimit(historyLimit), stamper: newStamper(clk)}
}

func (r *MemoryRepository) Append(ctx context.Context, cmd domain.PostMessageCommand) (domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Stamped under the write lock so slice order and timestamp order agree.
	message, _ := r.stamper.stamp(cmd)
	r.messages = append(r.messages, message)
	return message, nil
}

func (r *MemoryRepository) History(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	key := cmd.Conversation()
	r.mu.RLock()
	messages := lo.Filter(r.messages, func(item domain.ChatMessage, _ int) bool {
		return item.Conversation() == key
	})
	r.mu.RUnlock()

	if r.historyLimit != nil && len(messages) > *r.historyLimit {
		messages = messages[len(messages)-*r.historyLimit:]
	}
	return messages, nil
}
