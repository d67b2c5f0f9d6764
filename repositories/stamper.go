package repositories

import (
	"chat-relay/domain"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// stamper assigns identity and creation time at persistence time.
// Timestamps never go backwards for a given repository, even if the wall clock does.
type stamper struct {
	mu    sync.Mutex
	clock clock.Clock
	last  time.Time
	seq   uint64
}

func newStamper(clk clock.Clock) *stamper {
	if clk == nil {
		clk = clock.New()
	}
	return &stamper{clock: clk}
}

func (s *stamper) stamp(cmd domain.PostMessageCommand) (domain.ChatMessage, uint64) {
	s.mu.Lock()
	now := s.clock.Now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	return domain.ChatMessage{
		ID:         uuid.New(),
		Message:    cmd.Message,
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		CreatedAt:  now,
	}, seq
}
