package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T) *badger.DB {
	t.Helper()
	// Reduced to 16 Mo for testing
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC))
	return clk
}

func post(message, sender, receiver string) domain.PostMessageCommand {
	return domain.PostMessageCommand{Message: message, SenderID: sender, ReceiverID: receiver}
}

func fetch(sender, receiver string) domain.FetchMessagesCommand {
	return domain.FetchMessagesCommand{SenderID: sender, ReceiverID: receiver}
}

func bodies(messages []domain.ChatMessage) []string {
	return lo.Map(messages, func(item domain.ChatMessage, _ int) string { return item.Message })
}

func TestMessageRepository_Append_Assigns_Identity_And_Time(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := newClock()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, clk)

	// When a message is appended
	message, err := repository.Append(ctx, post("hi", "u1", "u2"))

	// Then the store assigned an id and the current time
	req.NoError(err)
	req.NotEmpty(message.ID)
	req.Equal(clk.Now().UTC(), message.CreatedAt)
	req.Equal("hi", message.Message)
	req.Equal("u1", message.SenderID)
	req.Equal("u2", message.ReceiverID)
}

func TestMessageRepository_History_Is_Symmetric_And_Sorted(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := newClock()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, clk)

	// Given a conversation in both directions and an unrelated one
	var appended []domain.ChatMessage
	for i, cmd := range []domain.PostMessageCommand{
		post("1", "alice", "bob"),
		post("2", "bob", "alice"),
		post("noise", "alice", "clara"),
		post("3", "alice", "bob"),
	} {
		clk.Add(time.Duration(i+1) * time.Second)
		message, err := repository.Append(ctx, cmd)
		req.NoError(err)
		if cmd.Message != "noise" {
			appended = append(appended, message)
		}
	}

	// When fetching from either side
	fromAlice, err := repository.History(ctx, fetch("alice", "bob"))
	req.NoError(err)
	fromBob, err := repository.History(ctx, fetch("bob", "alice"))
	req.NoError(err)

	// Then both views are equal, oldest first, without the unrelated message
	req.Equal(appended, fromAlice)
	req.Equal(fromAlice, fromBob)
	req.Equal([]string{"1", "2", "3"}, bodies(fromAlice))
}

func TestMessageRepository_History_Empty_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, newClock())

	messages, err := repository.History(context.Background(), fetch("nobody", "else"))

	req.NoError(err)
	req.NotNil(messages)
	req.Empty(messages)
}

func TestMessageRepository_Keeps_Insertion_Order_On_Same_Instant(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	// Given a clock that never moves
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, newClock())

	for i := 0; i < 12; i++ {
		_, err := repository.Append(ctx, post(fmt.Sprintf("m%d", i), "u1", "u2"))
		req.NoError(err)
	}

	messages, err := repository.History(ctx, fetch("u2", "u1"))
	req.NoError(err)
	req.Len(messages, 12)
	for i, m := range messages {
		req.Equal(fmt.Sprintf("m%d", i), m.Message)
	}
}

func TestMessageRepository_CreatedAt_Never_Goes_Backwards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := newClock()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, clk)

	first, err := repository.Append(ctx, post("first", "u1", "u2"))
	req.NoError(err)

	// Given the wall clock jumps back one hour
	clk.Set(clk.Now().Add(-time.Hour))
	second, err := repository.Append(ctx, post("second", "u1", "u2"))
	req.NoError(err)

	// Then the second message is not older than the first one
	req.False(second.CreatedAt.Before(first.CreatedAt))
	messages, err := repository.History(ctx, fetch("u1", "u2"))
	req.NoError(err)
	req.Equal([]string{"first", "second"}, bodies(messages))
}

func TestMessageRepository_History_Is_Monotonic_Under_Append(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := newClock()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, clk)

	_, err := repository.Append(ctx, post("a", "u1", "u2"))
	req.NoError(err)
	before, err := repository.History(ctx, fetch("u1", "u2"))
	req.NoError(err)

	// When the same query is repeated after a new append
	clk.Add(time.Second)
	added, err := repository.Append(ctx, post("b", "u2", "u1"))
	req.NoError(err)
	after, err := repository.History(ctx, fetch("u1", "u2"))
	req.NoError(err)

	// Then the new history is the previous one plus the new message
	req.Equal(append(before, added), after)
}

func TestMessageRepository_History_Limit_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clk := newClock()
	repository := NewMessageRepository(openBadger(t), slog.Default(), lo.ToPtr(2), clk)

	for i := 1; i <= 5; i++ {
		clk.Add(time.Minute)
		_, err := repository.Append(ctx, post(fmt.Sprintf("m%d", i), "u1", "u2"))
		req.NoError(err)
	}

	messages, err := repository.History(ctx, fetch("u1", "u2"))
	req.NoError(err)
	req.Equal([]string{"m4", "m5"}, bodies(messages))
}

func TestMessageRepository_Failures_Are_Store_Errors(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repository := NewMessageRepository(db, slog.Default(), nil, newClock())

	// Given a canceled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repository.Append(ctx, post("hi", "u1", "u2"))
	req.True(stderrors.Is(err, errors.ErrStore))

	// Given the storage is gone
	req.NoError(db.Close())
	_, err = repository.Append(context.Background(), post("hi", "u1", "u2"))
	req.True(stderrors.Is(err, errors.ErrStore))
}

func TestMessageRepository_Scan_Walks_All_Or_One_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := openBadger(t)
	repository := NewMessageRepository(db, slog.Default(), nil, newClock())

	// Given two conversations and one undecodable record
	for _, cmd := range []domain.PostMessageCommand{post("a1", "u1", "u2"), post("b1", "u3", "u4"), post("a2", "u2", "u1")} {
		_, err := repository.Append(ctx, cmd)
		req.NoError(err)
	}
	req.NoError(db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+"broken"), []byte{0xFF, 0xFF})
	}))

	// When every record is scanned
	var all []Record
	req.NoError(repository.Scan(ctx, nil, func(r Record) bool {
		all = append(all, r)
		return true
	}))

	// Then the broken one is reported, not fatal
	req.Len(all, 4)
	broken := lo.Filter(all, func(r Record, _ int) bool { return r.Err != nil })
	req.Len(broken, 1)
	req.ErrorIs(broken[0].Err, errors.ErrCorruptedMessage)

	// When only one conversation is scanned
	key := domain.NewConversationKey("u2", "u1")
	var one []Record
	req.NoError(repository.Scan(ctx, &key, func(r Record) bool {
		one = append(one, r)
		return true
	}))

	// Then its messages come back in order
	req.Equal([]string{"a1", "a2"}, lo.Map(one, func(r Record, _ int) string { return r.Message.Message }))
}

func TestMessageRepository_Scan_Stops_Early(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openBadger(t), slog.Default(), nil, newClock())
	for i := range 5 {
		_, err := repository.Append(ctx, post(fmt.Sprintf("m%d", i), "u1", "u2"))
		req.NoError(err)
	}

	seen := 0
	req.NoError(repository.Scan(ctx, nil, func(Record) bool {
		seen++
		return seen < 2
	}))
	req.Equal(2, seen)
}
