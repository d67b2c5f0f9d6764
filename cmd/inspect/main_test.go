package main

import (
	"bytes"
	"chat-relay/domain"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestDump_Lists_One_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	// Given messages in two conversations
	repository := repositories.NewMessageRepository(db, slog.Default(), nil, nil)
	for _, cmd := range []domain.PostMessageCommand{
		{Message: "hello bob", SenderID: "alice", ReceiverID: "bob"},
		{Message: "hello dave", SenderID: "carol", ReceiverID: "dave"},
		{Message: "hi alice", SenderID: "bob", ReceiverID: "alice"},
	} {
		_, err := repository.Append(ctx, cmd)
		req.NoError(err)
	}

	// When only alice and bob are dumped
	key := domain.NewConversationKey("bob", "alice")
	var out bytes.Buffer
	req.NoError(dump(ctx, db, slog.Default(), &key, 0, &out))

	// Then carol's conversation is absent
	text := out.String()
	req.True(strings.Contains(text, "hello bob"))
	req.True(strings.Contains(text, "hi alice"))
	req.False(strings.Contains(text, "hello dave"))
	req.True(strings.Contains(text, "2 record(s)"))
}

func TestDump_Honours_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := repositories.NewMessageRepository(db, slog.Default(), nil, nil)
	for range 3 {
		_, err := repository.Append(ctx, domain.PostMessageCommand{Message: "m", SenderID: "a", ReceiverID: "b"})
		req.NoError(err)
	}

	var out bytes.Buffer
	req.NoError(dump(ctx, db, slog.Default(), nil, 2, &out))
	req.True(strings.Contains(out.String(), "2 record(s)"))
}

func TestTruncate(t *testing.T) {
	req := require.New(t)
	req.Equal("short", truncate("short", 10))
	req.Equal("abcd…", truncate("abcdefgh", 5))
}

func TestRun_Rejects_Half_Conversation(t *testing.T) {
	err := run([]string{"-db", t.TempDir(), "-a", "alice"}, &bytes.Buffer{})
	require.Error(t, err)
}
