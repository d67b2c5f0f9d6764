package main

import (
	"chat-relay/domain/event"
	"encoding/json"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func toFrame(t *testing.T, name event.Name, data any) frame {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return frame{Event: name, Data: raw}
}

func TestRender(t *testing.T) {
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })
	at := time.Date(2024, 10, 1, 12, 0, 0, 0, time.Local)
	mine := event.MessageRecord{ID: "1", Message: "hi", SenderID: "alice", ReceiverID: "bob", CreatedAt: at}
	foreign := event.MessageRecord{ID: "2", Message: "psst", SenderID: "carol", ReceiverID: "dave", CreatedAt: at}

	t.Run("own conversation", func(t *testing.T) {
		lines := render(toFrame(t, event.ChatMessage, mine), "alice", "bob")
		require.Equal(t, []string{"[12:00:00] alice: hi"}, lines)
	})
	t.Run("foreign conversation is hidden", func(t *testing.T) {
		require.Empty(t, render(toFrame(t, event.ChatMessage, foreign), "alice", "bob"))
	})
	t.Run("history", func(t *testing.T) {
		lines := render(toFrame(t, event.ChatHistory, []event.MessageRecord{mine}), "bob", "alice")
		require.Equal(t, []string{"--- 1 message(s) in history ---", "[12:00:00] alice: hi"}, lines)
	})
	t.Run("error", func(t *testing.T) {
		lines := render(toFrame(t, event.Error, event.ErrorPayload{Message: "Failed to save message"}), "alice", "bob")
		require.Equal(t, []string{"! Failed to save message"}, lines)
	})
}

func TestSocketURL_Adds_UserId(t *testing.T) {
	u, err := socketURL("ws://localhost:8080/api/chat/socket", "alice")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/api/chat/socket?userId=alice", u)
}
