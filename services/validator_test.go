package services

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePayload_Rejects_Blank_Fields(t *testing.T) {
	cases := map[string]event.ChatMessagePayload{
		"spaces only message":     {Message: "   ", SenderID: "alice", ReceiverID: "bob"},
		"tabs and newlines":       {Message: "\t\n", SenderID: "alice", ReceiverID: "bob"},
		"unit separator only":     {Message: " \x1f ", SenderID: "alice", ReceiverID: "bob"},
		"blank sender identity":   {Message: "hi", SenderID: " ", ReceiverID: "bob"},
		"blank receiver identity": {Message: "hi", SenderID: "alice", ReceiverID: "\t"},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, validatePayload(payload), errors.ErrValidation)
		})
	}
}

func TestValidatePayload_Accepts_Padded_Text(t *testing.T) {
	req := require.New(t)

	// Given a message with surrounding whitespace
	payload := event.ChatMessagePayload{Message: "  hi  ", SenderID: "alice", ReceiverID: "bob"}

	// Then it is valid as sent
	req.NoError(validatePayload(payload))
	req.NoError(validatePayload(event.FetchMessagesPayload{SenderID: "alice", ReceiverID: "bob"}))
}
