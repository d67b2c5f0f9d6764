package domain

import (
	"chat-relay/errors"
	"fmt"
	"strings"
)

// RoutingMode selects which connections receive a persisted message.
type RoutingMode string

const (
	// RoutingBroadcast delivers every message to every registered connection.
	RoutingBroadcast RoutingMode = "broadcast"
	// RoutingConversation delivers only to connections bound to the sender or the receiver.
	RoutingConversation RoutingMode = "conversation"
)

func ParseRoutingMode(s string) (RoutingMode, error) {
	switch RoutingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoutingBroadcast:
		return RoutingBroadcast, nil
	case RoutingConversation:
		return RoutingConversation, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidRouting, s)
	}
}
