package domain

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ConversationKey is the unordered pair of participants exchanging messages.
// NewConversationKey(a, b) and NewConversationKey(b, a) are equal.
type ConversationKey struct {
	first  string
	second string
}

func NewConversationKey(a, b string) ConversationKey {
	if b < a {
		a, b = b, a
	}
	return ConversationKey{first: a, second: b}
}

// Participants returns both identities in canonical order.
func (k ConversationKey) Participants() (string, string) {
	return k.first, k.second
}

// Includes reports whether identity is one of the two participants.
func (k ConversationKey) Includes(identity string) bool {
	return identity == k.first || identity == k.second
}

// Digest returns a fixed-length hex identifier of the pair, usable as a storage prefix.
// Each identity is length-prefixed so that no separator inside an identity can collide.
func (k ConversationKey) Digest() string {
	raw := fmt.Sprintf("%d:%s%d:%s", len(k.first), k.first, len(k.second), k.second)
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("{%s, %s}", k.first, k.second)
}
