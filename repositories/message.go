//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v4"
)

// IMessageRepository is the narrow contract the relay needs from durable storage.
// History returns both directions of a conversation, oldest first, and an empty
// slice rather than an error when nothing was exchanged yet.
type IMessageRepository interface {
	Append(ctx context.Context, cmd domain.PostMessageCommand) (domain.ChatMessage, error)
	History(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.ChatMessage, error)
}

const keyPrefix = "chat:"

type MessageRepository struct {
	db           *badger.DB
	log          *slog.Logger
	historyLimit *int
	stamper      *stamper
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, historyLimit *int, clk clock.Clock) MessageRepository {
	return MessageRepository{db: db, log: log, historyLimit: positiveLimit(historyLimit), stamper: newStamper(clk)}
}

// Append persists a message in BadgerDB inside a single transaction.
// The key is formatted as "chat:{conversation_digest}:{timestamp_padded}:{sequence_padded}:{uuid}" to:
//  1. Group both directions of a conversation under one prefix.
//  2. Keep chronological order with 19-digit zero padding (lexicographical order).
//  3. Break ties between messages stamped in the same nanosecond in insertion order.
func (m MessageRepository) Append(ctx context.Context, cmd domain.PostMessageCommand) (domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	message, seq := m.stamper.stamp(cmd)
	key := messageKey(message, seq)
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, marshalMessage(message))
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	m.log.Debug("Message persisted", "message_id", message.ID, "conversation", message.Conversation())
	return message, nil
}

// History retrieves a conversation using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
// When a history limit is configured, the scan runs backwards so that the most recent
// messages are kept, then the result is put back in chronological order.
func (m MessageRepository) History(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	prefix := conversationPrefix(cmd.Conversation())
	reverse := m.historyLimit != nil
	messages := make([]domain.ChatMessage, 0)

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = reverse
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if reverse {
			seekKey = append(slices.Clone(prefix), 0xFF)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if reverse && len(messages) == *m.historyLimit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.historyLimit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := unmarshalMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	if reverse {
		slices.Reverse(messages)
	}
	return messages, nil
}

// positiveLimit treats a missing or non-positive limit as unlimited.
func positiveLimit(limit *int) *int {
	if limit == nil || *limit <= 0 {
		return nil
	}
	return limit
}

func conversationPrefix(key domain.ConversationKey) []byte {
	return []byte(keyPrefix + key.Digest() + ":")
}

func messageKey(message domain.ChatMessage, seq uint64) []byte {
	return fmt.Appendf(conversationPrefix(message.Conversation()), "%019d:%010d:%s",
		message.CreatedAt.UnixNano(), seq, message.ID)
}

// Record is one stored entry as seen by Scan. Err is set when the value could not be decoded.
type Record struct {
	Key     string
	Message domain.ChatMessage
	Err     error
}

// Scan walks the stored messages in key order, restricted to one conversation when key is not nil.
// Undecodable values are reported through Record.Err instead of stopping the walk.
// Returning false from fn ends the walk.
func (m MessageRepository) Scan(ctx context.Context, key *domain.ConversationKey, fn func(Record) bool) error {
	prefix := []byte(keyPrefix)
	if key != nil {
		prefix = conversationPrefix(*key)
	}
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			record := Record{Key: string(item.KeyCopy(nil))}
			if err := item.Value(func(value []byte) error {
				record.Message, record.Err = unmarshalMessage(value)
				return nil
			}); err != nil {
				return err
			}
			if !fn(record) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStore, err)
	}
	return nil
}
