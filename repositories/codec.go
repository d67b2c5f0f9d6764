package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Stored values use the protobuf wire format so records stay forward compatible:
// unknown fields are skipped on read.
const (
	fieldID         protowire.Number = 1
	fieldMessage    protowire.Number = 2
	fieldSenderID   protowire.Number = 3
	fieldReceiverID protowire.Number = 4
	fieldCreatedAt  protowire.Number = 5
)

func marshalMessage(m domain.ChatMessage) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, m.ID.String())
	b = protowire.AppendTag(b, fieldMessage, protowire.BytesType)
	b = protowire.AppendString(b, m.Message)
	b = protowire.AppendTag(b, fieldSenderID, protowire.BytesType)
	b = protowire.AppendString(b, m.SenderID)
	b = protowire.AppendTag(b, fieldReceiverID, protowire.BytesType)
	b = protowire.AppendString(b, m.ReceiverID)
	b = protowire.AppendTag(b, fieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	return b
}

func unmarshalMessage(b []byte) (domain.ChatMessage, error) {
	var m domain.ChatMessage
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.ChatMessage{}, corrupted(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num >= fieldID && num <= fieldReceiverID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.ChatMessage{}, corrupted(protowire.ParseError(n))
			}
			b = b[n:]
			if err := assign(&m, num, v); err != nil {
				return domain.ChatMessage{}, err
			}
		case typ == protowire.VarintType && num == fieldCreatedAt:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.ChatMessage{}, corrupted(protowire.ParseError(n))
			}
			b = b[n:]
			m.CreatedAt = time.Unix(0, int64(v)).UTC()
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.ChatMessage{}, corrupted(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if m.ID == uuid.Nil {
		return domain.ChatMessage{}, corrupted(fmt.Errorf("missing id"))
	}
	return m, nil
}

func assign(m *domain.ChatMessage, num protowire.Number, v string) error {
	switch num {
	case fieldID:
		id, err := uuid.Parse(v)
		if err != nil {
			return corrupted(err)
		}
		m.ID = id
	case fieldMessage:
		m.Message = v
	case fieldSenderID:
		m.SenderID = v
	case fieldReceiverID:
		m.ReceiverID = v
	}
	return nil
}

func corrupted(err error) error {
	return fmt.Errorf("%w: %v", errors.ErrCorruptedMessage, err)
}
