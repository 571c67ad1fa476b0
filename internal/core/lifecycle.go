package core

import (
	"context"
	"errors"

	"github.com/relaychat/relaychat-server/internal/store"
)

// Lifecycle mutates the two mutable fields a message has after creation:
// its reaction sequence and its read set. Durability is delegated to the
// persistence collaborator; callers receive the post-mutation snapshot for
// fanout.
type Lifecycle struct {
	messages store.MessageStore
}

// NewLifecycle constructs a message lifecycle tracker over the given store.
func NewLifecycle(messages store.MessageStore) *Lifecycle {
	return &Lifecycle{messages: messages}
}

// AddReaction appends a reaction symbol to a message. Symbols are free-form
// and duplicates accumulate. Returns ErrNotFound if the message does not
// resolve.
func (l *Lifecycle) AddReaction(ctx context.Context, messageID, symbol string) (*store.Message, error) {
	msg, err := l.messages.AppendReaction(ctx, messageID, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("append reaction", err)
	}
	return msg, nil
}

// MarkRead inserts a reader into a message's read set. Re-marking is
// idempotent. Returns ErrNotFound if the message does not resolve.
func (l *Lifecycle) MarkRead(ctx context.Context, messageID, reader string) (*store.Message, error) {
	msg, err := l.messages.MarkRead(ctx, messageID, reader)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("mark read", err)
	}
	return msg, nil
}
