package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmehdipour/saas-gateway/internal/db"
	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrDuplicateKey is returned by Record when the idempotency key was
// recorded concurrently by another request.
var ErrDuplicateKey = errors.New("idempotency key already recorded")

// MessageRecorder writes a message row and its outbox event atomically.
type MessageRecorder struct {
	db     *sqlx.DB
	msgs   MessagesRepository
	outbox OutboxRepository
	topic  string
}

func NewMessageRecorder(db *sqlx.DB, msgs MessagesRepository, outbox OutboxRepository, topic string) *MessageRecorder {
	if topic == "" {
		topic = "whatsapp.messages"
	}
	return &MessageRecorder{db: db, msgs: msgs, outbox: outbox, topic: topic}
}

// Find looks a message up by idempotency key.
func (r *MessageRecorder) Find(ctx context.Context, key string) (*model.Message, error) {
	return r.msgs.GetByIdempotencyKey(ctx, key)
}

// Record persists m and publishes it through the outbox in one transaction.
func (r *MessageRecorder) Record(ctx context.Context, m model.Message) error {
	payload, err := json.Marshal(model.Envelope{Event: model.EventMessageRecorded, Message: m})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.msgs.Insert(ctx, tx, m); err != nil {
		if db.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return fmt.Errorf("insert message: %w", err)
	}

	ev := model.OutboxEvent{
		Aggregate:   "whatsapp_message",
		AggregateID: m.ID,
		Topic:       r.topic,
		Payload:     payload,
	}
	if err := r.outbox.Insert(ctx, tx, ev); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return tx.Commit()
}
