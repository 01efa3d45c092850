package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// MessagesRepository defines persistence for the whatsapp_messages table.
// Rows are insert-only; idempotency_key carries a UNIQUE index.
type MessagesRepository interface {
	// GetByIdempotencyKey returns (nil, nil) when no message uses key.
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Message, error)
	Insert(ctx context.Context, tx *sqlx.Tx, m model.Message) error
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

func (r *MessagesRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *MessagesRepositoryImpl) GetByIdempotencyKey(ctx context.Context, key string) (*model.Message, error) {
	var m model.Message
	err := r.db.GetContext(ctx, &m, `
		SELECT id, idempotency_key, org_id, user_id, client_id, phone_number,
		       message_content, provider_message_id, status, error_detail, created_at
		  FROM whatsapp_messages
		 WHERE idempotency_key = ? LIMIT 1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Insert writes a terminal message row. A second row for the same
// idempotency key fails with a duplicate-key error (see db.IsDuplicateKey).
func (r *MessagesRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, m model.Message) error {
	const q = `
		INSERT INTO whatsapp_messages
		    (id, idempotency_key, org_id, user_id, client_id, phone_number,
		     message_content, provider_message_id, status, error_detail, created_at)
		VALUES
		    (?,  ?,               ?,      ?,       ?,         ?,
		     ?,               ?,                   ?,      ?,            ?)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			m.ID, m.IdempotencyKey, m.OrgID, m.UserID, m.ClientID, m.PhoneNumber,
			m.Content, m.ProviderMessageID, m.Status.String(), m.ErrorDetail, m.CreatedAt,
		)
		return err
	})
}
