package model

import "time"

type MessageStatus string

const (
	StatusSent   MessageStatus = "sent"
	StatusFailed MessageStatus = "failed"
)

func (s MessageStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the terminal statuses; no intermediate
// state is ever stored.
func (s MessageStatus) Valid() bool {
	return s == StatusSent || s == StatusFailed
}

// Message is the DB entity persisted in the whatsapp_messages table.
// One row per idempotency key; rows are never updated.
type Message struct {
	ID                string        `db:"id"                  json:"id"`
	IdempotencyKey    string        `db:"idempotency_key"     json:"idempotency_key"`
	OrgID             string        `db:"org_id"              json:"org_id"`
	UserID            string        `db:"user_id"             json:"user_id"`
	ClientID          *string       `db:"client_id"           json:"client_id,omitempty"` // nullable
	PhoneNumber       string        `db:"phone_number"        json:"phone_number"`
	Content           string        `db:"message_content"     json:"message_content"`
	ProviderMessageID *string       `db:"provider_message_id" json:"provider_message_id,omitempty"` // nullable
	Status            MessageStatus `db:"status"              json:"status"`
	ErrorDetail       *string       `db:"error_detail"        json:"error_detail,omitempty"` // nullable
	CreatedAt         time.Time     `db:"created_at"          json:"created_at"`
}

// ProviderID returns the provider message id or "" when the send failed.
func (m Message) ProviderID() string {
	if m.ProviderMessageID == nil {
		return ""
	}
	return *m.ProviderMessageID
}
