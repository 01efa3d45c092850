package model

import "time"

// SendRequest is the inbound WhatsApp send payload.
type SendRequest struct {
	To             string `json:"to"              validate:"required,e164strict"`
	Message        string `json:"message"         validate:"required,max=4096"`
	OrgID          string `json:"org_id"          validate:"required,max=64"`
	ClientID       string `json:"client_id"       validate:"max=64"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=255"`
	Timestamp      string `json:"timestamp"`
}

// SendResult is what the messaging service reports back for one send.
type SendResult struct {
	MessageID         string
	ProviderMessageID string
	Status            MessageStatus
	Recipient         string
	Duplicate         bool
	CreatedAt         time.Time

	// Warning is set when the provider accepted the message but the record
	// could not be saved. The send itself still succeeded.
	Warning error
}
