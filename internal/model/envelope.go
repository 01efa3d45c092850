package model

// Envelope is the payload published to Kafka (via Debezium outbox SMT) for
// every persisted message; the audit worker decodes it.
type Envelope struct {
	Event   string  `json:"event"` // "whatsapp.message.recorded"
	Message Message `json:"message"`
}

const EventMessageRecorded = "whatsapp.message.recorded"
