package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/config"
)

const resendName = "Resend"

// Email is an outbound transactional email.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// Mailer sends HTML email through Resend.
type Mailer struct {
	up      *Upstream
	apiKey  string
	from    string
	replyTo string
}

func NewMailer(cfg config.ResendConfig) *Mailer {
	return &Mailer{
		up:      NewUpstream(resendName, cfg.BaseURL, cfg.APIKey, cfg.TimeoutMs),
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}
}

func (m *Mailer) CheckConfigured() error {
	if missing := apperr.Missing("RESEND_API_KEY", m.apiKey); len(missing) > 0 {
		return &apperr.ConfigurationError{Service: "Email", Missing: missing}
	}
	return nil
}

// Send returns the upstream status and decoded body.
func (m *Mailer) Send(ctx context.Context, e Email) (int, any, error) {
	if strings.TrimSpace(e.To) == "" || strings.TrimSpace(e.Subject) == "" || strings.TrimSpace(e.Body) == "" {
		return 0, nil, apperr.Validation("to", "Missing required fields: to, subject, body")
	}
	if err := m.CheckConfigured(); err != nil {
		return 0, nil, err
	}

	replyTo := e.ReplyTo
	if replyTo == "" {
		replyTo = m.replyTo
	}

	payload := map[string]any{
		"from":    m.from,
		"to":      []string{e.To},
		"subject": e.Subject,
		"html":    e.Body,
	}
	if replyTo != "" {
		payload["reply_to"] = replyTo
	}

	res, err := m.up.JSON(ctx, http.MethodPost, "/emails", payload)
	if err != nil {
		return 0, nil, err
	}

	var data any
	_ = res.Decode(&data)
	if !res.OK() {
		return res.StatusCode, nil, UpstreamError(resendName, res, "Failed to send email")
	}
	return res.StatusCode, data, nil
}

// UpstreamError builds a ProviderError from a non-2xx response, preferring
// the provider's own message when the body carries one.
func UpstreamError(name string, res *Response, fallback string) error {
	pe := &apperr.ProviderError{Provider: name, StatusCode: res.StatusCode, Message: fallback}

	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := res.Decode(&body); err != nil {
		return pe
	}

	switch v := body.Error.(type) {
	case string:
		if v != "" {
			pe.Message = v
		}
	case map[string]any:
		// stripe {"error":{"message"}}, paddle {"error":{"detail"}}
		if s, ok := v["message"].(string); ok && s != "" {
			pe.Message = s
		} else if s, ok := v["detail"].(string); ok && s != "" {
			pe.Message = s
		}
	}
	if body.Message != "" && pe.Message == fallback {
		pe.Message = body.Message
	}
	return pe
}
