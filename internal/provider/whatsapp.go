package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/config"
)

const whatsappName = "WhatsApp"

// WhatsAppClient sends text messages through the WhatsApp Cloud API.
// Credentials are taken from config once, at construction.
type WhatsAppClient struct {
	up            *Upstream
	apiVersion    string
	phoneNumberID string
	token         string
	br            *Breaker
}

func NewWhatsAppClient(cfg config.WhatsAppConfig) *WhatsAppClient {
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}

	return &WhatsAppClient{
		up:            NewUpstream(whatsappName, cfg.BaseURL, cfg.AccessToken, cfg.TimeoutMs),
		apiVersion:    version,
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		br:            NewBreaker(cfg.Breaker.FailThreshold, time.Duration(cfg.Breaker.OpenForMs)*time.Millisecond),
	}
}

func (c *WhatsAppClient) Name() string { return whatsappName }

// CheckConfigured returns a ConfigurationError naming the missing secrets.
func (c *WhatsAppClient) CheckConfigured() error {
	missing := apperr.Missing(
		"WHATSAPP_ACCESS_TOKEN", c.token,
		"WHATSAPP_PHONE_NUMBER_ID", c.phoneNumberID,
	)
	if len(missing) > 0 {
		return &apperr.ConfigurationError{Service: whatsappName, Missing: missing}
	}
	return nil
}

// BreakerState exposes the circuit state for diagnostics.
func (c *WhatsAppClient) BreakerState() string { return c.br.State() }

type waText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type waSendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             waText `json:"text"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type waErrorResponse struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FbTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendText issues exactly one send; it never retries. Errors are
// *apperr.ProviderError; Unavailable is set when no request went out.
func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) (string, error) {
	if !c.br.TryAcquire() {
		return "", &apperr.ProviderError{Provider: whatsappName, Unavailable: true}
	}

	res, err := c.up.JSON(ctx, http.MethodPost, "/"+c.apiVersion+"/"+c.phoneNumberID+"/messages", waSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             waText{PreviewURL: false, Body: body},
	})
	if err != nil {
		c.br.OnFailure()
		return "", err
	}

	if !res.OK() {
		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			c.br.OnFailure()
		} else {
			c.br.OnSuccess()
		}
		return "", whatsappError(res)
	}
	c.br.OnSuccess()

	var out waSendResponse
	if err := res.Decode(&out); err != nil || len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", &apperr.ProviderError{
			Provider:   whatsappName,
			StatusCode: http.StatusBadGateway,
			Message:    "WhatsApp response did not include a message id",
		}
	}

	return out.Messages[0].ID, nil
}

func whatsappError(res *Response) error {
	pe := &apperr.ProviderError{
		Provider:   whatsappName,
		StatusCode: res.StatusCode,
		Message:    "Failed to send WhatsApp message",
	}

	var er waErrorResponse
	if err := res.Decode(&er); err == nil && er.Error != nil {
		pe.Code = er.Error.Code
		if er.Error.Message != "" {
			pe.Message = er.Error.Message
		}
	}
	return pe
}

// IsNotIssued reports whether err means the provider was never called.
func IsNotIssued(err error) bool {
	var pe *apperr.ProviderError
	var ce *apperr.ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	return errors.As(err, &pe) && pe.Unavailable
}
