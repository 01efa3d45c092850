package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 1 << 20

// Upstream is a bearer-authenticated HTTP client for one third-party API.
type Upstream struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
}

// Response is a raw upstream answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode/100 == 2 }

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

func NewUpstream(name, baseURL, token string, timeoutMs int) *Upstream {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	return &Upstream{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

func (u *Upstream) Name() string { return u.name }

// JSON sends payload (nil for no body) as application/json.
func (u *Upstream) JSON(ctx context.Context, method, path string, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, u.notIssued(fmt.Errorf("marshal payload: %w", err))
		}
		body = bytes.NewReader(b)
	}
	return u.do(ctx, method, path, body, "application/json")
}

// Form sends form as application/x-www-form-urlencoded.
func (u *Upstream) Form(ctx context.Context, method, path string, form url.Values) (*Response, error) {
	return u.do(ctx, method, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (u *Upstream) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, body)
	if err != nil {
		return nil, u.notIssued(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+u.token)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := u.client.Do(req)
	if err != nil {
		return nil, u.transportError(err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, u.transportError(err)
	}

	return &Response{StatusCode: res.StatusCode, Body: b}, nil
}

// notIssued reports a failure before anything was sent upstream.
func (u *Upstream) notIssued(err error) error {
	return &apperr.ProviderError{
		Provider:    u.name,
		Unavailable: true,
		Message:     fmt.Sprintf("%s request not sent: %v", u.name, err),
	}
}

func (u *Upstream) transportError(err error) error {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())

	return &apperr.ProviderError{
		Provider: u.name,
		Timeout:  timeout,
		Message:  fmt.Sprintf("%s request failed: %v", u.name, err),
	}
}
