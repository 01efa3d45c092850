// Package proxy forwards named actions to third-party billing APIs.
package proxy

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/metrics"
)

// Request is the body accepted by an action proxy route: an action name
// next to the action's own fields, e.g. {"action":"get_subscription","subscription_id":"sub_1"}.
type Request struct {
	Action string
	Params json.RawMessage
}

// ParseRequest splits a raw proxy body into its action and params.
func ParseRequest(body []byte) (Request, error) {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return Request{}, apperr.Validation("body", "invalid request body")
	}
	return Request{Action: strings.TrimSpace(head.Action), Params: body}, nil
}

// Result is a successful upstream answer.
type Result struct {
	StatusCode int
	Data       any
}

// Action performs one upstream call for the decoded request data.
type Action func(ctx context.Context, data json.RawMessage) (Result, error)

// Registry maps action names to actions for a single provider.
type Registry struct {
	provider string
	check    func() error
	actions  map[string]Action
}

// NewRegistry returns an empty registry. check, when set, runs before any
// action and should return a ConfigurationError if secrets are missing.
func NewRegistry(provider string, check func() error) *Registry {
	return &Registry{provider: provider, check: check, actions: map[string]Action{}}
}

func (r *Registry) Provider() string { return r.provider }

func (r *Registry) Register(name string, a Action) {
	r.actions[name] = a
}

// Actions lists registered action names in order.
func (r *Registry) Actions() []string {
	out := make([]string, 0, len(r.actions))
	for k := range r.actions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the named action.
func (r *Registry) Dispatch(ctx context.Context, req Request) (res Result, err error) {
	name := strings.TrimSpace(req.Action)
	label := name
	defer func() {
		metrics.ProxyCallsTotal.WithLabelValues(r.provider, label, metrics.Outcome(err)).Inc()
	}()

	a, ok := r.actions[name]
	if !ok {
		label = "unknown"
		return Result{}, &apperr.UnknownActionError{Action: name}
	}

	if r.check != nil {
		if err = r.check(); err != nil {
			return Result{}, err
		}
	}

	return a(ctx, req.Params)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperr.Validation("body", "invalid request body")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	return nil
}

func require(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(field, "Missing required field: "+field)
	}
	return nil
}
