package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/config"
	"github.com/jmehdipour/saas-gateway/internal/provider"
)

const paddleName = "Paddle"

type billingCycle struct {
	Interval  string `json:"interval"`
	Frequency int    `json:"frequency"`
}

type paddleItem struct {
	PriceID string `json:"price_id"`
}

type paddleParams struct {
	Email          string        `json:"email"`
	Name           string        `json:"name"`
	CountryCode    string        `json:"country_code"`
	CustomerID     string        `json:"customer_id"`
	PriceID        string        `json:"price_id"`
	NewPriceID     string        `json:"new_price_id"`
	SubscriptionID string        `json:"subscription_id"`
	BillingCycle   *billingCycle `json:"billing_cycle"`
}

// NewPaddle registers the Paddle actions. Paddle takes JSON bodies and wraps
// answers in {"data": ...}; only data is returned.
func NewPaddle(cfg config.PaddleConfig) *Registry {
	up := provider.NewUpstream(paddleName, cfg.BaseURL, cfg.APIKey, cfg.TimeoutMs)
	r := NewRegistry(paddleName, func() error {
		if missing := apperr.Missing("PADDLE_API_KEY", cfg.APIKey); len(missing) > 0 {
			return &apperr.ConfigurationError{Service: paddleName, Missing: missing}
		}
		return nil
	})

	r.Register("create_customer", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var p paddleParams
		if err := decode(raw, &p); err != nil {
			return Result{}, err
		}
		if err := require("email", p.Email); err != nil {
			return Result{}, err
		}
		country := p.CountryCode
		if country == "" {
			country = "US"
		}
		return paddleResult(up.JSON(ctx, http.MethodPost, "/customers", map[string]any{
			"email":        p.Email,
			"name":         p.Name,
			"country_code": country,
		}))
	})

	r.Register("create_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var p paddleParams
		if err := decode(raw, &p); err != nil {
			return Result{}, err
		}
		if err := require("customer_id", p.CustomerID); err != nil {
			return Result{}, err
		}
		if err := require("price_id", p.PriceID); err != nil {
			return Result{}, err
		}
		cycle := p.BillingCycle
		if cycle == nil {
			cycle = &billingCycle{Interval: "month", Frequency: 1}
		}
		return paddleResult(up.JSON(ctx, http.MethodPost, "/subscriptions", map[string]any{
			"customer_id":   p.CustomerID,
			"items":         []paddleItem{{PriceID: p.PriceID}},
			"billing_cycle": cycle,
		}))
	})

	r.Register("get_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		id, err := subscriptionID(raw)
		if err != nil {
			return Result{}, err
		}
		return paddleResult(up.JSON(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil))
	})

	r.Register("cancel_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		id, err := subscriptionID(raw)
		if err != nil {
			return Result{}, err
		}
		return paddleResult(up.JSON(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(id)+"/cancel", map[string]any{}))
	})

	r.Register("update_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var p paddleParams
		if err := decode(raw, &p); err != nil {
			return Result{}, err
		}
		if err := require("subscription_id", p.SubscriptionID); err != nil {
			return Result{}, err
		}
		if err := require("new_price_id", p.NewPriceID); err != nil {
			return Result{}, err
		}
		return paddleResult(up.JSON(ctx, http.MethodPatch, "/subscriptions/"+url.PathEscape(p.SubscriptionID), map[string]any{
			"items": []paddleItem{{PriceID: p.NewPriceID}},
		}))
	})

	return r
}

func paddleResult(res *provider.Response, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	if !res.OK() {
		return Result{}, provider.UpstreamError(paddleName, res, "Paddle request failed")
	}
	var body struct {
		Data any `json:"data"`
	}
	if err := res.Decode(&body); err != nil {
		return Result{}, &apperr.ProviderError{Provider: paddleName, StatusCode: http.StatusBadGateway, Message: "invalid Paddle response"}
	}
	return Result{StatusCode: res.StatusCode, Data: body.Data}, nil
}
