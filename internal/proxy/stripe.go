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

const stripeName = "Stripe"

type stripeParams struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	CustomerID        string `json:"customer_id"`
	PriceID           string `json:"price_id"`
	NewPriceID        string `json:"new_price_id"`
	SubscriptionID    string `json:"subscription_id"`
	PaymentBehavior   string `json:"payment_behavior"`
	ProrationBehavior string `json:"proration_behavior"`
	Metadata          struct {
		UserType string `json:"user_type"`
	} `json:"metadata"`
}

// NewStripe registers the Stripe actions. Stripe takes form-encoded bodies.
func NewStripe(cfg config.StripeConfig) *Registry {
	up := provider.NewUpstream(stripeName, cfg.BaseURL, cfg.SecretKey, cfg.TimeoutMs)
	r := NewRegistry(stripeName, func() error {
		if missing := apperr.Missing("STRIPE_SECRET_KEY", cfg.SecretKey); len(missing) > 0 {
			return &apperr.ConfigurationError{Service: stripeName, Missing: missing}
		}
		return nil
	})

	r.Register("create_customer", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var p stripeParams
		if err := decode(raw, &p); err != nil {
			return Result{}, err
		}
		if err := require("email", p.Email); err != nil {
			return Result{}, err
		}
		userType := p.Metadata.UserType
		if userType == "" {
			userType = "crm_user"
		}
		form := url.Values{}
		form.Set("email", p.Email)
		form.Set("name", p.Name)
		form.Set("metadata[user_type]", userType)
		return stripeResult(up.Form(ctx, http.MethodPost, "/customers", form))
	})

	r.Register("create_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var p stripeParams
		if err := decode(raw, &p); err != nil {
			return Result{}, err
		}
		if err := require("customer_id", p.CustomerID); err != nil {
			return Result{}, err
		}
		if err := require("price_id", p.PriceID); err != nil {
			return Result{}, err
		}
		behavior := p.PaymentBehavior
		if behavior == "" {
			behavior = "default_incomplete"
		}
		form := url.Values{}
		form.Set("customer", p.CustomerID)
		form.Set("items[0][price]", p.PriceID)
		form.Set("payment_behavior", behavior)
		form.Set("payment_settings[save_default_payment_method]", "on_subscription")
		form.Set("expand[]", "latest_invoice.payment_intent")
		return stripeResult(up.Form(ctx, http.MethodPost, "/subscriptions", form))
	})

	r.Register("get_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		id, err := subscriptionID(raw)
		if err != nil {
			return Result{}, err
		}
		return stripeResult(up.JSON(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil))
	})

	r.Register("cancel_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		id, err := subscriptionID(raw)
		if err != nil {
			return Result{}, err
		}
		return stripeResult(up.JSON(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil))
	})

	r.Register("update_subscription", func(ctx context.Context, raw json.RawMessage) (Result, error) {
		var p stripeParams
		if err := decode(raw, &p); err != nil {
			return Result{}, err
		}
		if err := require("subscription_id", p.SubscriptionID); err != nil {
			return Result{}, err
		}
		if err := require("new_price_id", p.NewPriceID); err != nil {
			return Result{}, err
		}

		cur, err := up.JSON(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(p.SubscriptionID), nil)
		if err != nil {
			return Result{}, err
		}
		if !cur.OK() {
			return Result{}, provider.UpstreamError(stripeName, cur, "Failed to load subscription")
		}

		var sub struct {
			Items struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"items"`
		}
		if err := cur.Decode(&sub); err != nil || len(sub.Items.Data) == 0 {
			return Result{}, &apperr.ProviderError{Provider: stripeName, StatusCode: http.StatusBadGateway, Message: "Subscription has no items"}
		}

		proration := p.ProrationBehavior
		if proration == "" {
			proration = "create_prorations"
		}
		form := url.Values{}
		form.Set("price", p.NewPriceID)
		form.Set("proration_behavior", proration)
		return stripeResult(up.Form(ctx, http.MethodPost, "/subscription_items/"+url.PathEscape(sub.Items.Data[0].ID), form))
	})

	return r
}

func subscriptionID(raw json.RawMessage) (string, error) {
	var p stripeParams
	if err := decode(raw, &p); err != nil {
		return "", err
	}
	if err := require("subscription_id", p.SubscriptionID); err != nil {
		return "", err
	}
	return p.SubscriptionID, nil
}

func stripeResult(res *provider.Response, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	if !res.OK() {
		return Result{}, provider.UpstreamError(stripeName, res, "Stripe request failed")
	}
	var data any
	if err := res.Decode(&data); err != nil {
		return Result{}, &apperr.ProviderError{Provider: stripeName, StatusCode: http.StatusBadGateway, Message: "invalid Stripe response"}
	}
	return Result{StatusCode: res.StatusCode, Data: data}, nil
}
