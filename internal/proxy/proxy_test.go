package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/config"
)

func mustParse(t *testing.T, body string) Request {
	t.Helper()
	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("ParseRequest() error: %v", err)
	}
	return req
}

func TestRegistryUnknownAction(t *testing.T) {
	r := NewRegistry("X", nil)
	_, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"refund"}`))

	var ua *apperr.UnknownActionError
	if !errors.As(err, &ua) {
		t.Fatalf("expected UnknownActionError, got %v", err)
	}
	if err.Error() != "Unknown action: refund" || apperr.HTTPStatus(err) != 400 {
		t.Fatalf("unexpected error %q / %d", err.Error(), apperr.HTTPStatus(err))
	}
}

func TestParseRequestInvalid(t *testing.T) {
	if _, err := ParseRequest([]byte(`{`)); apperr.HTTPStatus(err) != 400 {
		t.Fatalf("expected 400 validation error, got %v", err)
	}
}

func TestStripeNotConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	r := NewStripe(config.StripeConfig{BaseURL: srv.URL})
	_, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"get_subscription","subscription_id":"sub_1"}`))

	var ce *apperr.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("upstream called without a secret key")
	}
}

func TestStripeCreateCustomer(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/customers" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(b))
		_, _ = w.Write([]byte(`{"id":"cus_1","object":"customer"}`))
	}))
	defer srv.Close()

	r := NewStripe(config.StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test"})
	res, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"create_customer","email":"a@example.com","name":"A"}`))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.StatusCode != 200 || res.Data.(map[string]any)["id"] != "cus_1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if form.Get("email") != "a@example.com" || form.Get("metadata[user_type]") != "crm_user" {
		t.Fatalf("unexpected form %v", form)
	}
}

func TestStripeUpdateSubscription(t *testing.T) {
	var posted url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subscriptions/sub_1":
			_, _ = w.Write([]byte(`{"id":"sub_1","items":{"data":[{"id":"si_9"}]}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/subscription_items/si_9":
			b, _ := io.ReadAll(r.Body)
			posted, _ = url.ParseQuery(string(b))
			_, _ = w.Write([]byte(`{"id":"si_9"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := NewStripe(config.StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test"})
	_, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"update_subscription","subscription_id":"sub_1","new_price_id":"price_2"}`))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if posted.Get("price") != "price_2" || posted.Get("proration_behavior") != "create_prorations" {
		t.Fatalf("unexpected form %v", posted)
	}
}

func TestStripeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"No such subscription: 'sub_x'"}}`))
	}))
	defer srv.Close()

	r := NewStripe(config.StripeConfig{BaseURL: srv.URL, SecretKey: "sk_test"})
	_, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"cancel_subscription","subscription_id":"sub_x"}`))
	if apperr.HTTPStatus(err) != 404 {
		t.Fatalf("expected 404, got %d (%v)", apperr.HTTPStatus(err), err)
	}
	if err.Error() != "No such subscription: 'sub_x'" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestStripeMissingField(t *testing.T) {
	r := NewStripe(config.StripeConfig{BaseURL: "http://127.0.0.1:1", SecretKey: "sk_test"})
	_, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"get_subscription"}`))

	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "subscription_id" {
		t.Fatalf("expected validation error on subscription_id, got %v", err)
	}
}

func TestPaddleActions(t *testing.T) {
	var last struct {
		method, path string
		body         map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.method, last.path = r.Method, r.URL.Path
		last.body = nil
		_ = json.NewDecoder(r.Body).Decode(&last.body)
		_, _ = w.Write([]byte(`{"data":{"id":"sub_01"}}`))
	}))
	defer srv.Close()

	r := NewPaddle(config.PaddleConfig{BaseURL: srv.URL, APIKey: "pdl_key"})

	cases := []struct {
		body   string
		method string
		path   string
	}{
		{`{"action":"create_customer","email":"a@example.com"}`, http.MethodPost, "/customers"},
		{`{"action":"create_subscription","customer_id":"ctm_1","price_id":"pri_1"}`, http.MethodPost, "/subscriptions"},
		{`{"action":"get_subscription","subscription_id":"sub_01"}`, http.MethodGet, "/subscriptions/sub_01"},
		{`{"action":"cancel_subscription","subscription_id":"sub_01"}`, http.MethodPost, "/subscriptions/sub_01/cancel"},
		{`{"action":"update_subscription","subscription_id":"sub_01","new_price_id":"pri_2"}`, http.MethodPatch, "/subscriptions/sub_01"},
	}

	for _, tc := range cases {
		res, err := r.Dispatch(context.Background(), mustParse(t, tc.body))
		if err != nil {
			t.Fatalf("%s: Dispatch() error: %v", tc.body, err)
		}
		if last.method != tc.method || last.path != tc.path {
			t.Fatalf("%s: expected %s %s, got %s %s", tc.body, tc.method, tc.path, last.method, last.path)
		}
		if res.Data.(map[string]any)["id"] != "sub_01" {
			t.Fatalf("%s: unexpected data %v", tc.body, res.Data)
		}
	}

	if len(r.Actions()) != 5 {
		t.Fatalf("expected 5 actions, got %v", r.Actions())
	}
}

func TestPaddleCreateCustomerDefaults(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"ctm_1"}}`))
	}))
	defer srv.Close()

	r := NewPaddle(config.PaddleConfig{BaseURL: srv.URL, APIKey: "pdl_key"})
	res, err := r.Dispatch(context.Background(), mustParse(t, `{"action":"create_customer","email":"a@example.com"}`))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}
	if body["country_code"] != "US" {
		t.Fatalf("expected default country US, got %v", body["country_code"])
	}
}
