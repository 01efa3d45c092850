package config

import "strings"

// SecretStatus is the verdict for one configured secret.
type SecretStatus string

const (
	SecretConfigured SecretStatus = "configured"
	SecretMissing    SecretStatus = "missing"
	SecretInvalid    SecretStatus = "invalid"
	SecretOptional   SecretStatus = "optional"
)

type SecretCheck struct {
	Key     string       `json:"key"`
	Name    string       `json:"name"`
	Status  SecretStatus `json:"status"`
	Preview string       `json:"preview,omitempty"`
	Hint    string       `json:"hint,omitempty"`
}

type SecretsReport struct {
	Checks     []SecretCheck `json:"checks"`
	Total      int           `json:"total"`
	Configured int           `json:"configured"`
	Missing    int           `json:"missing"`
	Invalid    int           `json:"invalid"`
}

// OK reports whether every required secret is present and well formed.
func (r SecretsReport) OK() bool { return r.Missing == 0 && r.Invalid == 0 }

type secretSpec struct {
	key      string
	name     string
	value    string
	prefix   string
	optional bool
}

// VerifySecrets checks presence and prefix of the third-party credentials.
// Values are never reported in full.
func (c Config) VerifySecrets() SecretsReport {
	specs := []secretSpec{
		{key: "whatsapp.access_token", name: "WhatsApp Access Token", value: c.WhatsApp.AccessToken},
		{key: "whatsapp.phone_number_id", name: "WhatsApp Phone Number ID", value: c.WhatsApp.PhoneNumberID},
		{key: "stripe.secret_key", name: "Stripe Secret Key", value: c.Stripe.SecretKey, prefix: "sk_"},
		{key: "stripe.public_key", name: "Stripe Public Key", value: c.Stripe.PublicKey, prefix: "pk_"},
		{key: "resend.api_key", name: "Resend API Key", value: c.Resend.APIKey, prefix: "re_"},
		{key: "paddle.api_key", name: "Paddle API Key", value: c.Paddle.APIKey, optional: true},
	}

	authValue := c.Auth.JWTSecret
	if authValue == "" {
		authValue = c.Auth.JWKSURL
	}
	specs = append(specs, secretSpec{key: "auth.jwt_secret|auth.jwks_url", name: "Bearer token verification", value: authValue})

	var r SecretsReport
	for _, s := range specs {
		r.Total++
		ch := SecretCheck{Key: s.key, Name: s.name}
		v := strings.TrimSpace(s.value)

		switch {
		case v == "" && s.optional:
			ch.Status = SecretOptional
		case v == "":
			r.Missing++
			ch.Status = SecretMissing
			ch.Hint = "set " + EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(strings.Split(s.key, "|")[0], ".", "_"))
		case s.prefix != "" && !strings.HasPrefix(v, s.prefix):
			r.Configured++
			r.Invalid++
			ch.Status = SecretInvalid
			ch.Hint = "expected prefix " + s.prefix
			ch.Preview = preview(v, 6)
		default:
			r.Configured++
			ch.Status = SecretConfigured
			ch.Preview = preview(v, 6)
		}
		r.Checks = append(r.Checks, ch)
	}
	return r
}

func preview(v string, n int) string {
	if len(v) <= n {
		return "***"
	}
	return v[:n] + "***"
}
