package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// WebhookVerifier authenticates callbacks from the external worker. The
// worker signs the raw request body with HMAC-SHA256 over a shared secret
// and sends the hex digest in the signature header.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify reports whether signature is a valid digest of body. A missing or
// malformed signature is invalid, and an unconfigured secret rejects
// everything: this check fails closed.
func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the signature the worker is expected to send for body.
// Exposed for tests and for the worker simulator.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
