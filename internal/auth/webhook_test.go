package auth

import "testing"

func TestWebhookVerifier_ValidSignature(t *testing.T) {
	v := NewWebhookVerifier("test-secret")
	body := []byte(`{"job_id":"abc","status":"completed"}`)

	if !v.Verify(body, v.Sign(body)) {
		t.Error("expected valid signature to verify")
	}
}

func TestWebhookVerifier_RejectsTamperedBody(t *testing.T) {
	v := NewWebhookVerifier("test-secret")
	sig := v.Sign([]byte(`{"job_id":"abc","status":"completed"}`))

	if v.Verify([]byte(`{"job_id":"abc","status":"failed"}`), sig) {
		t.Error("expected tampered body to fail verification")
	}
}

func TestWebhookVerifier_RejectsWrongSecret(t *testing.T) {
	signer := NewWebhookVerifier("other-secret")
	v := NewWebhookVerifier("test-secret")
	body := []byte(`{"job_id":"abc"}`)

	if v.Verify(body, signer.Sign(body)) {
		t.Error("expected signature from another secret to fail")
	}
}

func TestWebhookVerifier_FailsClosed(t *testing.T) {
	body := []byte(`{"job_id":"abc"}`)

	v := NewWebhookVerifier("test-secret")
	if v.Verify(body, "") {
		t.Error("missing signature must be invalid")
	}
	if v.Verify(body, "not-hex!") {
		t.Error("malformed signature must be invalid")
	}

	unconfigured := NewWebhookVerifier("")
	if unconfigured.Verify(body, unconfigured.Sign(body)) {
		t.Error("unconfigured secret must reject all callbacks")
	}
}
