package inbound

import "testing"

func TestSignatureVerifyRoundTrip(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"body":"ping","event":"sms_received","from":"+1555","message_id":"m1","timestamp":"2026-08-01T00:00:00Z"}`)

	sig := sign(secret, body)
	if !VerifySignature(secret, body, sig) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestSignatureVerifyRejectsSingleByteFlip(t *testing.T) {
	secret := "topsecret"
	body := []byte(`{"event":"sms_received"}`)
	sig := sign(secret, body)

	flipped := []byte(sig)
	flipped[0] ^= 0x01
	if VerifySignature(secret, body, string(flipped)) {
		t.Fatal("expected single-byte-flipped signature to fail verification")
	}
}

func TestContainsEvent(t *testing.T) {
	events := []string{"sms_received", "delivery_report"}
	if !containsEvent(events, "sms_received") {
		t.Error("expected sms_received to be found")
	}
	if containsEvent(events, "missing") {
		t.Error("did not expect missing event to be found")
	}
}
