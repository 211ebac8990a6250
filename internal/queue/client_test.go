package queue

import "testing"

func TestVerifySignatureRoundTrip(t *testing.T) {
	c := &Client{cfg: Config{SigningKey: "topsecret"}}
	body := []byte(`{"event":"sms_received"}`)

	sig := c.sign(body)
	if !c.VerifySignature(body, sig, "") {
		t.Fatal("expected matching signature to verify")
	}

	flipped := append([]byte{}, sig...)
	flipped[0] ^= 0x01
	if c.VerifySignature(body, string(flipped), "") {
		t.Fatal("expected single-byte-flipped signature to fail verification")
	}
}

func TestVerifySignatureNoKeyConfiguredAllowsAll(t *testing.T) {
	c := &Client{cfg: Config{}}
	if !c.VerifySignature([]byte("anything"), "bogus", "") {
		t.Fatal("expected verification to pass when no signing key is configured")
	}
}
