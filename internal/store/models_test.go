package store

import "testing"

func TestMessageStatusConstants(t *testing.T) {
	terminal := map[string]bool{
		MessageSent:      true,
		MessageDelivered: true,
		MessageFailed:    true,
	}

	for _, status := range []string{MessageQueued, MessageAssigned, MessageSending, MessageReceived} {
		if terminal[status] {
			t.Errorf("status %q unexpectedly marked terminal", status)
		}
	}
}

func TestDefaultConfigHasSafeDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SSLMode != "disable" {
		t.Errorf("expected local default sslmode=disable, got %q", cfg.SSLMode)
	}
	if cfg.MaxOpenConns <= 0 {
		t.Errorf("expected positive MaxOpenConns, got %d", cfg.MaxOpenConns)
	}
}
