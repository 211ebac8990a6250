package config

import "testing"

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SMOKE_TEST_INT", "not-a-number")
	if got := getEnvInt("SMOKE_TEST_INT", 42); got != 42 {
		t.Errorf("expected fallback 42, got %d", got)
	}
}

func TestGetEnvBoolVariants(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "yes": true, "false": false, "0": false, "nah": false}
	for value, want := range cases {
		t.Setenv("SMOKE_TEST_BOOL", value)
		if got := getEnvBool("SMOKE_TEST_BOOL", false); got != want {
			t.Errorf("getEnvBool(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestLoadRequiresJWTSigningKey(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when JWT_SIGNING_KEY unset")
	}
}
