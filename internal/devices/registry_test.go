package devices

import (
	"strings"
	"testing"
)

func TestGenerateAPIKeyIsURLSafeAndUnique(t *testing.T) {
	a, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	b, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if a == b {
		t.Error("expected two distinct generated keys")
	}
	for _, c := range []byte(a) {
		if strings.ContainsRune("+/=", rune(c)) {
			t.Errorf("key %q contains non-URL-safe character", a)
		}
	}
}
