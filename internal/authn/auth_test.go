package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
)

func TestIssueAndValidateTokenRoundTrip(t *testing.T) {
	e := &Engine{jwtSecret: []byte("test-secret"), logger: zap.NewNop()}
	userID := uuid.New()

	token, err := e.IssueToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	claims, err := e.validateToken(token)
	if err != nil {
		t.Fatalf("unexpected error validating token: %v", err)
	}
	if claims.UserID != userID.String() {
		t.Errorf("expected user id %s, got %s", userID, claims.UserID)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := &Engine{jwtSecret: []byte("secret-a"), logger: zap.NewNop()}
	verifier := &Engine{jwtSecret: []byte("secret-b"), logger: zap.NewNop()}

	token, err := issuer.IssueToken(uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := verifier.validateToken(token); err == nil {
		t.Fatal("expected validation to fail with mismatched secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	e := &Engine{jwtSecret: []byte("test-secret"), logger: zap.NewNop()}
	token, err := e.IssueToken(uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.validateToken(token); err == nil {
		t.Fatal("expected validation to fail for expired token")
	}
}

func TestAuthenticateRejectsMissingCredentials(t *testing.T) {
	e := &Engine{jwtSecret: []byte("test-secret"), logger: zap.NewNop()}
	req := httptest.NewRequest(http.MethodGet, "/sms/messages", nil)
	if _, err := e.Authenticate(req); err == nil {
		t.Fatal("expected authentication error when no credentials are present")
	}
}

func TestAuthenticateRejectsMalformedBearerHeader(t *testing.T) {
	e := &Engine{jwtSecret: []byte("test-secret"), logger: zap.NewNop()}
	req := httptest.NewRequest(http.MethodGet, "/sms/messages", nil)
	req.Header.Set("Authorization", "NotBearer abc123")
	if _, err := e.Authenticate(req); err == nil {
		t.Fatal("expected authentication error for malformed Authorization header")
	}
}
