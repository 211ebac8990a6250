// Package authn is the HTTP authentication boundary: Bearer JWT or
// X-API-Key for tenant callers, and Device X-API-Key for agent callback
// endpoints. Adapted from packages/core/auth.go's RBAC engine, trimmed down
// to the two caller kinds this domain actually has — there is no
// Hasura-style table permission matrix here, just "is this a known user"
// and "is this a known device".
package authn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/devices"
	"github.com/brivas/smsgateway/internal/store"
)

type contextKey string

const userContextKey contextKey = "authn_user"

// Claims is the JWT payload minted for a tenant user session.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Engine validates the two tenant credential forms (Bearer JWT,
// integration X-API-Key) against the store.
type Engine struct {
	db        *store.Client
	jwtSecret []byte
	logger    *zap.Logger
}

func New(db *store.Client, jwtSecret string, logger *zap.Logger) *Engine {
	return &Engine{db: db, jwtSecret: []byte(jwtSecret), logger: logger}
}

func (e *Engine) IssueToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "smsgateway",
		},
		UserID: userID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(e.jwtSecret)
}

func (e *Engine) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return e.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("authn: invalid token")
	}
	return claims, nil
}

// Authenticate resolves a tenant User from either a Bearer JWT or an
// integration X-API-Key header. Returns an apperr AuthnError on failure, or
// an AuthzError when a JWT resolves to a disabled user.
func (e *Engine) Authenticate(r *http.Request) (*store.User, error) {
	ctx := r.Context()

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return nil, authnError("malformed Authorization header")
		}
		claims, err := e.validateToken(parts[1])
		if err != nil {
			return nil, authnError("invalid or expired token")
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return nil, authnError("invalid token subject")
		}
		user, err := e.db.GetUser(ctx, userID)
		if err != nil {
			return nil, authnError("user not found")
		}
		if !user.Active {
			return nil, &apperr.Error{Kind: apperr.KindAuthz, Message: "user account is disabled"}
		}
		return user, nil
	}

	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		key, err := e.db.GetAPIKeyByKey(ctx, apiKey)
		if err != nil {
			return nil, authnError("invalid api key")
		}
		user, err := e.db.GetUser(ctx, key.UserID)
		if err != nil {
			return nil, authnError("user not found")
		}
		if err := e.db.TouchAPIKey(ctx, key.ID); err != nil {
			e.logger.Warn("failed to update api key last_used_at", zap.Error(err))
		}
		return user, nil
	}

	return nil, authnError("missing Authorization or X-API-Key header")
}

func authnError(msg string) error {
	return &apperr.Error{Kind: apperr.KindAuthn, Message: msg}
}

// RequireUser is HTTP middleware enforcing tenant authentication and
// stashing the resolved User in the request context.
func (e *Engine) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := e.Authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext retrieves the User stashed by RequireUser.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userContextKey).(*store.User)
	return user, ok
}

func writeAuthError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		http.Error(w, ae.Message, ae.Kind.StatusCode())
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// DeviceAuthenticator resolves the calling Device from the X-API-Key
// header on agent callback endpoints (report, incoming, fcm-token) — the
// HTTP counterpart to the Connection Hub's query-param handshake.
type DeviceAuthenticator struct {
	registry *devices.Registry
}

func NewDeviceAuthenticator(registry *devices.Registry) *DeviceAuthenticator {
	return &DeviceAuthenticator{registry: registry}
}

func (d *DeviceAuthenticator) Authenticate(r *http.Request) (*store.Device, error) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		return nil, authnError("missing X-API-Key header")
	}
	return d.registry.Authenticate(r.Context(), apiKey)
}
