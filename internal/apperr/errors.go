// Package apperr defines the typed errors the HTTP layer translates into
// the {"detail": ...} response envelope.
package apperr

import "fmt"

// Kind classifies an error for status-code mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuthn      Kind = "authn"
	KindAuthz      Kind = "authz"
	KindNotFound   Kind = "not_found"
	KindQuota      Kind = "quota_exceeded"
	KindProvider   Kind = "provider"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Error is the common application error shape. Detail, when non-nil, is
// marshaled verbatim as the response's "detail" field instead of Message.
type Error struct {
	Kind    Kind
	Message string
	Detail  interface{}
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Provider(format string, args ...interface{}) *Error {
	return &Error{Kind: KindProvider, Message: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// QuotaDetail is the structured payload spec.md §6 requires for a 429
// quota-exceeded response.
type QuotaDetail struct {
	Error      string `json:"error"`
	QuotaType  string `json:"quota_type"`
	Limit      int    `json:"limit"`
	Used       int    `json:"used"`
	Available  int    `json:"available"`
	ResetDate  string `json:"reset_date,omitempty"`
	UpgradeURL string `json:"upgrade_url"`
}

func QuotaExceeded(detail QuotaDetail) *Error {
	detail.Error = "quota_exceeded"
	return &Error{Kind: KindQuota, Message: "quota exceeded", Detail: detail}
}

// StatusCode maps a Kind to its HTTP status per spec.md §7.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation:
		return 400
	case KindAuthn:
		return 401
	case KindAuthz:
		return 403
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindQuota:
		return 429
	case KindProvider:
		return 502
	default:
		return 500
	}
}
