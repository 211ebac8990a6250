package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/brivas/smsgateway/internal/apperr"
)

func TestWriteErrorMapsQuotaKindToStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperr.QuotaExceeded(apperr.QuotaDetail{QuotaType: "sms", Limit: 100, Used: 100}))

	if rr.Code != 429 {
		t.Fatalf("status = %d, want 429", rr.Code)
	}

	var body struct {
		Detail apperr.QuotaDetail `json:"detail"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail.Error != "quota_exceeded" {
		t.Errorf("detail.error = %q, want quota_exceeded", body.Detail.Error)
	}
}

func TestWriteErrorMapsValidationKindToStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperr.Validation("bad input: %s", "missing field"))

	if rr.Code != 400 {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestWriteErrorFallsBackToInternalForUntypedError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errNotTyped{})

	if rr.Code != 500 {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

type errNotTyped struct{}

func (errNotTyped) Error() string { return "boom" }
