package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, recorder
}

func TestHandleCommonErrorsExternalFailureCarriesPayload(t *testing.T) {
	c, recorder := newTestContext(t)
	h := NewBaseHandler(utils.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil))))

	err := services.NewExternalServiceError("llm", "generate_questions",
		`{"error":"model overloaded"}`, errors.New("status 503"))
	if !h.handleCommonErrors(c, err) {
		t.Fatal("external service error was not handled")
	}
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusBadGateway)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	details, ok := resp.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("details = %T, want map", resp.Details)
	}
	if details["service"] != "llm" || details["operation"] != "generate_questions" {
		t.Errorf("details missing service/operation: %v", details)
	}
	if details["raw_payload"] != `{"error":"model overloaded"}` {
		t.Errorf("raw_payload = %v, want the upstream body", details["raw_payload"])
	}
}
