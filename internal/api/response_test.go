package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"charteye/pkg/charteye"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"ok": "yes"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var data map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data["ok"] != "yes" {
		t.Fatalf("unexpected payload: %v", data)
	}
}

func TestWriteErrorOmitsEmptyMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusBadRequest, "Missing file")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "{\"error\":\"Missing file\"}\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:       "invalid input",
			err:        charteye.NewError(charteye.ErrCodeInvalidInput, "Missing message"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing message",
		},
		{
			name:        "limit exceeded",
			err:         charteye.NewError(charteye.ErrCodeLimitExceeded, "Free accounts are limited to 10 chart uploads."),
			wantStatus:  http.StatusForbidden,
			wantError:   "Upload limit reached",
			wantMessage: "Free accounts are limited to 10 chart uploads.",
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("lookup: %w", charteye.NewError(charteye.ErrCodeNotFound, "Analysis not found")),
			wantStatus: http.StatusNotFound,
			wantError:  "Analysis not found",
		},
		{
			name:        "database",
			err:         charteye.WrapError(charteye.ErrCodeDatabase, "save analysis", errors.New("disk full")),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "save analysis",
			wantMessage: "disk full",
		},
		{
			name:       "duplicate",
			err:        charteye.NewError(charteye.ErrCodeDuplicate, "Order already applied to another account"),
			wantStatus: http.StatusConflict,
			wantError:  "Order already applied to another account",
		},
		{
			name:        "plain error",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Internal server error",
			wantMessage: "boom",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeErrorResponse(rr, tc.err)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Error != tc.wantError || resp.Message != tc.wantMessage {
				t.Fatalf("unexpected body %+v", resp)
			}
		})
	}
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[charteye.ErrorCode]int{
		charteye.ErrCodeInvalidInput:  http.StatusBadRequest,
		charteye.ErrCodeValidation:    http.StatusBadRequest,
		charteye.ErrCodeUnauthorized:  http.StatusUnauthorized,
		charteye.ErrCodeLimitExceeded: http.StatusForbidden,
		charteye.ErrCodeNotFound:      http.StatusNotFound,
		charteye.ErrCodeDuplicate:     http.StatusConflict,
		charteye.ErrCodeUnsupported:   http.StatusNotImplemented,
		charteye.ErrCodePayment:       http.StatusInternalServerError,
		charteye.ErrCodeStorage:       http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := mapErrorCodeToHTTPStatus(code); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}
