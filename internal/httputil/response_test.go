package httputil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON_Unencodable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]float64{"angle": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if msg := decodeError(t, rec); msg != "failed to encode response" {
		t.Errorf("error = %q, want %q", msg, "failed to encode response")
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp["error"]
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]float64{"height": 287.5})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}

	var resp map[string]float64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["height"] != 287.5 {
		t.Errorf("height = %v, want 287.5", resp["height"])
	}
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		write   func(http.ResponseWriter)
		status  int
		message string
	}{
		{"json error", func(w http.ResponseWriter) { WriteJSONError(w, http.StatusTeapot, "tea") }, http.StatusTeapot, "tea"},
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad") }, http.StatusBadRequest, "bad"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "no shoulders") }, http.StatusConflict, "no shoulders"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "boom") }, http.StatusInternalServerError, "boom"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound, "gone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decodeError(t, rec); got != tt.message {
				t.Errorf("error = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestWriteJSONOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONOK(rec, []int{1, 2})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[1,2]" {
		t.Errorf("body = %s, want [1,2]", body)
	}
}

func TestWriteBody(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteBody(rec, "image/png", []byte{0x89, 'P', 'N', 'G'})
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %s, want image/png", ct)
	}
	if rec.Body.Len() != 4 {
		t.Errorf("body length = %d, want 4", rec.Body.Len())
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		UnitsPerPixel float64 `json:"units_per_pixel"`
	}

	tests := []struct {
		name    string
		body    string
		want    float64
		wantErr bool
	}{
		{"valid", `{"units_per_pixel": 0.5}`, 0.5, false},
		{"empty", ``, 0, true},
		{"malformed", `{"units_per_pixel":`, 0, true},
		{"unknown field", `{"pixels": 2}`, 0, true},
		{"trailing data", `{"units_per_pixel": 1} {}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/calibration", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			var p payload
			err := DecodeJSON(rec, req, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p.UnitsPerPixel != tt.want {
				t.Errorf("units_per_pixel = %v, want %v", p.UnitsPerPixel, tt.want)
			}
		})
	}
}
