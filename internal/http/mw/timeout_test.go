package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default:          20 * time.Millisecond,
		Extended:         150 * time.Millisecond,
		ExtendedPatterns: []string{"/generate", "/estimate"},
		SkipPatterns:     []string{"/voice"},
	}
}

func TestTimeoutDefaultPath(t *testing.T) {
	handler := Timeout(testTimeoutConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTimeoutExceededReturns504(t *testing.T) {
	handler := Timeout(testTimeoutConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			t.Error("handler context was never cancelled")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGatewayTimeout)
	}
}

func TestTimeoutExtendedPath(t *testing.T) {
	handler := Timeout(testTimeoutConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Longer than Default, shorter than Extended.
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate/audit", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTimeoutSkipPath(t *testing.T) {
	handler := Timeout(testTimeoutConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("skip path should not carry a deadline")
		}
		time.Sleep(60 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widget/session/abc/voice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
