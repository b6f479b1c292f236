package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(t *testing.T, sawWidgetID *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sawWidgetID != nil {
			*sawWidgetID = GetWidgetID(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuth(t *testing.T) {
	t.Run("disabled passes through", func(t *testing.T) {
		handler := AdminAuth("")(okHandler(t, nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing header rejected", func(t *testing.T) {
		handler := AdminAuth("sk_admin")(okHandler(t, nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		handler := AdminAuth("sk_admin")(okHandler(t, nil))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
		req.Header.Set("Authorization", "Bearer sk_other")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("correct key accepted", func(t *testing.T) {
		handler := AdminAuth("sk_admin")(okHandler(t, nil))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
		req.Header.Set("Authorization", "Bearer sk_admin")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestEmbedTokenRoundtrip(t *testing.T) {
	tokens := NewEmbedTokens("test-secret", time.Hour)

	token, err := tokens.Issue("01JWIDGET")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	widgetID, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if widgetID != "01JWIDGET" {
		t.Errorf("widget ID = %q, want %q", widgetID, "01JWIDGET")
	}
}

func TestEmbedTokenExpired(t *testing.T) {
	tokens := NewEmbedTokens("test-secret", -time.Minute)

	token, err := tokens.Issue("01JWIDGET")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := tokens.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestEmbedTokenWrongSecret(t *testing.T) {
	token, err := NewEmbedTokens("secret-a", time.Hour).Issue("01JWIDGET")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := NewEmbedTokens("secret-b", time.Hour).Verify(token); err == nil {
		t.Error("expected error for token signed with different secret")
	}
}

func TestEmbedAuth(t *testing.T) {
	tokens := NewEmbedTokens("test-secret", time.Hour)
	token, err := tokens.Issue("01JWIDGET")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	t.Run("header token accepted", func(t *testing.T) {
		var saw string
		handler := EmbedAuth(tokens)(okHandler(t, &saw))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/session", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if saw != "01JWIDGET" {
			t.Errorf("context widget ID = %q, want %q", saw, "01JWIDGET")
		}
	})

	t.Run("query token accepted", func(t *testing.T) {
		var saw string
		handler := EmbedAuth(tokens)(okHandler(t, &saw))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/widget/session/abc/voice?token="+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if saw != "01JWIDGET" {
			t.Errorf("context widget ID = %q, want %q", saw, "01JWIDGET")
		}
	})

	t.Run("missing token rejected", func(t *testing.T) {
		handler := EmbedAuth(tokens)(okHandler(t, nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/widget/session", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		handler := EmbedAuth(tokens)(okHandler(t, nil))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/session", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("no secret disables check", func(t *testing.T) {
		handler := EmbedAuth(NewEmbedTokens("", time.Hour))(okHandler(t, nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/widget/session", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}
