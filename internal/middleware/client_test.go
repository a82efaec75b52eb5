package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func captureClientID(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := ClientIDFromContext(r.Context())
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientIDMiddleware_IssuesCookieWhenMissing(t *testing.T) {
	var captured string
	handler := NewClientIDMiddleware(ClientCookieConfig{MaxAge: 3600})(captureClientID(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if _, err := uuid.Parse(captured); err != nil {
		t.Fatalf("context client id %q is not a UUID", captured)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == ClientCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("client cookie was not set")
	}
	if cookie.Value != captured {
		t.Errorf("cookie = %q, context = %q", cookie.Value, captured)
	}
	if !cookie.HttpOnly {
		t.Error("client cookie should be HttpOnly")
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", cookie.MaxAge)
	}
}

func TestClientIDMiddleware_ReusesValidCookie(t *testing.T) {
	var captured string
	handler := NewClientIDMiddleware(ClientCookieConfig{})(captureClientID(&captured))

	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: existing})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured != existing {
		t.Errorf("client id = %q, want %q", captured, existing)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("既存のCookieがある場合は再発行しない")
	}
}

func TestClientIDMiddleware_ReplacesInvalidCookie(t *testing.T) {
	var captured string
	handler := NewClientIDMiddleware(ClientCookieConfig{})(captureClientID(&captured))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "../../etc/passwd"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured == "../../etc/passwd" {
		t.Fatal("不正なクライアントIDがそのまま使われた")
	}
	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("client id %q is not a UUID", captured)
	}
}

func TestClientIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := ClientIDFromContext(req.Context()); err == nil {
		t.Error("expected error for missing client id")
	}
}
