package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func sessionEcho() (http.Handler, *string) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return SessionMiddleware(true)(h), &seen
}

func TestSessionMiddlewareHeader(t *testing.T) {
	h, seen := sessionEcho()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeaderName, "widget-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if *seen != "widget-42" {
		t.Errorf("session id = %q, want header value", *seen)
	}
}

func TestSessionMiddlewareCookie(t *testing.T) {
	h, seen := sessionEcho()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-session"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if *seen != "cookie-session" {
		t.Errorf("session id = %q, want cookie value", *seen)
	}
}

func TestSessionMiddlewareMintsID(t *testing.T) {
	h, seen := sessionEcho()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if *seen == "" {
		t.Fatal("no session id minted")
	}

	// The minted id comes back as a cookie so the next request continues
	// the session.
	cookies := w.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == SessionCookieName && c.Value == *seen {
			found = true
		}
	}
	if !found {
		t.Errorf("minted session id not set as cookie, cookies = %v", cookies)
	}
}

func TestSessionMiddlewareRejectsGarbage(t *testing.T) {
	h, seen := sessionEcho()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeaderName, "bad id with spaces\n")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if *seen == "" || *seen == "bad id with spaces\n" {
		t.Errorf("invalid header should be replaced with a minted id, got %q", *seen)
	}
}
