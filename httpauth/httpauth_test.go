package httpauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ekarulf/authchain/api"
	"github.com/ekarulf/authchain/policy"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	v := api.VerifierFunc(func(ctx context.Context, user string, password api.PasswordString) (bool, error) {
		return user == "carol@example.com" && password == "secret", nil
	})
	p, err := policy.NewPipeline(v)
	if err != nil {
		t.Fatal(err)
	}
	inner := http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(rw, "hello %s", User(req))
	})
	return Handler(p, "test", inner)
}

func TestHandlerNoCredentials(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	challenge := rec.Header().Get("WWW-Authenticate")
	if challenge != `Basic realm="test"` {
		t.Errorf("unexpected challenge: %q", challenge)
	}
}

func TestHandlerBadCredentials(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("carol@example.com", "wrong")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected a challenge")
	}
}

func TestHandlerGoodCredentials(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.SetBasicAuth("carol@example.com", "secret")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hello carol@example.com") {
		t.Errorf("the user did not reach the inner handler: %q", rec.Body.String())
	}
}
