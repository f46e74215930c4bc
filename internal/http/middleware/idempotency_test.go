package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key")
	}
	if IsReplay(c) || IsRateBypass(c) {
		t.Fatalf("flags should default to false")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must be ignored")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay must be false")
	}
}

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.POST("/polls", IdempotencyValidator(opts, lookup), h)
	return r
}

func postWithKey(r http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/polls", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_NoHeader(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return false, nil
	}
	r := idemRouter(IdempotencyOptions{}, lookup, func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Errorf("no key expected")
		}
		c.Status(http.StatusNoContent)
	})

	if w := postWithKey(r, ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatalf("lookup must not run without a header")
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		{"default pattern", IdempotencyOptions{}, "has space"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := idemRouter(tc.opts, nil, func(c *gin.Context) { c.Status(http.StatusOK) })
			w := postWithKey(r, tc.key)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] == "" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_LookupMissAndHit(t *testing.T) {
	stored := map[string]bool{"seen-1": true}
	var gotScope string
	lookup := func(_ context.Context, scope, key string, now time.Time) (bool, error) {
		if now.IsZero() {
			t.Errorf("now not populated")
		}
		gotScope = scope
		return stored[key], nil
	}

	var replay, bypass bool
	var key string
	r := idemRouter(IdempotencyOptions{Scope: "polls.create"}, lookup, func(c *gin.Context) {
		key, _ = GetIdempotencyKey(c)
		replay, bypass = IsReplay(c), IsRateBypass(c)
		c.Status(http.StatusCreated)
	})

	postWithKey(r, "fresh-1")
	if key != "fresh-1" || replay || bypass {
		t.Fatalf("miss: key=%q replay=%v bypass=%v", key, replay, bypass)
	}
	if gotScope != "polls.create" {
		t.Fatalf("scope = %q", gotScope)
	}

	postWithKey(r, "seen-1")
	if !replay || !bypass {
		t.Fatalf("hit: replay=%v bypass=%v", replay, bypass)
	}
}

func TestIdempotencyValidator_LookupErrorDoesNotBlock(t *testing.T) {
	lookup := func(context.Context, string, string, time.Time) (bool, error) {
		return false, errors.New("db down")
	}
	r := idemRouter(IdempotencyOptions{}, lookup, func(c *gin.Context) {
		if IsReplay(c) {
			t.Errorf("no replay on lookup error")
		}
		c.Status(http.StatusCreated)
	})
	if w := postWithKey(r, "k-1"); w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_ScopeFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var scopes []string
	lookup := func(_ context.Context, scope, _ string, _ time.Time) (bool, error) {
		scopes = append(scopes, scope)
		return true, nil
	}
	opts := IdempotencyOptions{
		Scope: "ignored",
		ScopeFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/polls" {
				return "polls.create"
			}
			return ""
		},
	}

	r := gin.New()
	r.Use(IdempotencyValidator(opts, lookup))
	var replays []bool
	h := func(c *gin.Context) {
		replays = append(replays, IsReplay(c))
		c.Status(http.StatusOK)
	}
	r.POST("/polls", h)
	r.POST("/polls/:id/vote", h)

	for _, path := range []string{"/polls", "/polls/abc/vote"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderIdempotencyKey, "k-1")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(scopes) != 1 || scopes[0] != "polls.create" {
		t.Fatalf("lookup scopes = %v", scopes)
	}
	if len(replays) != 2 || !replays[0] || replays[1] {
		t.Fatalf("replays = %v", replays)
	}
}
