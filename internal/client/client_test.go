package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/formbase/formbase-go/internal/config"
	"github.com/formbase/formbase-go/internal/observability"
	"github.com/formbase/formbase-go/model"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&config.Config{
		API: config.APIConfig{
			BaseURL:  srv.URL,
			Token:    "tok",
			Username: "alice",
			Timeout:  2 * time.Second,
		},
	}, nil, nil)
}

func TestRequestHeadersAndUsernameAugmentation(t *testing.T) {
	var gotBody map[string]any
	var gotPrefer, gotAuth string

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"n"}]`))
	}))

	_, err := c.Request(context.Background(), "/form", http.MethodPost, map[string]any{"name": "n"})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPrefer != "return=representation" {
		t.Errorf("Prefer = %q", gotPrefer)
	}
	if gotBody["username"] != "alice" {
		t.Errorf("body username = %v, want alice", gotBody["username"])
	}
	if gotBody["name"] != "n" {
		t.Errorf("body name = %v", gotBody["name"])
	}
}

func TestRequestNoPreferOnReads(t *testing.T) {
	var gotPrefer string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))

	if _, err := c.Request(context.Background(), "/form", http.MethodGet, nil); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if gotPrefer != "" {
		t.Errorf("Prefer = %q, want empty on GET", gotPrefer)
	}
}

func TestRequestHTTPErrorCarriesStatusAndBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))

	_, err := c.Request(context.Background(), "/form", http.MethodGet, nil)
	if err == nil {
		t.Fatal("want error")
	}
	envelope, ok := err.(*model.Error)
	if !ok {
		t.Fatalf("err type %T", err)
	}
	if envelope.Code != model.ErrHTTP || envelope.Status != http.StatusForbidden {
		t.Errorf("envelope = %+v", envelope)
	}
	if envelope.Message != "HTTP 403: permission denied\n" {
		t.Errorf("message = %q", envelope.Message)
	}
}

func TestRequestNoContentResolvesEmpty(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	result, err := c.Request(context.Background(), "/record?id=eq.1", http.MethodDelete, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok || len(m) != 0 {
		t.Errorf("result = %#v, want empty object", result)
	}
}

func TestRequestNonJSONResolvesEmpty(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))

	result, err := c.Request(context.Background(), "/form", http.MethodGet, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok || len(m) != 0 {
		t.Errorf("result = %#v, want empty object", result)
	}
}

func TestFirstNormalizesWriteResponses(t *testing.T) {
	obj := map[string]any{"id": 1.0}
	if got := First([]any{obj, map[string]any{"id": 2.0}}); got.(map[string]any)["id"] != 1.0 {
		t.Errorf("First(array) = %v", got)
	}
	if got := First(obj); got.(map[string]any)["id"] != 1.0 {
		t.Errorf("First(object) = %v", got)
	}
	if got := First([]any{}); got != nil {
		t.Errorf("First(empty) = %v, want nil", got)
	}
}

func TestServerErrorsTripBreaker(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		c.Request(context.Background(), "/form", http.MethodGet, nil)
	}
	if c.breaker.State() != BreakerOpen {
		t.Errorf("breaker state = %v, want open after consecutive 5xx", c.breaker.State())
	}

	_, err := c.Request(context.Background(), "/form", http.MethodGet, nil)
	envelope, ok := err.(*model.Error)
	if !ok || envelope.Code != model.ErrTransport {
		t.Errorf("open breaker should fail fast, got %v", err)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	for i := 0; i < 10; i++ {
		c.Request(context.Background(), "/form", http.MethodGet, nil)
	}
	if c.breaker.State() != BreakerClosed {
		t.Errorf("breaker state = %v, 4xx must not trip", c.breaker.State())
	}
}

func TestRequestUsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	ctx := observability.WithLogger(context.Background(), zap.New(core))
	c.Request(ctx, "/form", http.MethodGet, nil)

	if logs.FilterMessage("backend request failed").Len() == 0 {
		t.Error("failure not logged through the context logger")
	}
}

func TestResourceOf(t *testing.T) {
	cases := map[string]string{
		"/form":                    "form",
		"/record?form_id=eq.1":     "record",
		"/field?form_id=eq.2&x=y":  "field",
	}
	for endpoint, want := range cases {
		if got := resourceOf(endpoint); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", endpoint, got, want)
		}
	}
}
