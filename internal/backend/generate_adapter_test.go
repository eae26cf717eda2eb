package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateAdapterAccumulatesResponseFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintln(w, `{"response":"Hel","done":false}`)
		fmt.Fprintln(w, `{"response":"lo, ","done":false}`)
		fmt.Fprintln(w, `{"response":"world","done":true,"prompt_eval_count":3,"eval_count":5}`)
	}))
	defer srv.Close()

	a := NewLocalGenerateAdapter("local-generate", srv.URL)
	res := a.Generate(context.Background(), GenerationRequest{Prompt: "hi", ModelName: "llama3"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Text != "Hello, world" {
		t.Fatalf("expected accumulated text, got %q", res.Text)
	}
	if res.TokenCount != 8 {
		t.Fatalf("expected 8 tokens, got %d", res.TokenCount)
	}
}

func TestGenerateAdapterServerErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer srv.Close()

	a := NewLocalGenerateAdapter("local-generate", srv.URL)
	res := a.Generate(context.Background(), GenerationRequest{Prompt: "hi", ModelName: "llama3"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorKind != ErrServerError {
		t.Fatalf("expected SERVER_ERROR, got %s", res.ErrorKind)
	}
}

func TestGenerateAdapterIsAvailableCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewLocalGenerateAdapter("local-generate", srv.URL)
	ctx := context.Background()
	if !a.IsAvailable(ctx) {
		t.Fatal("expected available")
	}
	if !a.IsAvailable(ctx) {
		t.Fatal("expected available on cached call")
	}
	if calls != 1 {
		t.Fatalf("expected 1 probe due to caching, got %d", calls)
	}
}

func TestErrorKindCountsAsFailure(t *testing.T) {
	cases := map[ErrorKind]bool{
		ErrTimeout:     true,
		ErrTransport:   true,
		ErrServerError: true,
		ErrAuth:        false,
		ErrBadRequest:  false,
		ErrUnavailable: false,
	}
	for kind, want := range cases {
		if got := kind.CountsAsFailure(); got != want {
			t.Errorf("%s.CountsAsFailure() = %v, want %v", kind, got, want)
		}
	}
}
