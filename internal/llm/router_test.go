package llm

import (
	"context"
	"testing"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
)

type fakeBackend struct {
	callsByKey map[string]int
	failKeys   map[string]bool
	response   Response
}

func (f *fakeBackend) Generate(_ context.Context, _ Request, apiKey string) (Response, error) {
	f.callsByKey[apiKey]++
	if f.failKeys[apiKey] {
		return Response{}, apperr.LLMRateLimited("fake: rate limited", nil)
	}
	return f.response, nil
}

func TestRouterRecoversAfterKeyRateLimited(t *testing.T) {
	fb := &fakeBackend{
		callsByKey: map[string]int{},
		failKeys:   map[string]bool{"bad-key": true},
		response:   Response{Text: "ok"},
	}
	// Fixed key order (NewKeyPool shuffles) so the rate-limited key is taken first.
	pool := &KeyPool{keys: []string{"bad-key", "good-key"}, cooldown: time.Hour, until: map[string]time.Time{}}
	r := &Router{
		entries: []modelEntry{{provider: ProviderGemini, model: "gemini-2.0-flash", keys: pool}},
		backends: map[Provider]backendClient{ProviderGemini: fb},
		retry:   RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
	}
	resp, err := r.Generate(context.Background(), Request{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("expected router to recover via the good key, got %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("expected recovered response text, got %q", resp.Text)
	}
	if fb.callsByKey["bad-key"] != 1 {
		t.Fatalf("expected exactly one attempt against the rate-limited key, got %d", fb.callsByKey["bad-key"])
	}
}

func TestRouterFallsBackAcrossModels(t *testing.T) {
	failing := &fakeBackend{callsByKey: map[string]int{}, failKeys: map[string]bool{"k1": true}}
	working := &fakeBackend{callsByKey: map[string]int{}, response: Response{Text: "fallback-ok"}}
	r := &Router{
		entries: []modelEntry{
			{provider: ProviderAnthropic, model: "claude-primary", keys: NewKeyPool([]string{"k1"}, time.Hour)},
			{provider: ProviderOpenAI, model: "gpt-fallback", keys: NewKeyPool([]string{"k2"}, time.Hour)},
		},
		backends: map[Provider]backendClient{ProviderAnthropic: failing, ProviderOpenAI: working},
		retry:   RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
	}
	resp, err := r.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected fallback model to succeed, got %v", err)
	}
	if resp.Text != "fallback-ok" {
		t.Fatalf("expected fallback response, got %q", resp.Text)
	}
}

func TestRouterErrorsWhenNoModelsConfigured(t *testing.T) {
	r := &Router{backends: map[Provider]backendClient{}}
	_, err := r.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error with no models configured")
	}
}

func TestDetectProviderPrefixes(t *testing.T) {
	cases := map[string]Provider{
		"claude-sonnet-4":  ProviderAnthropic,
		"anthropic/claude": ProviderAnthropic,
		"gemini-2.0-flash": ProviderGemini,
		"google/gemini":    ProviderGemini,
		"gpt-4o-mini":      ProviderOpenAI,
	}
	for model, want := range cases {
		if got := DetectProvider(model); got != want {
			t.Errorf("DetectProvider(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestStripNamespace(t *testing.T) {
	if got := StripNamespace("default_api:get_realtime_quote"); got != "get_realtime_quote" {
		t.Fatalf("expected namespace stripped, got %q", got)
	}
	if got := StripNamespace("get_realtime_quote"); got != "get_realtime_quote" {
		t.Fatalf("expected unnamespaced name unchanged, got %q", got)
	}
}
