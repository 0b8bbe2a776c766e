package llm

import (
	"context"
	"strings"
	"time"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/logging"
)

// modelEntry pairs a model name with the key pool that serves it, in
// fallback-chain order.
type modelEntry struct {
	provider Provider
	model    string
	keys     *KeyPool
}

// Router multiplexes providers by model name and walks a bounded
// fallback chain (primary model → configured fallbacks) on rate limit
// or transient failure, generalizing the pack's two-provider
// ProviderFactory.DetectProvider dispatch into an arbitrary ordered
// chain across three backends.
type Router struct {
	entries  []modelEntry
	backends map[Provider]backendClient
	retry    RetryConfig
	Log      *logging.Logger
}

// NewRouter builds a router from a primary model plus an ordered
// fallback list, each resolved to a provider by name prefix
// ("claude-"/"anthropic/" -> Claude, "gemini-"/"google/" -> Gemini,
// everything else -> OpenAI-compatible).
func NewRouter(primaryModel string, fallbackModels []string, keysByProvider map[Provider][]string, cooldown time.Duration, log *logging.Logger) *Router {
	r := &Router{
		backends: map[Provider]backendClient{
			ProviderAnthropic: &anthropicBackend{},
			ProviderGemini:    &geminiBackend{},
			ProviderOpenAI:    &openaiBackend{},
		},
		retry: DefaultRetryConfig(),
		Log:   log,
	}
	models := append([]string{primaryModel}, fallbackModels...)
	pools := map[Provider]*KeyPool{}
	for provider, keys := range keysByProvider {
		pools[provider] = NewKeyPool(keys, cooldown)
	}
	for _, m := range models {
		if m == "" {
			continue
		}
		provider := DetectProvider(m)
		pool := pools[provider]
		if pool == nil {
			pool = NewKeyPool(nil, cooldown)
		}
		r.entries = append(r.entries, modelEntry{provider: provider, model: NormalizeModel(m), keys: pool})
	}
	return r
}

// DetectProvider infers the backend from a model name, mirroring the
// pack's prefix-based provider detection.
func DetectProvider(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude/"), strings.HasPrefix(m, "anthropic/"), strings.HasPrefix(m, "claude-"):
		return ProviderAnthropic
	case strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "google/"), strings.HasPrefix(m, "gemini-"):
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

func NormalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/", "openai/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Generate walks the fallback chain: for each model entry it tries the
// available keys in turn. A key that returns a rate-limit error is put
// on cooldown and skipped at once; any other error is retried on the
// same key up to retry.MaxRetries times with backoff. It moves to the
// next model entry only once every key in that entry's pool is cooling
// down or exhausted.
func (r *Router) Generate(ctx context.Context, req Request) (Response, error) {
	if len(r.entries) == 0 {
		return Response{}, apperr.ConfigError("llm: no models configured", nil)
	}

	var lastErr error
	for _, entry := range r.entries {
		backend := r.backends[entry.provider]
		if backend == nil {
			continue
		}
		if entry.keys.Len() == 0 {
			continue
		}

		resp, err := r.generateWithEntry(ctx, backend, entry, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if r.Log != nil {
			r.Log.Warnf("llm: model %s exhausted, falling back: %v", entry.model, err)
		}
	}
	if lastErr == nil {
		lastErr = apperr.LLMInvalidResponse("llm: all models unavailable", nil)
	}
	return Response{}, lastErr
}

func (r *Router) generateWithEntry(ctx context.Context, backend backendClient, entry modelEntry, req Request) (Response, error) {
	req.Model = entry.model
	var lastErr error
	triedKeys := 0
	maxKeys := entry.keys.Len()

	for triedKeys < maxKeys {
		key := entry.keys.Take()
		if key == "" {
			break
		}
		triedKeys++

		for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
			resp, err := backend.Generate(ctx, req, key)
			if err == nil {
				return resp, nil
			}
			lastErr = err

			if apperr.CodeOf(err) == apperr.CodeLLMRateLimited {
				entry.keys.Cooldown(key)
				break // move to next key immediately, don't burn retries on a dead key
			}

			if attempt == r.retry.MaxRetries {
				break
			}
			delay := ExtractRetryDelay(err)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(r.retry.Backoff(attempt, delay)):
			}
		}
	}
	return Response{}, lastErr
}
