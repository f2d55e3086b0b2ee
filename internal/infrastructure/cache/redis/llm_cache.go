package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kirillkom/docsort/internal/core/ports"
)

const keyPrefix = "docsort:llm:"

// Store is the subset of a key/value cache the decorators need.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CacheHook observes cache lookups; kind is "summary" or "tags".
type CacheHook func(kind string, hit bool)

// Summarizer serves repeated summarization requests for identical input from the cache.
// Cache faults are logged and never fail the call.
type Summarizer struct {
	next  ports.Summarizer
	store Store
	ttl   time.Duration
	scope string
	hook  CacheHook
}

func NewSummarizer(next ports.Summarizer, store Store, ttl time.Duration, scope string, hook CacheHook) *Summarizer {
	return &Summarizer{next: next, store: store, ttl: ttl, scope: scope, hook: hook}
}

func (s *Summarizer) Summarize(ctx context.Context, text, fileName string) (string, error) {
	key := cacheKey("summary", s.scope, text, fileName)
	if cached, ok := lookup(ctx, s.store, key); ok {
		s.observe("summary", true)
		return cached, nil
	}
	s.observe("summary", false)

	summary, err := s.next.Summarize(ctx, text, fileName)
	if err != nil {
		return "", err
	}
	remember(ctx, s.store, key, summary, s.ttl)
	return summary, nil
}

func (s *Summarizer) observe(kind string, hit bool) {
	if s.hook != nil {
		s.hook(kind, hit)
	}
}

type Tagger struct {
	next  ports.Tagger
	store Store
	ttl   time.Duration
	scope string
	hook  CacheHook
}

func NewTagger(next ports.Tagger, store Store, ttl time.Duration, scope string, hook CacheHook) *Tagger {
	return &Tagger{next: next, store: store, ttl: ttl, scope: scope, hook: hook}
}

func (t *Tagger) Tags(ctx context.Context, text, fileName string) ([]string, error) {
	key := cacheKey("tags", t.scope, text, fileName)
	if cached, ok := lookup(ctx, t.store, key); ok {
		var tags []string
		if err := json.Unmarshal([]byte(cached), &tags); err == nil && tags != nil {
			t.observe(true)
			return tags, nil
		}
	}
	t.observe(false)

	tags, err := t.next.Tags(ctx, text, fileName)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(tags); err == nil {
		remember(ctx, t.store, key, string(raw), t.ttl)
	}
	return tags, nil
}

func (t *Tagger) observe(hit bool) {
	if t.hook != nil {
		t.hook("tags", hit)
	}
}

func cacheKey(kind, scope, text, fileName string) string {
	h := sha256.New()
	for _, part := range []string{kind, scope, fileName, text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

func lookup(ctx context.Context, s Store, key string) (string, bool) {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		slog.Warn("llm_cache_get_failed", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

func remember(ctx context.Context, s Store, key, value string, ttl time.Duration) {
	if err := s.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("llm_cache_set_failed", "key", key, "error", err)
	}
}
