package dispatch

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/qcircuit/internal/cachemanager"
	"github.com/zjrosen/qcircuit/internal/log"
)

var matchCaching atomic.Bool

func init() {
	matchCaching.Store(true)
}

// SetMatchCaching turns match memoisation on or off for every registry.
func SetMatchCaching(enabled bool) {
	matchCaching.Store(enabled)
}

type entry[I any] struct {
	impl I
	tags []any
}

// Registry is an append-only table of implementations keyed by tag tuples.
// It is safe for concurrent registration and matching.
type Registry[I any] struct {
	name string
	keys []TagKey

	mu      sync.RWMutex
	entries []entry[I]
	matches *cachemanager.ReadThroughCache[string, []int, []any]
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	cache cachemanager.CacheManager[string, []int]
}

// WithMatchCache memoises the class-key part of every match in cm.
func WithMatchCache(cm cachemanager.CacheManager[string, []int]) RegistryOption {
	return func(o *registryOptions) {
		o.cache = cm
	}
}

// NewRegistry creates a registry over keys. Without WithMatchCache an in-memory cache
// named after the registry is used.
func NewRegistry[I any](name string, keys []TagKey, opts ...RegistryOption) *Registry[I] {
	o := &registryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = cachemanager.NewInMemoryCacheManager[string, []int](
			"dispatch."+name, cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	}

	r := &Registry[I]{
		name: name,
		keys: slices.Clone(keys),
	}
	r.matches = cachemanager.NewReadThroughCache[string, []int, []any](o.cache, r.classMatches, 0)
	return r
}

func (r *Registry[I]) Name() string   { return r.name }
func (r *Registry[I]) Keys() []TagKey { return slices.Clone(r.keys) }

// Len returns the number of registered entries.
func (r *Registry[I]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Register appends impl under tags. Missing trailing tags are wildcards. Passing more
// tags than keys, or a value a key cannot hold, panics.
func (r *Registry[I]) Register(impl I, tags ...any) {
	if len(tags) > len(r.keys) {
		panic("dispatch: " + r.name + ": too many tags for registry keys")
	}
	full := make([]any, len(r.keys))
	copy(full, tags)
	for i, k := range r.keys {
		if err := k.Validate(full[i]); err != nil {
			panic("dispatch: " + r.name + ": " + err.Error())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry[I]{impl: impl, tags: full})
	_ = r.matches.Invalidate(context.Background())

	log.Debug(log.CatDispatch, "registered implementation",
		"registry", r.name,
		"entry", len(r.entries)-1,
		"tags", describeTags(full),
	)
}

// Match returns every implementation compatible with the query tags, ordered from least
// to most specific. Specificity is compared key by key in key order; equal entries keep
// registration order, so the last element is the most specific, most recent match.
func (r *Registry[I]) Match(tags ...any) []I {
	if len(tags) > len(r.keys) {
		return nil
	}
	query := make([]any, len(r.keys))
	copy(query, tags)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []int
	if key, ok := r.cacheKey(query); ok && matchCaching.Load() {
		candidates, _ = r.matches.Get(context.Background(), key, query)
	} else {
		candidates, _ = r.classMatches(context.Background(), query)
	}

	type scored struct {
		idx  int
		rank []int
	}
	matched := make([]scored, 0, len(candidates))
	for _, idx := range candidates {
		e := r.entries[idx]
		rank := make([]int, len(r.keys))
		ok := true
		for i, k := range r.keys {
			s, m := k.Match(e.tags[i], query[i])
			if !m {
				ok = false
				break
			}
			rank[i] = s
		}
		if ok {
			matched = append(matched, scored{idx: idx, rank: rank})
		}
	}

	slices.SortStableFunc(matched, func(a, b scored) int {
		if c := slices.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		return cmp.Compare(a.idx, b.idx)
	})

	out := make([]I, len(matched))
	for i, m := range matched {
		out[i] = r.entries[m.idx].impl
	}
	return out
}

// classMatches returns entry indices accepted by every cacheable key. Callers hold mu.
func (r *Registry[I]) classMatches(_ context.Context, query []any) ([]int, error) {
	var out []int
	for idx, e := range r.entries {
		ok := true
		for i, k := range r.keys {
			if _, cacheable := k.Token(query[i]); !cacheable {
				continue
			}
			if _, m := k.Match(e.tags[i], query[i]); !m {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, idx)
		}
	}
	return out, nil
}

func (r *Registry[I]) cacheKey(query []any) (string, bool) {
	var b strings.Builder
	b.WriteString(r.name)
	cacheable := false
	for i, k := range r.keys {
		tok, ok := k.Token(query[i])
		if !ok {
			continue
		}
		cacheable = true
		b.WriteByte('|')
		b.WriteString(tok)
	}
	return b.String(), cacheable
}

func describeTags(tags []any) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = describe(t)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
