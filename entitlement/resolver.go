package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/wellbuilt/hubauth/cache"
	"github.com/wellbuilt/hubauth/directory"
)

const (
	DefaultCacheTTL           = time.Hour
	DefaultConfigPrefix       = "wellbuilt-company-config-"
	DefaultRequiredAppsPrefix = "wellbuilt-company-apps-"

	companiesCollection = "companies"
)

var errCompanyNotFound = errors.New("company document not found")

// Outcome classifies how a lookup was answered.
type Outcome uint8

const (
	// OutcomeCacheHit was served from a fresh cache entry.
	OutcomeCacheHit Outcome = iota
	// OutcomeFetched was served from the directory and written to cache.
	OutcomeFetched
	// OutcomeFallback was served from a stale cache entry after a failed fetch.
	OutcomeFallback
	// OutcomeUnavailable had neither a fetch nor a cache entry to serve.
	OutcomeUnavailable
)

// DocumentGetter reads one document. It returns nil, nil when the document
// does not exist.
type DocumentGetter interface {
	Get(ctx context.Context, collection, id string) (*directory.Document, error)
}

// Resolver fetches and caches company entitlement.
type Resolver struct {
	docs  DocumentGetter
	cache cache.Store

	ttl          time.Duration
	configPrefix string
	appsPrefix   string
	now          func() time.Time
	log          zerolog.Logger
	onLookup     func(Outcome)

	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL sets how long a cached entry is served without a fetch.
func WithTTL(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithPrefixes overrides the cache key prefixes. Empty values keep defaults.
func WithPrefixes(config, requiredApps string) Option {
	return func(r *Resolver) {
		if config != "" {
			r.configPrefix = config
		}
		if requiredApps != "" {
			r.appsPrefix = requiredApps
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithLookupObserver is called once per config lookup with its outcome.
func WithLookupObserver(fn func(Outcome)) Option {
	return func(r *Resolver) { r.onLookup = fn }
}

// NewResolver returns a Resolver over docs and store.
func NewResolver(docs DocumentGetter, store cache.Store, opts ...Option) *Resolver {
	r := &Resolver{
		docs:         docs,
		cache:        store,
		ttl:          DefaultCacheTTL,
		configPrefix: DefaultConfigPrefix,
		appsPrefix:   DefaultRequiredAppsPrefix,
		now:          time.Now,
		log:          zerolog.Nop(),
		onLookup:     func(Outcome) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchCompanyConfig returns the company's config, or nil when companyID is
// empty or nothing could be fetched or recalled from cache.
func (r *Resolver) FetchCompanyConfig(ctx context.Context, companyID string) *CompanyConfig {
	if companyID == "" {
		return nil
	}
	key := r.configPrefix + companyID

	var entry cachedConfig
	hasEntry := r.readCache(ctx, key, &entry) && entry.Config != nil
	if hasEntry && fresh(entry.FetchedAt, r.now(), r.ttl) {
		r.onLookup(OutcomeCacheHit)
		return entry.Config
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		doc, err := r.fetch(ctx, companyID)
		if err != nil {
			return nil, err
		}
		cfg := configFromDocument(doc)
		r.writeCache(ctx, key, cachedConfig{Config: cfg, FetchedAt: r.now().UnixMilli()})
		return cfg, nil
	})
	if err == nil {
		r.onLookup(OutcomeFetched)
		return v.(*CompanyConfig)
	}

	r.log.Warn().Err(err).Str("company_id", companyID).Msg("company config fetch failed")
	if hasEntry {
		r.onLookup(OutcomeFallback)
		return entry.Config
	}
	r.onLookup(OutcomeUnavailable)
	return nil
}

// RequiredApps returns the catalog ids the company mandates, using its own
// cache entry with the same TTL and fallback rules. It never returns nil.
func (r *Resolver) RequiredApps(ctx context.Context, companyID string) []string {
	if companyID == "" {
		return []string{}
	}
	key := r.appsPrefix + companyID

	var entry cachedRequiredApps
	hasEntry := r.readCache(ctx, key, &entry)
	if hasEntry && fresh(entry.FetchedAt, r.now(), r.ttl) {
		return nonNil(entry.RequiredApps)
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		doc, err := r.fetch(ctx, companyID)
		if err != nil {
			return nil, err
		}
		apps := doc.StringArray("requiredApps")
		r.writeCache(ctx, key, cachedRequiredApps{RequiredApps: apps, FetchedAt: r.now().UnixMilli()})
		return apps, nil
	})
	if err == nil {
		return v.([]string)
	}

	r.log.Warn().Err(err).Str("company_id", companyID).Msg("required apps fetch failed")
	if hasEntry {
		return nonNil(entry.RequiredApps)
	}
	return []string{}
}

// ClearCache removes every cached config and required-apps list.
func (r *Resolver) ClearCache(ctx context.Context) error {
	return errors.Join(
		cache.DeletePrefix(ctx, r.cache, r.configPrefix),
		cache.DeletePrefix(ctx, r.cache, r.appsPrefix),
	)
}

func (r *Resolver) fetch(ctx context.Context, companyID string) (*directory.Document, error) {
	doc, err := r.docs.Get(ctx, companiesCollection, companyID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errCompanyNotFound
	}
	return doc, nil
}

// readCache decodes key into v. Unreadable entries count as absent.
func (r *Resolver) readCache(ctx context.Context, key string, v any) bool {
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("entitlement cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("entitlement cache entry unreadable")
		return false
	}
	return true
}

func (r *Resolver) writeCache(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("entitlement cache write failed")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
