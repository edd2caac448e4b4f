package hubauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wellbuilt/hubauth/cache"
	"github.com/wellbuilt/hubauth/directory"
	"github.com/wellbuilt/hubauth/entitlement"
	"github.com/wellbuilt/hubauth/internal/audit"
	"github.com/wellbuilt/hubauth/internal/logger"
	"github.com/wellbuilt/hubauth/profile"
	"github.com/wellbuilt/hubauth/session"
)

// Builder assembles an Engine. Each Builder builds at most once.
type Builder struct {
	config    Config
	logger    zerolog.Logger
	loggerSet bool
	now       func() time.Time

	redis      redis.UniversalClient
	sessionKV  session.KV
	cacheStore cache.Store
	httpClient *http.Client
	auditSink  AuditSink

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithDirectory sets the driver tree and document store endpoints.
func (b *Builder) WithDirectory(databaseURL, documentsURL, apiKey string) *Builder {
	b.config.Directory.DatabaseURL = databaseURL
	b.config.Directory.DocumentsURL = documentsURL
	b.config.Directory.APIKey = apiKey
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	b.loggerSet = true
	return b
}

// WithRedis backs both the session store and the cache with client, unless
// WithSessionKV or WithCache override one of them.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionKV sets the secure store backing sessions.
func (b *Builder) WithSessionKV(kv session.KV) *Builder {
	b.sessionKV = kv
	return b
}

// WithCache sets the store backing entitlement and profile caches.
func (b *Builder) WithCache(store cache.Store) *Builder {
	b.cacheStore = store
	return b
}

func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock sets the time source for sessions, TTLs and audit stamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	if now != nil {
		b.now = now
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	cfg := b.config.clone()
	base := b.baseLogger(cfg.Logging)
	log := base.With().Str("component", "hubauth").Logger()
	metrics := NewMetrics(cfg.Metrics)

	onRequest := func(_ string, elapsed time.Duration, _ error) {
		metrics.Observe(MetricDirectoryLatency, elapsed)
	}
	driverClient := directory.New(directory.Config{
		BaseURL:    cfg.Directory.DatabaseURL,
		APIKey:     cfg.Directory.APIKey,
		Suffix:     ".json",
		Timeout:    cfg.Directory.Timeout,
		HTTPClient: b.httpClient,
		Logger:     base,
		OnRequest:  onRequest,
	})
	documentClient := directory.New(directory.Config{
		BaseURL:    cfg.Directory.DocumentsURL,
		APIKey:     cfg.Directory.DocumentsAPIKey,
		AuthParam:  "key",
		Timeout:    cfg.Directory.Timeout,
		HTTPClient: b.httpClient,
		Logger:     base,
		OnRequest:  onRequest,
	})

	kv := b.sessionKV
	if kv == nil && b.redis != nil {
		kv = session.NewRedisKV(b.redis, cfg.Session.RedisPrefix, cfg.Session.DeviceID)
	}
	if kv == nil {
		fileKV, err := session.NewFileKV(cfg.Session.Dir, base)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		kv = fileKV
	}

	store := b.cacheStore
	if store == nil && b.redis != nil {
		store = cache.NewRedisStore(b.redis, cfg.Entitlement.CacheNamespace)
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}

	sessions := session.NewStore(kv,
		session.WithReadTimeout(cfg.Session.ReadTimeout),
		session.WithClock(b.now),
		session.WithLogger(base),
	)
	resolver := entitlement.NewResolver(directory.NewDocuments(documentClient), store,
		entitlement.WithTTL(cfg.Entitlement.CacheTTL),
		entitlement.WithPrefixes(cfg.Entitlement.CachePrefix, cfg.Entitlement.RequiredAppsPrefix),
		entitlement.WithClock(b.now),
		entitlement.WithLogger(base),
		entitlement.WithLookupObserver(metrics.observeLookup),
	)

	var sink audit.Sink = b.auditSink
	if sink == nil {
		sink = audit.NewLogSink(base)
	}
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Events:     cfg.Audit.Events,
	}, sink)

	e := &Engine{
		config:   cfg,
		log:      log,
		now:      b.now,
		policy:   cfg.passcodePolicy(),
		drivers:  directory.NewDrivers(driverClient),
		sessions: sessions,
		resolver: resolver,
		profiles: profile.NewService(driverClient, store, base),
		audit:    dispatcher,
		metrics:  metrics,
	}
	e.flows = e.buildFlowDeps()

	b.built = true
	log.Debug().
		Bool("audit", cfg.Audit.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Dur("directory_timeout", cfg.Directory.Timeout).
		Msg("engine built")
	return e, nil
}

// baseLogger is the injected logger, or a console debug logger when
// logging.dev is set and none was injected.
func (b *Builder) baseLogger(cfg LoggingConfig) zerolog.Logger {
	if b.loggerSet || !cfg.Dev {
		return b.logger
	}
	return logger.Setup(true)
}
