package careauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/huigrowth/careauth/api"
	"github.com/huigrowth/careauth/persist"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Builder assembles a [Store]. A Builder is single-use.
type Builder struct {
	config Config

	client    AuthClient
	apiClient *api.Client
	storage   persist.KV
	notifier  Notifier
	logger    *slog.Logger
	tracer    trace.TracerProvider

	built bool
}

// New returns a Builder with [DefaultConfig] and in-memory storage.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAPIClient uses c as the remote collaborator and attaches the built
// store to it, so requests carry the token and 401s end the session.
func (b *Builder) WithAPIClient(c *api.Client) *Builder {
	if c == nil {
		b.apiClient = nil
		b.client = nil
		return b
	}
	b.apiClient = c
	b.client = c
	return b
}

// WithAuthClient uses a custom remote collaborator. Nothing is attached;
// callers wiring their own transport deliver 401s via
// [Store.HandleUnauthorized].
func (b *Builder) WithAuthClient(c AuthClient) *Builder {
	b.client = c
	b.apiClient = nil
	return b
}

// WithStorage sets the backend holding the persisted session.
func (b *Builder) WithStorage(kv persist.KV) *Builder {
	b.storage = kv
	return b
}

// WithStorageKey overrides the persisted entry name.
func (b *Builder) WithStorageKey(key string) *Builder {
	b.config.Persistence.Key = key
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
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

// Build validates the configuration, restores any persisted session and
// returns a ready store. Hydration failures are logged, not returned.
func (b *Builder) Build(ctx context.Context) (*Store, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if b.client == nil {
		return nil, ErrClientRequired
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	kv := b.storage
	if kv == nil {
		kv = persist.NewMemory()
	}

	s := &Store{
		cfg:     cfg,
		client:  b.client,
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		metrics: NewMetrics(cfg.Metrics),
		now:     time.Now,
	}
	s.notify = newNotifyDispatcher(cfg.Notify, b.notifier, logger)
	s.persist = newPersister(kv, cfg.Persistence, logger, s.metrics, s.now)

	// -------- HYDRATION --------
	s.hydrate(ctx)
	s.subscribe(s.persist.observe, true)

	if b.apiClient != nil {
		b.apiClient.Attach(s)
		s.attached = b.apiClient
	}

	b.built = true
	return s, nil
}
