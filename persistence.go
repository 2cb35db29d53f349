package careauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huigrowth/careauth/persist"
	"github.com/huigrowth/careauth/token"
)

const (
	persistVersionCurrent = 1
	persistVersionLegacy  = 0
)

// persistedState is the durable partition of State. IsLoading and Error
// are never written.
type persistedState struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// persistedEntry is the stored layout:
//
//	{"state":{"user":{...},"token":"..."},"version":1,"savedAt":1700000000}
//
// Version 0 entries lack savedAt and are upgraded on load.
type persistedEntry struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
	SavedAt int64          `json:"savedAt,omitempty"`
}

func encodeEntry(st State, now time.Time) ([]byte, error) {
	return json.Marshal(persistedEntry{
		State: persistedState{
			User:  st.User,
			Token: st.Token,
		},
		Version: persistVersionCurrent,
		SavedAt: now.Unix(),
	})
}

func decodeEntry(raw []byte) (persistedEntry, error) {
	var e persistedEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return persistedEntry{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if e.Version > persistVersionCurrent || e.Version < persistVersionLegacy {
		return persistedEntry{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}
	if (e.State.User == nil) != (e.State.Token == "") {
		return persistedEntry{}, fmt.Errorf("%w: user and token must be set together", ErrCorruptState)
	}
	return e, nil
}

type persister struct {
	kv      persist.KV
	key     string
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

func newPersister(kv persist.KV, cfg PersistenceConfig, logger *slog.Logger, metrics *Metrics, now func() time.Time) *persister {
	return &persister{
		kv:      kv,
		key:     cfg.Key,
		timeout: cfg.WriteTimeout,
		logger:  logger,
		metrics: metrics,
		now:     now,
	}
}

func (p *persister) load(ctx context.Context) (persistedEntry, error) {
	raw, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return persistedEntry{}, err
	}
	return decodeEntry(raw)
}

// observe is the commit-boundary subscriber. It writes when the user or
// token changed and deletes the entry when the token is gone.
func (p *persister) observe(prev, next State) {
	if next.Token == "" {
		if prev.Token != "" {
			p.remove(context.Background())
		}
		return
	}
	if next.Token == prev.Token && next.User == prev.User {
		return
	}
	p.save(context.Background(), next)
}

func (p *persister) save(ctx context.Context, st State) {
	raw, err := encodeEntry(st, p.now())
	if err != nil {
		p.fail("save", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.kv.Set(ctx, p.key, raw); err != nil {
		p.fail("save", err)
		return
	}
	p.metrics.Inc(MetricPersistWrite)
}

func (p *persister) remove(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.kv.Delete(ctx, p.key); err != nil {
		p.fail("delete", err)
		return
	}
	p.metrics.Inc(MetricPersistWrite)
}

func (p *persister) fail(op string, err error) {
	p.metrics.Inc(MetricPersistFailure)
	p.logger.Warn("careauth: persistence failed", "op", op, "key", p.key, "err", err)
}

// hydrate restores user and token from storage. Every failure leaves the
// store Anonymous and is only logged.
func (s *Store) hydrate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Session.HydrateTimeout)
	defer cancel()

	entry, err := s.persist.load(ctx)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return
	case errors.Is(err, ErrCorruptState):
		s.hydrateFailed("corrupt entry discarded", err)
		s.persist.remove(ctx)
		return
	case err != nil:
		s.hydrateFailed("entry not restored", err)
		return
	}

	if entry.State.User == nil {
		return
	}

	if s.cfg.Session.DropExpiredOnHydrate {
		if claims, err := token.Inspect(entry.State.Token); err == nil &&
			claims.Expired(s.now(), s.cfg.Session.ExpiryLeeway) {
			s.hydrateFailed("expired token discarded", fmt.Errorf("%w: exp %s", ErrExpiredToken, claims.ExpiresAt.Format(time.RFC3339)))
			s.persist.remove(ctx)
			return
		}
	}

	s.mu.Lock()
	s.state = State{
		User:  entry.State.User,
		Token: entry.State.Token,
	}
	restored := s.state
	s.mu.Unlock()

	s.metrics.Inc(MetricHydrateSuccess)
	s.logger.Debug("careauth: session restored", "user_id", string(restored.User.ID), "version", entry.Version)

	if entry.Version < persistVersionCurrent {
		s.persist.save(ctx, restored)
	}
}

func (s *Store) hydrateFailed(msg string, err error) {
	s.metrics.Inc(MetricHydrateFailure)
	s.logger.Warn("careauth: "+msg, "key", s.persist.key, "err", err)
}
