package careauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/huigrowth/careauth/api"
	"go.opentelemetry.io/otel/trace"
)

// AuthClient is the remote collaborator behind a [Store]. *api.Client
// satisfies it; tests substitute fakes.
type AuthClient interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.Envelope[api.AuthPayload], error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.Envelope[api.AuthPayload], error)
	Refresh(ctx context.Context) (*api.Envelope[api.AuthPayload], error)
	Me(ctx context.Context) (*api.Envelope[api.User], error)
	UpdateProfile(ctx context.Context, req api.ProfileUpdate) (*api.Envelope[api.User], error)
	ChangePassword(ctx context.Context, req api.ChangePasswordRequest) (*api.Envelope[string], error)
}

// Store owns the authenticated user and bearer token of one client
// process. Construct it with [New] and [Builder.Build]; all methods are safe
// for concurrent use.
//
// The store never holds its lock across a remote call. A response is
// applied only if no newer attempt, logout, or rejected-credentials signal
// happened while it was in flight (see SessionConfig.DiscardStaleResponses).
type Store struct {
	cfg      Config
	client   AuthClient
	attached *api.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	notify   *notifyDispatcher
	persist  *persister
	now      func() time.Time

	mu    sync.RWMutex
	state State
	// attempt numbers Login/Register calls; epoch numbers sessions. Both
	// advance on Logout and on a backend 401.
	attempt uint64
	epoch   uint64

	// commitMu orders commits with their observer callbacks.
	commitMu    sync.Mutex
	subMu       sync.RWMutex
	subscribers []subscriber
	nextSubID   uint64
}

type subscriber struct {
	id  uint64
	fn  func(prev, next State)
	raw bool
}

/*
====================================
ACCESSORS
====================================
*/

// State returns a copy of the current session state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// User returns a copy of the current user, or nil when Anonymous.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.state.User)
}

// Token returns the bearer token, empty when Anonymous. It also makes the
// store an api.Session.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// IsLoading reports whether a Login or Register call is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

// ErrorMessage returns the message of the last failed auth attempt, or the
// value last given to SetError.
func (s *Store) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error
}

// IsAuthenticated reports whether a user is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User != nil
}

/*
====================================
AUTH FLOWS
====================================
*/

type authOp struct {
	name      string
	success   MetricID
	failure   MetricID
	failed    string
	succeeded string
}

// Login authenticates with a username or email and a password. On any
// failure Error holds the backend message (or the configured fallback) and
// the failure is also returned.
func (s *Store) Login(ctx context.Context, identifier, password string) error {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	gen := s.beginAttempt()

	start := time.Now()
	env, err := s.client.Login(ctx, api.LoginRequest{
		EmailOrUsername: identifier,
		Password:        password,
	})
	s.metrics.Observe(MetricRemoteLatency, time.Since(start))

	err = s.finishAuth(ctx, gen, authOp{
		name:    "login",
		success: MetricLoginSuccess,
		failure: MetricLoginFailure,
		failed:  s.cfg.Messages.LoginFailed,
	}, env, err)
	endSpan(span, err)
	return err
}

// Register creates an account and, on success, signs it in.
func (s *Store) Register(ctx context.Context, in RegisterInput) error {
	ctx, span := s.startSpan(ctx, "Register")
	defer span.End()

	gen := s.beginAttempt()

	start := time.Now()
	env, err := s.client.Register(ctx, in.request())
	s.metrics.Observe(MetricRemoteLatency, time.Since(start))

	err = s.finishAuth(ctx, gen, authOp{
		name:      "register",
		success:   MetricRegisterSuccess,
		failure:   MetricRegisterFailure,
		failed:    s.cfg.Messages.RegisterFailed,
		succeeded: s.cfg.Messages.RegisterSucceeded,
	}, env, err)
	endSpan(span, err)
	return err
}

func (s *Store) beginAttempt() uint64 {
	var gen uint64
	s.commit(func(st *State) bool {
		s.attempt++
		gen = s.attempt
		st.IsLoading = true
		st.Error = ""
		return true
	})
	return gen
}

func (s *Store) finishAuth(ctx context.Context, gen uint64, op authOp, env *api.Envelope[api.AuthPayload], callErr error) error {
	payload, err := authPayload(env, callErr)
	if err != nil {
		msg := failureMessage(err, op.failed)
		applied := s.commitIfCurrent(&s.attempt, gen, func(st *State) bool {
			st.IsLoading = false
			st.Error = msg
			return true
		})
		if !applied {
			s.metrics.Inc(MetricStaleDiscarded)
			return errors.Join(ErrStaleResponse, err)
		}
		s.metrics.Inc(op.failure)
		s.logger.Info("careauth: auth attempt failed", "op", op.name, "err", err)
		s.emit(ctx, LevelError, op.name, msg, "")
		return err
	}

	user := cloneUser(payload.User)
	applied := s.commitIfCurrent(&s.attempt, gen, func(st *State) bool {
		s.epoch++
		st.User = user
		st.Token = payload.Token
		st.IsLoading = false
		st.Error = ""
		return true
	})
	if !applied {
		s.metrics.Inc(MetricStaleDiscarded)
		return ErrStaleResponse
	}

	s.metrics.Inc(op.success)
	if op.succeeded != "" {
		s.emit(ctx, LevelSuccess, op.name, op.succeeded, string(user.ID))
	}
	return nil
}

// authPayload extracts a usable user and token from a login-shaped
// response.
func authPayload(env *api.Envelope[api.AuthPayload], err error) (api.AuthPayload, error) {
	if err != nil {
		return api.AuthPayload{}, err
	}
	if env == nil {
		return api.AuthPayload{}, ErrEmptyPayload
	}
	if err := env.Rejection(); err != nil {
		return api.AuthPayload{}, err
	}
	if env.Data == nil || env.Data.User == nil || env.Data.Token == "" {
		return api.AuthPayload{}, errors.Join(ErrEmptyPayload, &api.Error{
			Status:  200,
			Code:    env.Code,
			Message: env.Message,
		})
	}
	return *env.Data, nil
}

func failureMessage(err error, fallback string) string {
	if msg := api.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}

/*
====================================
SESSION TERMINATION
====================================
*/

// Logout clears the session and removes the persisted entry. It makes no
// network call and is safe to repeat.
func (s *Store) Logout() {
	s.clearSession(context.Background())
	s.metrics.Inc(MetricLogout)
}

// HandleUnauthorized is called by the HTTP client when the backend rejects
// the bearer token. It clears the session like [Store.Logout] and tells the
// user to sign in again.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	if !s.clearSession(ctx) {
		return
	}
	s.metrics.Inc(MetricUnauthorized)
	s.logger.Info("careauth: session rejected by backend")
	s.emit(ctx, LevelWarning, "unauthorized", s.cfg.Messages.SessionExpired, "")
}

// clearSession reports whether a session was active.
func (s *Store) clearSession(ctx context.Context) bool {
	var had bool
	s.commit(func(st *State) bool {
		had = st.User != nil || st.Token != ""
		s.attempt++
		s.epoch++

		next := State{}
		if !s.cfg.Session.DiscardStaleResponses {
			next.IsLoading = st.IsLoading
		}
		*st = next
		return true
	})
	if !had {
		s.persist.remove(ctx)
	}
	return had
}

/*
====================================
LOCAL MUTATIONS
====================================
*/

// UpdateUser merges patch into the current user. It does nothing when
// Anonymous; the token is never touched.
func (s *Store) UpdateUser(patch UserPatch) {
	s.commit(func(st *State) bool {
		if st.User == nil {
			return false
		}
		merged := patch.Apply(*st.User)
		st.User = &merged
		return true
	})
}

// SetLoading overrides the loading flag. It is never persisted.
func (s *Store) SetLoading(loading bool) {
	s.commit(func(st *State) bool {
		st.IsLoading = loading
		return true
	})
}

// SetError sets the user-facing error message. It is never persisted.
func (s *Store) SetError(msg string) {
	s.commit(func(st *State) bool {
		st.Error = msg
		return true
	})
}

func (s *Store) ClearError() {
	s.SetError("")
}

/*
====================================
COMMIT AND OBSERVERS
====================================
*/

// Subscribe registers fn to run after every commit, in registration order,
// with copies of the previous and next state. fn must not call mutating
// Store methods. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(prev, next State)) func() {
	return s.subscribe(fn, false)
}

func (s *Store) subscribe(fn func(prev, next State), raw bool) func() {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn, raw: raw})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// commit applies mutate under the state lock and then runs observers.
// mutate returns false to abandon the commit.
func (s *Store) commit(mutate func(st *State) bool) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := prev
	if !mutate(&next) {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.mu.Unlock()

	s.publish(prev, next)
	return true
}

// commitIfCurrent is commit gated on *counter still being want. counter is
// &s.attempt or &s.epoch and is only read under s.mu.
func (s *Store) commitIfCurrent(counter *uint64, want uint64, mutate func(st *State) bool) bool {
	stale := false
	applied := s.commit(func(st *State) bool {
		if s.cfg.Session.DiscardStaleResponses && *counter != want {
			stale = true
			return false
		}
		return mutate(st)
	})
	return applied && !stale
}

func (s *Store) publish(prev, next State) {
	s.subMu.RLock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, sub := range subs {
		if sub.raw {
			sub.fn(prev, next)
			continue
		}
		sub.fn(prev.clone(), next.clone())
	}
}

/*
====================================
LIFECYCLE
====================================
*/

// Close flushes pending notifications and detaches the store from the
// HTTP client it was built with. State is left as is.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.attached != nil {
		s.attached.Attach(nil)
	}
	s.notify.close()
}

// MetricsSnapshot returns the store's counters. It is empty when metrics
// are disabled.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// NotificationsDropped counts notifications lost to a full async queue.
func (s *Store) NotificationsDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.notify.droppedCount()
}

func (s *Store) emit(ctx context.Context, level Level, op, msg, userID string) {
	s.notify.emit(ctx, Notification{
		Timestamp: s.now(),
		Level:     level,
		Operation: op,
		Message:   msg,
		UserID:    userID,
	})
}
