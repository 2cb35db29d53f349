package careauth

import (
	"context"
	"errors"
	"time"

	"github.com/huigrowth/careauth/api"
	"github.com/huigrowth/careauth/token"
)

// Refresh exchanges the current token for a new one. The user is replaced
// only when the backend returns it. A failed refresh leaves the session
// intact unless the backend answered 401, in which case the HTTP client has
// already ended it.
func (s *Store) Refresh(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Refresh")
	defer span.End()

	if !s.IsAuthenticated() {
		endSpan(span, ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	start := time.Now()
	env, err := s.client.Refresh(ctx)
	s.metrics.Observe(MetricRemoteLatency, time.Since(start))

	err = s.finishRefresh(ctx, epoch, env, err)
	endSpan(span, err)
	return err
}

func (s *Store) finishRefresh(ctx context.Context, epoch uint64, env *api.Envelope[api.AuthPayload], err error) error {
	if err == nil {
		if env == nil {
			err = ErrEmptyPayload
		} else if rej := env.Rejection(); rej != nil {
			err = rej
		} else if env.Data == nil || env.Data.Token == "" {
			err = ErrEmptyPayload
		}
	}
	if err != nil {
		if s.sessionChanged(epoch) {
			s.metrics.Inc(MetricStaleDiscarded)
			return errors.Join(ErrStaleResponse, err)
		}
		s.metrics.Inc(MetricRefreshFailure)
		s.logger.Warn("careauth: token refresh failed", "err", err)
		s.emit(ctx, LevelWarning, "refresh", failureMessage(err, s.cfg.Messages.RefreshFailed), "")
		return err
	}

	payload := *env.Data
	applied := s.commitIfCurrent(&s.epoch, epoch, func(st *State) bool {
		if st.User == nil {
			return false
		}
		st.Token = payload.Token
		if payload.User != nil {
			st.User = cloneUser(payload.User)
		}
		return true
	})
	if !applied {
		s.metrics.Inc(MetricStaleDiscarded)
		return ErrStaleResponse
	}

	s.metrics.Inc(MetricRefreshSuccess)
	return nil
}

// sessionChanged reports whether a login, logout or 401 replaced the
// session captured as epoch.
func (s *Store) sessionChanged(epoch uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Session.DiscardStaleResponses && s.epoch != epoch
}

// RefreshIfExpiring refreshes when the token is a JWT expiring within
// window. Opaque tokens are never refreshed. The bool reports whether a
// refresh was attempted.
func (s *Store) RefreshIfExpiring(ctx context.Context, window time.Duration) (bool, error) {
	raw := s.Token()
	if raw == "" {
		return false, ErrNotAuthenticated
	}

	claims, err := token.Inspect(raw)
	if err != nil {
		return false, nil
	}
	if !claims.ExpiresWithin(s.now(), window) {
		return false, nil
	}

	return true, s.Refresh(ctx)
}

// TokenExpiry returns the exp claim of the current token. ok is false when
// Anonymous or when the token is not a JWT carrying exp.
func (s *Store) TokenExpiry() (time.Time, bool) {
	raw := s.Token()
	if raw == "" {
		return time.Time{}, false
	}

	claims, err := token.Inspect(raw)
	if err != nil || !claims.HasExpiry() {
		return time.Time{}, false
	}
	return claims.ExpiresAt, true
}

// SaveProfile sends patch to the backend, applies it to the current user and
// then merges in the non-empty fields of the user the backend returns. Only
// email, phone, nickname, avatar and city are sent.
func (s *Store) SaveProfile(ctx context.Context, patch UserPatch) error {
	ctx, span := s.startSpan(ctx, "SaveProfile")
	defer span.End()

	sessionToken := s.Token()
	if sessionToken == "" {
		endSpan(span, ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	start := time.Now()
	env, err := s.client.UpdateProfile(ctx, patch.profileUpdate())
	s.metrics.Observe(MetricRemoteLatency, time.Since(start))
	if err == nil && env != nil {
		err = env.Rejection()
	}
	if err != nil {
		s.emit(ctx, LevelError, "profile", failureMessage(err, s.cfg.Messages.ProfileFailed), "")
		endSpan(span, err)
		return err
	}

	applied := s.commit(func(st *State) bool {
		if st.User == nil || st.Token != sessionToken {
			return false
		}
		merged := patch.Apply(*st.User)
		if env != nil && env.Data != nil {
			merged = patchFromUser(*env.Data).Apply(merged)
		}
		st.User = &merged
		return true
	})
	if !applied {
		s.metrics.Inc(MetricStaleDiscarded)
		endSpan(span, ErrStaleResponse)
		return ErrStaleResponse
	}

	s.metrics.Inc(MetricProfileUpdate)
	s.emit(ctx, LevelSuccess, "profile", s.cfg.Messages.ProfileUpdated, s.userID())
	return nil
}

// ReloadUser replaces the current user with the backend's copy.
func (s *Store) ReloadUser(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "ReloadUser")
	defer span.End()

	sessionToken := s.Token()
	if sessionToken == "" {
		endSpan(span, ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	start := time.Now()
	env, err := s.client.Me(ctx)
	s.metrics.Observe(MetricRemoteLatency, time.Since(start))
	if err == nil {
		if env == nil {
			err = ErrEmptyPayload
		} else if rej := env.Rejection(); rej != nil {
			err = rej
		} else if env.Data == nil {
			err = ErrEmptyPayload
		}
	}
	if err != nil {
		endSpan(span, err)
		return err
	}

	user := *env.Data
	applied := s.commit(func(st *State) bool {
		if st.User == nil || st.Token != sessionToken {
			return false
		}
		st.User = &user
		return true
	})
	if !applied {
		s.metrics.Inc(MetricStaleDiscarded)
		endSpan(span, ErrStaleResponse)
		return ErrStaleResponse
	}
	return nil
}

// ChangePassword changes the account password. The session is kept.
func (s *Store) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	ctx, span := s.startSpan(ctx, "ChangePassword")
	defer span.End()

	if !s.IsAuthenticated() {
		endSpan(span, ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	start := time.Now()
	env, err := s.client.ChangePassword(ctx, api.ChangePasswordRequest{
		OldPassword: oldPassword,
		NewPassword: newPassword,
	})
	s.metrics.Observe(MetricRemoteLatency, time.Since(start))
	if err == nil && env != nil {
		err = env.Rejection()
	}
	if err != nil {
		s.emit(ctx, LevelError, "password", failureMessage(err, s.cfg.Messages.PasswordChangeFailed), "")
		endSpan(span, err)
		return err
	}

	s.metrics.Inc(MetricPasswordChange)
	s.emit(ctx, LevelSuccess, "password", s.cfg.Messages.PasswordChanged, s.userID())
	return nil
}

func (s *Store) userID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return ""
	}
	return string(s.state.User.ID)
}
