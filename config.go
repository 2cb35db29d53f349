package careauth

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of a [Store]. Obtain defaults from
// [DefaultConfig] and override fields before passing it to
// [Builder.WithConfig].
type Config struct {
	Session     SessionConfig
	Persistence PersistenceConfig
	Notify      NotifyConfig
	Metrics     MetricsConfig
	Messages    MessagesConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls how attempts and hydration behave.
type SessionConfig struct {
	// DiscardStaleResponses drops login/register/refresh responses whose
	// attempt was superseded. false restores last-write-wins.
	DiscardStaleResponses bool
	// DropExpiredOnHydrate discards a persisted JWT whose exp has passed.
	DropExpiredOnHydrate bool
	// ExpiryLeeway is tolerated clock skew when judging expiry.
	ExpiryLeeway time.Duration
	// HydrateTimeout bounds the initial storage read in Build.
	HydrateTimeout time.Duration
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig controls the durable copy of user and token.
type PersistenceConfig struct {
	// Key is the storage entry name.
	Key string
	// WriteTimeout bounds each best-effort write or delete.
	WriteTimeout time.Duration
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls delivery of user-visible notifications.
type NotifyConfig struct {
	Enabled bool
	// Async hands notifications to a background goroutine through a buffer
	// of BufferSize. Sync delivery runs the sink inline.
	Async      bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the remote latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// MessagesConfig holds the user-facing fallback texts.
type MessagesConfig struct {
	LoginFailed          string
	RegisterFailed       string
	RegisterSucceeded    string
	SessionExpired       string
	PasswordChanged      string
	PasswordChangeFailed string
	ProfileUpdated       string
	ProfileFailed        string
	RefreshFailed        string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultStorageKey is the entry name used by the original web client.
const DefaultStorageKey = "auth-storage"

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			DiscardStaleResponses: true,
			DropExpiredOnHydrate:  true,
			ExpiryLeeway:          30 * time.Second,
			HydrateTimeout:        5 * time.Second,
		},
		Persistence: PersistenceConfig{
			Key:          DefaultStorageKey,
			WriteTimeout: 2 * time.Second,
		},
		Notify: NotifyConfig{
			Enabled:    true,
			Async:      true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Messages: MessagesConfig{
			LoginFailed:          "login failed",
			RegisterFailed:       "registration failed",
			RegisterSucceeded:    "registration successful",
			SessionExpired:       "session expired, please log in again",
			PasswordChanged:      "password changed",
			PasswordChangeFailed: "password change failed",
			ProfileUpdated:       "profile updated",
			ProfileFailed:        "profile update failed",
			RefreshFailed:        "token refresh failed",
		},
	}
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Persistence.Key = strings.TrimSpace(cfg.Persistence.Key)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.ExpiryLeeway < 0 || c.Session.ExpiryLeeway > 5*time.Minute {
		return errors.New("Session ExpiryLeeway must be between 0 and 5m")
	}
	if c.Session.HydrateTimeout <= 0 {
		return errors.New("Session HydrateTimeout must be > 0")
	}

	// Persistence
	if strings.TrimSpace(c.Persistence.Key) == "" {
		return errors.New("Persistence Key must not be empty")
	}
	if c.Persistence.WriteTimeout <= 0 {
		return errors.New("Persistence WriteTimeout must be > 0")
	}

	// Notify
	if c.Notify.Enabled && c.Notify.Async && c.Notify.BufferSize <= 0 {
		return errors.New("Notify BufferSize must be > 0 when Async is true")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Messages
	if c.Messages.LoginFailed == "" ||
		c.Messages.RegisterFailed == "" ||
		c.Messages.RegisterSucceeded == "" ||
		c.Messages.SessionExpired == "" ||
		c.Messages.PasswordChanged == "" ||
		c.Messages.PasswordChangeFailed == "" ||
		c.Messages.ProfileUpdated == "" ||
		c.Messages.ProfileFailed == "" ||
		c.Messages.RefreshFailed == "" {
		return errors.New("Messages must all be non-empty")
	}

	return nil
}
