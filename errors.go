package careauth

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that need a session when
	// the store is Anonymous.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmptyPayload is returned when the backend reports success without
	// the user and token the operation needs.
	ErrEmptyPayload = errors.New("response missing payload")
	// ErrStaleResponse is returned when a response arrives after the attempt
	// that issued it was superseded by a newer attempt, a logout, or a
	// rejected-credentials signal. The response is not applied.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrClientRequired is returned by Build without an auth client.
	ErrClientRequired = errors.New("auth client required")
	// ErrInvalidConfig wraps the first failure reported by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrCorruptState is reported when the persisted entry cannot be decoded
	// or violates the user/token invariant.
	ErrCorruptState = errors.New("persisted session corrupt")
	// ErrUnsupportedVersion is reported for persisted entries written by a
	// newer release.
	ErrUnsupportedVersion = errors.New("persisted session version unsupported")
	// ErrExpiredToken is reported when a persisted token has already expired.
	ErrExpiredToken = errors.New("persisted token expired")
)
