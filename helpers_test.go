package careauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/huigrowth/careauth/api"
	"github.com/huigrowth/careauth/persist"
	"github.com/redis/go-redis/v9"
)

var errUnexpectedCall = errors.New("unexpected call")

type fakeAuthClient struct {
	login          func(context.Context, api.LoginRequest) (*api.Envelope[api.AuthPayload], error)
	register       func(context.Context, api.RegisterRequest) (*api.Envelope[api.AuthPayload], error)
	refresh        func(context.Context) (*api.Envelope[api.AuthPayload], error)
	me             func(context.Context) (*api.Envelope[api.User], error)
	updateProfile  func(context.Context, api.ProfileUpdate) (*api.Envelope[api.User], error)
	changePassword func(context.Context, api.ChangePasswordRequest) (*api.Envelope[string], error)
}

func (f *fakeAuthClient) Login(ctx context.Context, req api.LoginRequest) (*api.Envelope[api.AuthPayload], error) {
	if f.login == nil {
		return nil, errUnexpectedCall
	}
	return f.login(ctx, req)
}

func (f *fakeAuthClient) Register(ctx context.Context, req api.RegisterRequest) (*api.Envelope[api.AuthPayload], error) {
	if f.register == nil {
		return nil, errUnexpectedCall
	}
	return f.register(ctx, req)
}

func (f *fakeAuthClient) Refresh(ctx context.Context) (*api.Envelope[api.AuthPayload], error) {
	if f.refresh == nil {
		return nil, errUnexpectedCall
	}
	return f.refresh(ctx)
}

func (f *fakeAuthClient) Me(ctx context.Context) (*api.Envelope[api.User], error) {
	if f.me == nil {
		return nil, errUnexpectedCall
	}
	return f.me(ctx)
}

func (f *fakeAuthClient) UpdateProfile(ctx context.Context, req api.ProfileUpdate) (*api.Envelope[api.User], error) {
	if f.updateProfile == nil {
		return nil, errUnexpectedCall
	}
	return f.updateProfile(ctx, req)
}

func (f *fakeAuthClient) ChangePassword(ctx context.Context, req api.ChangePasswordRequest) (*api.Envelope[string], error) {
	if f.changePassword == nil {
		return nil, errUnexpectedCall
	}
	return f.changePassword(ctx, req)
}

func testUser() *api.User {
	return &api.User{
		ID:       "42",
		Username: "mia",
		Email:    "mia@example.com",
		Phone:    "13800000000",
		Nickname: "Mia",
		City:     "Hangzhou",
		Role:     api.RoleParent,
	}
}

func okAuth(token string, u *api.User) *api.Envelope[api.AuthPayload] {
	return &api.Envelope[api.AuthPayload]{
		Success: true,
		Message: "ok",
		Code:    "SUCCESS",
		Data: &api.AuthPayload{
			Token: token,
			Type:  "Bearer",
			User:  u,
		},
	}
}

func loginReturning(token string, u *api.User) func(context.Context, api.LoginRequest) (*api.Envelope[api.AuthPayload], error) {
	return func(context.Context, api.LoginRequest) (*api.Envelope[api.AuthPayload], error) {
		return okAuth(token, u), nil
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Notify.Async = false
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type storeOption func(*Builder)

func withNotifier(n Notifier) storeOption {
	return func(b *Builder) { b.WithNotifier(n) }
}

func withConfig(cfg Config) storeOption {
	return func(b *Builder) { b.WithConfig(cfg) }
}

func buildTestStore(t *testing.T, client AuthClient, kv persist.KV, opts ...storeOption) *Store {
	t.Helper()

	b := New().
		WithConfig(testConfig()).
		WithAuthClient(client).
		WithStorage(kv).
		WithLogger(discardLogger())
	for _, opt := range opts {
		opt(b)
	}

	store, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

// signedToken returns an HS256 JWT for subject expiring at exp.
func signedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()

	claims := gojwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  gojwt.NewNumericDate(exp.Add(-time.Hour)),
		ExpiresAt: gojwt.NewNumericDate(exp),
	}
	raw, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-0123456789abcdef"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func readEntry(t *testing.T, kv persist.KV, key string) persistedEntry {
	t.Helper()

	raw, err := kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("read %q: %v", key, err)
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		t.Fatalf("decode %q: %v", key, err)
	}
	return entry
}
