package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func backend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EmailOrUsername string `json:"emailOrUsername"`
			Password        string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a bearer token")
		}
		if req.EmailOrUsername != "mia" || req.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"tok-cli","user":{"id":42,"username":"mia","nickname":"Mia","role":"PARENT"}}}`))
	})
	mux.HandleFunc("/api/auth/check-username", func(w http.ResponseWriter, r *http.Request) {
		taken := r.URL.Query().Get("username") == "mia"
		if taken {
			_, _ = w.Write([]byte(`{"success":true,"data":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":true}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv("CAREAUTH_API_URL", apiURL)
	t.Setenv("CAREAUTH_STORE", "sqlite")
	t.Setenv("CAREAUTH_SQLITE_PATH", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("CAREAUTH_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CAREAUTH_STORE", "memory")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080/api" {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.StorageKey != "auth-storage" {
		t.Fatalf("unexpected storage key %q", cfg.StorageKey)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.Timeout)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown store", key: "CAREAUTH_STORE", value: "etcd"},
		{name: "bad timeout", key: "CAREAUTH_TIMEOUT", value: "-1s"},
		{name: "bad log level", key: "CAREAUTH_LOG_LEVEL", value: "loud"},
		{name: "redis without address", key: "CAREAUTH_STORE", value: "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CAREAUTH_STORE", "memory")
			t.Setenv("CAREAUTH_REDIS_ADDR", "")
			t.Setenv(tt.key, tt.value)
			if _, err := loadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := backend(t)
	setupEnv(t, srv.URL+"/api")

	if _, _, err := execute(t, "whoami"); err == nil {
		t.Fatalf("expected whoami to fail before login")
	}

	out, _, err := execute(t, "login", "mia", "--password", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, `"username": "mia"`) {
		t.Fatalf("unexpected login output %q", out)
	}

	// Each command is a fresh process view of the stored session.
	out, _, err = execute(t, "whoami", "--token")
	if err != nil {
		t.Fatalf("whoami failed: %v", err)
	}
	if strings.TrimSpace(out) != "tok-cli" {
		t.Fatalf("expected stored token, got %q", out)
	}

	out, _, err = execute(t, "logout")
	if err != nil || !strings.Contains(out, "logged out") {
		t.Fatalf("logout failed: %v %q", err, out)
	}
	if _, _, err := execute(t, "whoami"); err == nil {
		t.Fatalf("expected whoami to fail after logout")
	}
}

func TestRedisStoreKeepsSessionAcrossCommands(t *testing.T) {
	srv := backend(t)
	setupEnv(t, srv.URL+"/api")
	mr := miniredis.RunT(t)
	t.Setenv("CAREAUTH_STORE", "redis")
	t.Setenv("CAREAUTH_REDIS_ADDR", mr.Addr())

	if _, _, err := execute(t, "login", "mia", "--password", "secret1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !mr.Exists("careauth:auth-storage") {
		t.Fatalf("expected session written to redis")
	}
	out, _, err := execute(t, "whoami", "--token")
	if err != nil || strings.TrimSpace(out) != "tok-cli" {
		t.Fatalf("expected stored token, got %q %v", out, err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1/api")
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	t.Setenv("CAREAUTH_STORE", "redis")
	t.Setenv("CAREAUTH_REDIS_ADDR", addr)

	if _, _, err := execute(t, "whoami"); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}

func TestLoginRejectedPrintsBackendMessage(t *testing.T) {
	srv := backend(t)
	setupEnv(t, srv.URL+"/api")

	_, errOut, err := execute(t, "login", "mia", "--password", "wrong")
	if err == nil {
		t.Fatalf("expected login error")
	}
	if !strings.Contains(errOut, "invalid credentials") {
		t.Fatalf("expected notification on stderr, got %q", errOut)
	}
}

func TestLoginPasswordFromStdin(t *testing.T) {
	srv := backend(t)
	setupEnv(t, srv.URL+"/api")

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetIn(strings.NewReader("secret1\n"))
	root.SetArgs([]string{"login", "mia", "--password-stdin"})
	if err := root.Execute(); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestAvailable(t *testing.T) {
	srv := backend(t)
	setupEnv(t, srv.URL+"/api")

	out, _, err := execute(t, "available", "--username", "mia")
	if err != nil || strings.TrimSpace(out) != "taken" {
		t.Fatalf("expected taken, got %q %v", out, err)
	}
	out, _, err = execute(t, "available", "--username", "lily")
	if err != nil || strings.TrimSpace(out) != "available" {
		t.Fatalf("expected available, got %q %v", out, err)
	}
	if _, _, err := execute(t, "available"); err == nil {
		t.Fatalf("expected error without a flag")
	}
}

func TestMetricsCountsHydration(t *testing.T) {
	srv := backend(t)
	setupEnv(t, srv.URL+"/api")

	if _, _, err := execute(t, "login", "mia", "--password", "secret1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	out, _, err := execute(t, "metrics")
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	if !strings.Contains(out, "careauth_hydrate_success_total 1") {
		t.Fatalf("expected hydrate counter, got %q", out)
	}
}

func TestProfileSetNeedsAField(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1/api")

	if _, _, err := execute(t, "profile", "set"); err == nil {
		t.Fatalf("expected error for empty patch")
	}
}
