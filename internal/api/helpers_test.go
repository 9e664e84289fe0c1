package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/devicehub/internal/audit"
	"github.com/nerrad567/devicehub/internal/auth"
	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
	"github.com/nerrad567/devicehub/internal/telemetry"
	_ "github.com/nerrad567/devicehub/migrations"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testServer creates a Server backed by a migrated SQLite database in a
// temp dir. Background goroutines stop when the test ends.
func testServer(t *testing.T, opts ...func(*Deps)) *Server {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	accounts := auth.NewService(auth.NewAccountRepository(db.DB))
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), accounts)
	store := telemetry.NewStore(telemetry.NewSQLiteRepository(db.DB))
	m := metrics.New()
	store.SetMetrics(m)

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
		},
		Logger:   logging.Discard(),
		Accounts: accounts,
		Issuer:   auth.NewIssuer(accounts, testJWTSecret, 15*time.Minute),
		Registry: registry,
		Store:    store,
		Audit:    audit.NewSQLiteRepository(db.DB),
		Metrics:  m,
		Checks:   map[string]HealthChecker{"database": db},
		Version:  "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	store.AddSink(NewHubSink(srv.Hub()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)
	if srv.auditCh != nil {
		go srv.drainAuditLog(ctx)
	}
	return srv
}

// do sends a request through h and returns the recorder. body may be nil,
// a string, or any value to be JSON-encoded.
func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

// signUp registers username and returns a bearer token for it.
func signUp(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()

	creds := map[string]string{"username": username, "password": password}
	if w := do(t, h, http.MethodPost, "/users", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("register %s status = %d; body: %s", username, w.Code, w.Body.String())
	}

	w := do(t, h, http.MethodPost, "/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s status = %d; body: %s", username, w.Code, w.Body.String())
	}
	return decode[auth.Session](t, w).AccessToken
}

// addDevice registers a device and returns its id.
func addDevice(t *testing.T, h http.Handler, token, name string, topics ...string) int64 {
	t.Helper()

	w := do(t, h, http.MethodPost, "/devices", token, map[string]any{"name": name, "topics": topics})
	if w.Code != http.StatusCreated {
		t.Fatalf("register device status = %d; body: %s", w.Code, w.Body.String())
	}
	return decode[device.Device](t, w).ID
}

func devicePath(id int64, rest string) string {
	return fmt.Sprintf("/devices/%d/%s", id, rest)
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, status, w.Body.String())
	}
	if got := decode[Error](t, w); got.Code != code || got.Status != status {
		t.Errorf("error = %+v, want status %d code %q", got, status, code)
	}
}
