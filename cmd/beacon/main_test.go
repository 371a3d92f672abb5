package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/beacon/internal/config"
	"github.com/naveenspark/beacon/pkg/domain"
)

// fakeBackend serves the subset of the API the CLI talks to.
type fakeBackend struct {
	serverKey string

	mu       sync.Mutex
	nextID   int64
	subs     []domain.PushSubscription
	settings map[string]bool
	lastPut  map[string]bool
	testReq  *domain.TestNotificationRequest
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub, err := key.PublicKey.ECDH()
	require.NoError(t, err)

	b := &fakeBackend{
		serverKey: base64.RawURLEncoding.EncodeToString(pub.Bytes()),
		settings: map[string]bool{
			domain.NotifTypeNewPublicCase:               true,
			domain.NotifTypeFieldSearchParticipantAdded: false,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "s3cret" {
			http.Error(w, `{"detail":"Incorrect email or password"}`, http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"access_token": "tok-123", "token_type": "bearer"})
	})
	mux.HandleFunc("GET /auth/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, domain.User{ID: 1, Email: "olena@example.org", FullName: "Olena Koval"})
	}))
	mux.HandleFunc("GET /push-notifications/vapid-public-key", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"public_key": b.serverKey})
	})
	mux.HandleFunc("GET /push-notifications/subscriptions", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, b.subs)
	}))
	mux.HandleFunc("POST /push-notifications/subscriptions", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req domain.SubscriptionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		defer b.mu.Unlock()
		b.nextID++
		rec := domain.PushSubscription{ID: b.nextID, UserID: 1, Endpoint: req.Endpoint, CreatedAt: time.Now()}
		b.subs = append(b.subs, rec)
		writeJSON(w, rec)
	}))
	mux.HandleFunc("DELETE /push-notifications/subscriptions/{id}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64) //nolint:errcheck
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.ID == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.NotFound(w, r)
	}))
	mux.HandleFunc("GET /push-notifications/settings", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		var out []domain.NotificationSetting
		for _, typ := range domain.KnownNotificationTypes {
			out = append(out, domain.NotificationSetting{NotificationType: typ, Enabled: b.settings[typ], Label: "label " + typ})
		}
		writeJSON(w, map[string]any{"settings": out})
	}))
	mux.HandleFunc("PUT /push-notifications/settings/{type}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		b.mu.Lock()
		defer b.mu.Unlock()
		b.lastPut = body
		typ := r.PathValue("type")
		b.settings[typ] = body["enabled"]
		writeJSON(w, domain.NotificationSetting{NotificationType: typ, Enabled: body["enabled"]})
	}))
	mux.HandleFunc("POST /push-notifications/test", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var req domain.TestNotificationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		b.mu.Lock()
		b.testReq = &req
		b.mu.Unlock()
		writeJSON(w, domain.TestNotificationResponse{Message: "Test notification sent"})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			http.Error(w, `{"detail":"Not authenticated"}`, http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (b *fakeBackend) subscriptions() []domain.PushSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.PushSubscription(nil), b.subs...)
}

func (b *fakeBackend) lastSettingPut() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPut
}

func (b *fakeBackend) lastTest() *domain.TestNotificationRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.testReq
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func testConfig(t *testing.T, apiURL, token string) config.Config {
	t.Helper()
	return config.Config{
		APIURL:      apiURL,
		Token:       token,
		AppOrigin:   "http://localhost:5173",
		AppName:     "Milena CRM",
		ListenAddr:  "127.0.0.1:0",
		PublicURL:   "http://127.0.0.1:8765",
		StateDir:    t.TempDir(),
		Env:         "test",
		LogLevel:    "error",
		HTTPTimeout: 5 * time.Second,
	}
}

func execute(t *testing.T, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	cfg := testConfig(t, "http://unused", "")
	out, err := execute(t, &cfg, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "beacon dev\n", out)
}

func TestLoginSavesToken(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "")

	out, err := execute(t, &cfg, "s3cret\n", "login", "--email", "olena@example.org")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Olena Koval")

	data, err := os.ReadFile(cfg.TokenPath())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", string(data))
}

func TestLoginWrongPassword(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "")

	_, err := execute(t, &cfg, "olena@example.org\nwrong\n", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong email or password")
	_, statErr := os.Stat(cfg.TokenPath())
	assert.True(t, os.IsNotExist(statErr), "no token must be saved")
}

func TestLogout(t *testing.T) {
	cfg := testConfig(t, "http://unused", "")
	require.NoError(t, cfg.SaveToken("tok-123"))

	out, err := execute(t, &cfg, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")

	out, err = execute(t, &cfg, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestCommandsRequireLogin(t *testing.T) {
	for _, args := range [][]string{{"status"}, {"enable"}, {"disable"}, {"subscriptions"}, {"settings"}, {"test"}} {
		t.Run(args[0], func(t *testing.T) {
			cfg := testConfig(t, "http://unused", "")
			_, err := execute(t, &cfg, "", args...)
			assert.ErrorIs(t, err, errNotLoggedIn)
		})
	}
}

func TestSavedTokenIsUsed(t *testing.T) {
	b, srv := newFakeBackend(t)
	b.subs = []domain.PushSubscription{{ID: 7, Endpoint: "https://push.example/abc", CreatedAt: time.Now()}}
	cfg := testConfig(t, srv.URL, "")
	require.NoError(t, cfg.SaveToken("tok-123\n"))

	out, err := execute(t, &cfg, "", "subscriptions")
	require.NoError(t, err)
	assert.Contains(t, out, "https://push.example/abc")
	assert.Contains(t, out, "ENDPOINT")
}

func TestTokenFlagOverridesSavedToken(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "")
	require.NoError(t, cfg.SaveToken("stale"))

	out, err := execute(t, &cfg, "", "--token", "tok-123", "subscriptions")
	require.NoError(t, err)
	assert.Contains(t, out, "No subscriptions.")
}

func TestSettingsList(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	out, err := execute(t, &cfg, "", "settings")
	require.NoError(t, err)
	assert.Contains(t, out, domain.NotifTypeNewPublicCase)
	assert.Contains(t, out, domain.NotifTypeFieldSearchParticipantAdded)
}

func TestSettingsSet(t *testing.T) {
	b, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	out, err := execute(t, &cfg, "", "settings", "set", domain.NotifTypeFieldSearchParticipantAdded, "on")
	require.NoError(t, err)
	assert.Contains(t, out, domain.NotifTypeFieldSearchParticipantAdded+": on")
	assert.Equal(t, map[string]bool{"enabled": true}, b.lastSettingPut())
}

func TestSettingsSetRejectsBadValue(t *testing.T) {
	b, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	_, err := execute(t, &cfg, "", "settings", "set", domain.NotifTypeNewPublicCase, "maybe")
	require.Error(t, err)
	assert.Nil(t, b.lastSettingPut(), "nothing must be sent")
}

func TestTestCommand(t *testing.T) {
	b, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	out, err := execute(t, &cfg, "", "test", "--title", "Hello", "--url", "/cases/9")
	require.NoError(t, err)
	assert.Contains(t, out, "Test notification sent")
	req := b.lastTest()
	require.NotNil(t, req)
	assert.Equal(t, "Hello", req.Title)
	assert.Equal(t, "Push notifications are working", req.Body)
	assert.Equal(t, "/cases/9", req.URL)
}

func TestEnableThenDisable(t *testing.T) {
	b, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	out, err := execute(t, &cfg, "y\n", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications are on.")
	subs := b.subscriptions()
	require.Len(t, subs, 1)
	assert.True(t, strings.HasPrefix(subs[0].Endpoint, "http://127.0.0.1:8765/push/"), subs[0].Endpoint)

	out, err = execute(t, &cfg, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "granted")
	assert.Contains(t, out, subs[0].Endpoint)

	out, err = execute(t, &cfg, "", "disable")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications are off.")
	assert.Empty(t, b.subscriptions())
}

func TestEnableDenied(t *testing.T) {
	b, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	out, err := execute(t, &cfg, "n\n", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "blocked")
	assert.Empty(t, b.subscriptions())

	// No second prompt without --reset: the answer below is never read.
	out, err = execute(t, &cfg, "y\n", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "blocked")

	out, err = execute(t, &cfg, "y\n", "enable", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications are on.")
	assert.Len(t, b.subscriptions(), 1)
}

func TestEnableDismissed(t *testing.T) {
	b, srv := newFakeBackend(t)
	cfg := testConfig(t, srv.URL, "tok-123")

	out, err := execute(t, &cfg, "\n", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "not granted")
	assert.Empty(t, b.subscriptions())
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want domain.PermissionState
	}{
		{"y", domain.PermissionGranted},
		{" YES ", domain.PermissionGranted},
		{"n", domain.PermissionDenied},
		{"No", domain.PermissionDenied},
		{"", domain.PermissionDefault},
		{"later", domain.PermissionDefault},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseAnswer(tt.in), "parseAnswer(%q)", tt.in)
	}
}

func TestStdinPrompterCancelled(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })

	p := newStdinPrompter(r, &bytes.Buffer{}, "Milena CRM")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := p.PromptPermission(ctx, "http://localhost:5173")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.PermissionDefault, st)
}

func TestPrintRenderer(t *testing.T) {
	var out bytes.Buffer
	n := domain.Notification{
		Title: "New public case",
		Options: domain.NotificationOptions{
			Body: "Missing person in Lviv",
			Tag:  domain.NotifTypeNewPublicCase,
			Data: map[string]any{"url": "/cases/42"},
		},
		ShownAt: time.Now(),
	}
	require.NoError(t, printRenderer{out: &out}.ShowNotification(context.Background(), n))
	for _, want := range []string{"New public case", "Missing person in Lviv", "/cases/42", domain.NotifTypeNewPublicCase} {
		assert.Contains(t, out.String(), want)
	}
}

func TestRootWithoutTokenGreets(t *testing.T) {
	cfg := testConfig(t, "http://unused", "")
	out, err := execute(t, &cfg, "")
	require.NoError(t, err)
	assert.Contains(t, out, "beacon login")
}
