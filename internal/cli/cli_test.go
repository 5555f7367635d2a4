package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// writeConfig drops a farmsync.yaml into a temp dir and returns its path.
func writeConfig(t *testing.T, baseURL string) string {
	return writeConfigToken(t, baseURL, "static-token")
}

// writeConfigToken is writeConfig with an explicit token line; an empty token
// makes commands fall back to the stored session.
func writeConfigToken(t *testing.T, baseURL, token string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "farmsync.yaml")
	content := fmt.Sprintf("base_url: %q\ndb: %q\ntoken: %q\n",
		baseURL, filepath.Join(dir, "farmsync.db"), token)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// issueToken builds a signed session token for CLI flow tests.
func issueToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// runCommand executes the root command with args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "https://api.example.com")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com", cfg.BaseURL)
	require.Equal(t, "static-token", cfg.Token)
	require.NotEmpty(t, cfg.Database)
}

func TestLoadConfigValidation(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "missing-url.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: x.db\n"), 0o644))
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "base_url")

	path = filepath.Join(dir, "missing-db.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://x\n"), 0o644))
	_, err = LoadConfig(path)
	require.ErrorContains(t, err, "db")

	_, err = LoadConfig(filepath.Join(dir, "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	config := writeConfig(t, server.URL)

	out, err := runCommand(t, "--config", config, "status")
	require.NoError(t, err)
	require.Contains(t, out, "online")
	require.Contains(t, out, "pending:  0")
}

func TestStatusCommandOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()
	config := writeConfig(t, baseURL)

	out, err := runCommand(t, "--config", config, "status")
	require.NoError(t, err)
	require.Contains(t, out, "offline")
}

func TestSyncCommandEmptyQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	config := writeConfig(t, server.URL)

	out, err := runCommand(t, "--config", config, "sync")
	require.NoError(t, err)
	require.Contains(t, out, "synced: 0  failed: 0  remaining: 0")
}

func TestQueueListEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	config := writeConfig(t, server.URL)

	out, err := runCommand(t, "--config", config, "queue", "list")
	require.NoError(t, err)
	require.Contains(t, out, "queue is empty")
}

func TestQueueClearRequiresForce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	config := writeConfig(t, server.URL)

	_, err := runCommand(t, "--config", config, "queue", "clear")
	require.ErrorContains(t, err, "--force")

	out, err := runCommand(t, "--config", config, "queue", "clear", "--force")
	require.NoError(t, err)
	require.Contains(t, out, "queue cleared")
}

func TestResetRequiresForce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	config := writeConfig(t, server.URL)

	_, err := runCommand(t, "--config", config, "reset")
	require.ErrorContains(t, err, "--force")

	out, err := runCommand(t, "--config", config, "reset", "--force")
	require.NoError(t, err)
	require.Contains(t, out, "offline state wiped")
}

func TestCacheClear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	config := writeConfig(t, server.URL)

	out, err := runCommand(t, "--config", config, "cache", "clear")
	require.NoError(t, err)
	require.Contains(t, out, "cache cleared")

	out, err = runCommand(t, "--config", config, "cache", "clear", "--prefix", "reports_")
	require.NoError(t, err)
	require.Contains(t, out, "reports_")
}

// Login stores the session; warmup and status then pick the user up from it
// without an explicit --user flag.
func TestStoredSessionFlowsIntoCommands(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()
	config := writeConfigToken(t, server.URL, "")

	out, err := runCommand(t, "--config", config, "warmup")
	require.ErrorContains(t, err, "no --user given and no stored session")

	out, err = runCommand(t, "--config", config, "login", issueToken(t, "user-7"))
	require.NoError(t, err)
	require.Contains(t, out, "signed in as user-7")

	out, err = runCommand(t, "--config", config, "warmup")
	require.NoError(t, err)
	require.Contains(t, out, "warm-up done")

	out, err = runCommand(t, "--config", config, "status")
	require.NoError(t, err)
	require.Contains(t, out, "user:     user-7")
	require.Contains(t, out, "device:   ")

	out, err = runCommand(t, "--config", config, "login", "clear")
	require.NoError(t, err)
	require.Contains(t, out, "signed out")

	out, err = runCommand(t, "--config", config, "status")
	require.NoError(t, err)
	require.NotContains(t, out, "user:")
}

func TestCommandsFailWithoutConfig(t *testing.T) {
	_, err := runCommand(t, "--config", "/nonexistent/farmsync.yaml", "status")
	require.Error(t, err)
}
