package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kitinfo/kitinfo/pkg/config"
	"github.com/kitinfo/kitinfo/pkg/engine"
	"github.com/kitinfo/kitinfo/pkg/typekit"
)

const exampleKitJSON = `{"kit":{"id":"abc1def","name":"Example","analytics":false,` +
	`"domains":["example.com"],"families":[],"optimize_performance":false}}`

// setupEnv points configuration and the journal at a temporary directory and
// returns the config file path.
func setupEnv(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("KITINFO_API_TOKEN", "")
	t.Setenv("KITINFO_CONFIG", "")

	path := filepath.Join(dir, "kitinfo.yaml")
	content := "api:\n" +
		"  base_url: " + apiURL + "/api/v1/json/\n" +
		"  retry_max: 0\n" +
		"journal:\n" +
		"  path: " + filepath.Join(dir, "journal.db") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// newTypekitServer serves a single kit, or 401 for any token but "secret".
func newTypekitServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.Header.Get(typekit.TokenHeader) != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"errors":["Not authorized"]}`))
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("/api/v1/json/kits", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(exampleKitJSON))
			return
		}
		_, _ = w.Write([]byte(`{"kits":[{"id":"abc1def","link":"/api/v1/json/kits/abc1def"}]}`))
	}))
	mux.HandleFunc("/api/v1/json/kits/abc1def", auth(func(w http.ResponseWriter, r *http.Request) {
		// The kit vanishes before it can be deleted.
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":["Not Found"]}`))
			return
		}
		_, _ = w.Write([]byte(exampleKitJSON))
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "abc123", "today")
	out := &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestSession_ViewKitAndHistory(t *testing.T) {
	srv := newTypekitServer(t)
	cfgPath := setupEnv(t, srv.URL)

	// Interact with existing kits, pick the kit, view it, decline to edit.
	out, err := execute(t, "1\n1\n1\nn\n", "--config", cfgPath, "--token", "secret", "--no-color")
	if err != nil {
		t.Fatalf("Session failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Welcome to kit_info!", `"name": "Example"`, "Thanks for using kit_info!"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in session output:\n%s", want, out)
		}
	}

	out, err = execute(t, "", "history", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected a header and one session, got:\n%s", out)
	}
	fields := strings.Fields(lines[1])
	// ID, date, time, status, operations, duration
	if len(fields) < 5 || fields[3] != "completed" || fields[4] != "7" {
		t.Errorf("Unexpected session row %q", lines[1])
	}

	out, err = execute(t, "", "history", "show", fields[0], "--config", cfgPath)
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	for _, op := range []string{"authenticate", "show-main-menu", "list-and-choose", "choose-action", "view", "post-view-prompt", "terminate"} {
		if !strings.Contains(out, op) {
			t.Errorf("Expected %s in the operation log:\n%s", op, out)
		}
	}
}

func TestSession_VerboseLogsOperations(t *testing.T) {
	srv := newTypekitServer(t)
	cfgPath := setupEnv(t, srv.URL)
	t.Setenv("KITINFO_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "")

	level, logger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
	})
	SetupLogging(io.Discard)

	// Leave straight from the main menu.
	out, err := execute(t, "3\n", "--config", cfgPath, "--token", "secret", "--no-color", "--no-journal")
	if err != nil {
		t.Fatalf("Session failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "Operation executed") {
		t.Errorf("Expected no debug lines without --verbose:\n%s", out)
	}

	out, err = execute(t, "3\n", "--config", cfgPath, "--token", "secret", "--no-color", "--no-journal", "--verbose")
	if err != nil {
		t.Fatalf("Session failed: %v\n%s", err, out)
	}
	for _, want := range []string{"DBG", "Operation executed", "operation=authenticate", "Session started"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q with --verbose:\n%s", want, out)
		}
	}
}

func TestSession_CreateKit(t *testing.T) {
	srv := newTypekitServer(t)
	cfgPath := setupEnv(t, srv.URL)

	out, err := execute(t, "2\nExample\nexample.com\n0\n", "--config", cfgPath, "--token", "secret", "--no-journal")
	if err != nil {
		t.Fatalf("Session failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Leave any field you don't wish to specify/update blank.") {
		t.Errorf("Expected the field prompts, got:\n%s", out)
	}
	if !strings.Contains(out, `"id": "abc1def"`) || !strings.HasSuffix(out, "Thanks for using kit_info!\n") {
		t.Errorf("Expected the saved kit and a goodbye, got:\n%s", out)
	}
}

func TestSession_DeleteNotFound(t *testing.T) {
	srv := newTypekitServer(t)
	cfgPath := setupEnv(t, srv.URL)

	// Interact with existing kits, pick the kit, delete it.
	out, err := execute(t, "1\n1\n3\n", "--config", cfgPath, "--token", "secret", "--output", "yaml")
	if err != nil {
		t.Fatalf("Session failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "The API indicated that it couldn't find the resource.") {
		t.Errorf("Expected the not-found hint, got:\n%s", out)
	}
	if strings.Contains(out, "Kit successfully deleted!") {
		t.Error("Expected no deletion notice")
	}
}

func TestSession_AuthenticationFailure(t *testing.T) {
	srv := newTypekitServer(t)
	cfgPath := setupEnv(t, srv.URL)

	out, err := execute(t, "", "--config", cfgPath, "--token", "wrong", "--no-journal")
	if !engine.IsAuthentication(err) {
		t.Fatalf("Expected an authentication error, got %v", err)
	}
	if !strings.Contains(out, "Authorization failed!") {
		t.Errorf("Expected the fatal message, got:\n%s", out)
	}
	if strings.Contains(out, "Thanks for using kit_info!") {
		t.Error("Expected no goodbye after an authentication failure")
	}
}

func TestSession_MissingToken(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	if _, err := execute(t, "", "--config", cfgPath); !errors.Is(err, config.ErrMissingToken) {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

func TestHistory_Empty(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	out, err := execute(t, "", "history", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if strings.TrimSpace(out) != "No sessions recorded." {
		t.Errorf("Unexpected output %q", out)
	}

	out, err = execute(t, "", "history", "--json", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history --json failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("Expected an empty JSON list, got %q", out)
	}
}

func TestHistory_Errors(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "journal disabled", args: []string{"history", "--no-journal"}},
		{name: "bad limit", args: []string{"history", "--limit", "0"}},
		{name: "unknown session", args: []string{"history", "show", "nope"}},
		{name: "bad prune window", args: []string{"history", "prune", "--older-than", "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, "", append(tt.args, "--config", cfgPath)...); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestHistory_Prune(t *testing.T) {
	cfgPath := setupEnv(t, "http://127.0.0.1:1")

	out, err := execute(t, "", "history", "prune", "--config", cfgPath)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if strings.TrimSpace(out) != "Removed 0 session(s)." {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{1500 * time.Microsecond, "2ms"},
		{10 * time.Second, "10s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.Contains(out, "test (commit: abc123, built: today)") {
		t.Errorf("Unexpected version output %q", out)
	}
}
