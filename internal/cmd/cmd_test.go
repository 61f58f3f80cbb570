package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/updraft/internal/interactive"
	"github.com/adamancini/updraft/internal/output"
	"github.com/adamancini/updraft/internal/settings"
	"github.com/adamancini/updraft/internal/update"
)

const linkOnlyFeed = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0" xmlns:sparkle="http://www.andymatuschak.org/xml-namespaces/sparkle">
  <channel>
    <title>Example</title>
    <item>
      <title>Version 2.0</title>
      <link>https://example.com/download</link>
      <sparkle:version>2.0</sparkle:version>
    </item>
  </channel>
</rss>`

// execute runs the command tree with args and captured output.
func execute(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

type env struct {
	dir       string
	config    string
	storePath string
	requests  atomic.Int32
	server    *httptest.Server
}

// newEnv writes an Updraftfile pointing at a test feed server.
func newEnv(t *testing.T, appVersion string, handler http.HandlerFunc) *env {
	t.Helper()
	e := &env{dir: t.TempDir()}
	e.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(e.server.Close)

	e.storePath = filepath.Join(e.dir, "settings.yaml")
	e.config = filepath.Join(e.dir, "Updraftfile.yaml")
	content := fmt.Sprintf(`version: 1
app:
  name: Example
  version: %q
appcast_url: %s/appcast.xml
allowed_schemes: [http]
poll_interval: 10ms
temp_root: %s
store:
  backend: file
  path: %s
`, appVersion, e.server.URL, e.dir, e.storePath)
	require.NoError(t, os.WriteFile(e.config, []byte(content), 0644))
	return e
}

func serveFeed(feed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, feed)
	}
}

func TestCheck_UpdateAvailableJSON(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))

	stdout, _, err := execute(t, context.Background(), "", "--config", e.config, "-o", "json", "check")
	require.NoError(t, err)

	var report output.CheckReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "notify-user", report.Decision)
	assert.Equal(t, "2.0", report.AvailableVersion)
	assert.Equal(t, "1.0", report.CurrentVersion)
	assert.Equal(t, "https://example.com/download", report.WebBrowserURL)
	assert.NotEmpty(t, report.Session)

	last, ok, err := settings.NewFileStore(e.storePath).Read(settings.KeyLastCheckTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, "0", last)
}

func TestCheck_UpToDateText(t *testing.T) {
	e := newEnv(t, "2.0", serveFeed(linkOnlyFeed))

	stdout, _, err := execute(t, context.Background(), "", "--config", e.config, "check")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2.0 is up to date.")
	assert.NotContains(t, stdout, "Decision:")
}

func TestCheck_FeedFailure(t *testing.T) {
	e := newEnv(t, "1.0", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	stdout, _, err := execute(t, context.Background(), "", "--config", e.config, "check")
	require.Error(t, err)
	assert.True(t, Reported(err), "session errors are shown by the notifier")
	assert.True(t, update.IsKind(err, update.KindNetwork))
	assert.Contains(t, stdout, "Update failed:")
}

func TestCheck_InteractiveSkip(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))
	withTerminal(t)

	_, stderr, err := execute(t, context.Background(), "s\n", "--config", e.config, "check", "--interactive")
	require.NoError(t, err)
	assert.Contains(t, stderr, "2.0 is available (you have 1.0).")
	assert.Contains(t, stderr, "Version 2.0 will not be offered again.")

	skipped, _, err := settings.NewFileStore(e.storePath).Read(settings.KeySkipThisVersion)
	require.NoError(t, err)
	assert.Equal(t, "2.0", skipped)

	// a manual check still offers it unless the skip list is honoured
	stdout, _, err := execute(t, context.Background(), "", "--config", e.config, "-o", "json", "check")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"decision": "notify-user"`)

	stdout, _, err = execute(t, context.Background(), "", "--config", e.config, "-o", "json", "check", "--honor-skip")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"decision": "no-update"`)
}

func TestCheck_InteractiveWithoutTerminal(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))
	isTerminal = func() bool { return false }
	t.Cleanup(func() { isTerminal = interactive.IsTerminal })

	_, stderr, err := execute(t, context.Background(), "s\n", "--config", e.config, "check", "--interactive")
	require.NoError(t, err)
	assert.Contains(t, stderr, "requires a terminal")

	_, ok, err := settings.NewFileStore(e.storePath).Read(settings.KeySkipThisVersion)
	require.NoError(t, err)
	assert.False(t, ok)
}

func withTerminal(t *testing.T) {
	t.Helper()
	isTerminal = func() bool { return true }
	t.Cleanup(func() { isTerminal = interactive.IsTerminal })
}

func TestCheck_MissingConfig(t *testing.T) {
	_, _, err := execute(t, context.Background(), "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "check")
	require.Error(t, err)
	assert.False(t, Reported(err))
}

func TestWatch_ChecksUntilCancelled(t *testing.T) {
	checked := make(chan struct{}, 1)
	e := newEnv(t, "1.0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, linkOnlyFeed)
		select {
		case checked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-checked:
		case <-time.After(10 * time.Second):
		}
		cancel()
	}()

	_, _, err := execute(t, ctx, "", "--config", e.config, "watch", "--enable")
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.requests.Load(), "the interval has not elapsed again")

	enabled, err := settings.ReadBool(settings.NewFileStore(e.storePath), settings.KeyCheckForUpdates, false)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestWatch_WarnsWhenDisabled(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, stderr, err := execute(t, ctx, "", "--config", e.config, "watch")
	require.NoError(t, err)
	assert.Contains(t, stderr, "CheckForUpdates is off")
	assert.Zero(t, e.requests.Load())
}

func TestCleanup(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))
	stray := filepath.Join(e.dir, update.TempDirPrefix+"stale")
	require.NoError(t, os.MkdirAll(stray, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(stray, "setup.exe"), []byte("x"), 0600))
	live, err := update.CreateUniqueTempDirectory(e.dir)
	require.NoError(t, err)

	stdout, _, err := execute(t, context.Background(), "", "--config", e.config, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Leftover downloads removed.")
	assert.NoDirExists(t, stray)
	assert.DirExists(t, live, "a running process keeps its download")
	assert.FileExists(t, e.config)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"compare", "1.0", "1.0.1"}, "1.0 < 1.0.1\n"},
		{[]string{"compare", "2.1.0", "2.1.0b4"}, "2.1.0 > 2.1.0b4\n"},
		{[]string{"-o", "json", "compare", "1.5", "1.5"}, "{\n  \"a\": \"1.5\",\n  \"b\": \"1.5\",\n  \"result\": 0\n}\n"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			stdout, _, err := execute(t, context.Background(), "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}

	_, _, err := execute(t, context.Background(), "", "compare", "1.0")
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))
	run := func(args ...string) (string, error) {
		stdout, _, err := execute(t, context.Background(), "", append([]string{"--config", e.config}, args...)...)
		return stdout, err
	}

	stdout, err := run("settings", "set", "checkforupdates", "yes")
	require.NoError(t, err)
	assert.Equal(t, "CheckForUpdates = true\n", stdout)

	stdout, err = run("settings", "get", "CheckForUpdates")
	require.NoError(t, err)
	assert.Equal(t, "CheckForUpdates = true\n", stdout)

	stdout, err = run("settings", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "CheckForUpdates = true\n")
	assert.Contains(t, stdout, "SkipThisVersion (unset)")

	_, err = run("settings", "set", "SkipThisVersion", "3.0")
	require.NoError(t, err)
	_, err = run("settings", "set", "SkipThisVersion", "")
	require.NoError(t, err)
	stdout, err = run("-o", "json", "settings", "get", "SkipThisVersion")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"set": false`)

	_, err = run("settings", "set", "Colour", "blue")
	assert.ErrorContains(t, err, "unknown setting")
	_, err = run("settings", "set", "UpdateInterval", "soon")
	assert.ErrorContains(t, err, "non-negative integer")
	_, err = run("settings", "set", "AutomaticInstall", "sometimes")
	assert.ErrorContains(t, err, "true or false")
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{settings.KeyCheckForUpdates, "yes", "true", false},
		{settings.KeyCheckForUpdates, "off", "false", false},
		{settings.KeyAutomaticInstall, "TRUE", "true", false},
		{settings.KeyAutomaticInstall, "maybe", "", true},
		{settings.KeyUpdateInterval, "7200", "7200", false},
		{settings.KeyUpdateInterval, "-1", "", true},
		{settings.KeySkipThisVersion, " 2.0 ", "2.0", false},
		{settings.KeyCheckForUpdates, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := normalizeValue(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings_SQLiteBackend(t *testing.T) {
	e := newEnv(t, "1.0", serveFeed(linkOnlyFeed))
	dbPath := filepath.Join(e.dir, "settings.db")
	content, err := os.ReadFile(e.config)
	require.NoError(t, err)
	content = bytes.Replace(content, []byte("backend: file"), []byte("backend: sqlite"), 1)
	content = bytes.Replace(content, []byte(e.storePath), []byte(dbPath), 1)
	require.NoError(t, os.WriteFile(e.config, content, 0644))

	_, _, err = execute(t, context.Background(), "", "--config", e.config, "settings", "set", "UpdateInterval", "7200")
	require.NoError(t, err)

	stdout, _, err := execute(t, context.Background(), "", "--config", e.config, "settings", "get", "UpdateInterval")
	require.NoError(t, err)
	assert.Equal(t, "UpdateInterval = 7200\n", stdout)
	assert.FileExists(t, dbPath)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, context.Background(), "", "-o", "json", "version")
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, buildVersion, info.Version)
	assert.Equal(t, update.Detect().String(), info.Platform)

	stdout, _, err = execute(t, context.Background(), "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "updraft version "+buildVersion))
}

func TestVerboseQuietExclusive(t *testing.T) {
	_, _, err := execute(t, context.Background(), "", "--verbose", "--quiet", "compare", "1", "2")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		stdout, _, err := execute(t, context.Background(), "", "completion", shell)
		require.NoError(t, err, shell)
		assert.Contains(t, stdout, "updraft", shell)
	}
}
