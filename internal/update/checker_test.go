package update

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/updraft/internal/download"
	"github.com/adamancini/updraft/internal/settings"
)

const (
	testFeedURL      = "https://updates.example.com/appcast.xml"
	testInstallerURL = "https://updates.example.com/Setup-1.0.1.exe"
	testInstaller    = "MZ fake installer payload"
)

type checkerFixture struct {
	store      *settings.Memory
	downloader *fakeDownloader
	parser     *stubParser
	notifier   *recordingNotifier
	launcher   *recordingLauncher
	tempRoot   string
	priv       ed25519.PrivateKey
	verifier   *Verifier
	hooks      Hooks
	cfg        Config
	clock      *clock.Mock
}

func newCheckerFixture(t *testing.T, current string, appcast Appcast) *checkerFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	f := &checkerFixture{
		store:      settings.NewMemory(),
		downloader: newFakeDownloader(),
		parser:     &stubParser{appcast: appcast},
		notifier:   &recordingNotifier{},
		launcher:   &recordingLauncher{},
		tempRoot:   t.TempDir(),
		priv:       priv,
		verifier:   &Verifier{PublicKey: pub},
		clock:      newMockClock(),
	}
	f.cfg = Config{
		AppVersion: current,
		AppcastURL: testFeedURL,
		TempRoot:   f.tempRoot,
	}
	f.downloader.serve(testFeedURL, []byte("<rss/>"))
	f.downloader.serve(testInstallerURL, []byte(testInstaller))
	return f
}

func (f *checkerFixture) checker() *Checker {
	return NewChecker(f.cfg, f.store,
		WithDownloader(f.downloader),
		WithFeedParser(f.parser),
		WithNotifier(f.notifier),
		WithVerifier(f.verifier),
		WithLauncher(f.launcher),
		WithHooks(f.hooks),
		WithCheckerClock(f.clock),
	)
}

func (f *checkerFixture) lastCheckRecorded(t *testing.T) bool {
	t.Helper()
	_, ok, err := f.store.Read(settings.KeyLastCheckTime)
	require.NoError(t, err)
	return ok
}

func silentAppcast(signature string) Appcast {
	return Appcast{
		Version:       "1.0.1",
		DownloadURL:   testInstallerURL,
		SilentInstall: true,
		Signature:     signature,
	}
}

func TestCheck_PrereleaseIsNoUpdate(t *testing.T) {
	f := newCheckerFixture(t, "2.1.0", Appcast{Version: "2.1.0b4", DownloadURL: testInstallerURL})

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)

	assert.Equal(t, NoUpdate, res.Decision)
	assert.Equal(t, PhaseDone, res.Phase)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 1, f.notifier.noUpdate)
	assert.Empty(t, f.notifier.available)
	assert.Equal(t, []string{testFeedURL}, f.downloader.requests)
	assert.True(t, f.lastCheckRecorded(t))
}

func TestCheck_NotifiesOnce(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{Version: "1.0.1", DownloadURL: testInstallerURL, ReleaseNotesURL: "https://updates.example.com/notes.html"})
	var found []Appcast
	f.hooks.DidFindUpdate = func(a Appcast) { found = append(found, a) }

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)

	assert.Equal(t, NotifyUser, res.Decision)
	require.Len(t, f.notifier.available, 1)
	assert.Equal(t, "1.0.1", f.notifier.available[0].Version)
	assert.Len(t, found, 1)
	assert.Zero(t, f.notifier.noUpdate)
	assert.Empty(t, f.launcher.paths)
	// the installer is not fetched when the user decides
	assert.Equal(t, 1, f.downloader.requestCount())
}

func TestCheck_AutomaticInstallFlag(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{Version: "1.0.1", DownloadURL: testInstallerURL})
	require.NoError(t, settings.WriteBool(f.store, settings.KeyAutomaticInstall, true))

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.True(t, f.notifier.autoInstall)
}

func TestCheck_InsecureFeedURL(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{})
	f.cfg.AppcastURL = "http://updates.example.com/appcast.xml"

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindInsecureURL))
	assert.Equal(t, PhaseFailed, res.Phase)
	assert.Zero(t, f.downloader.requestCount(), "no request may reach the network")
	require.Len(t, f.notifier.errors, 1)
	assert.True(t, f.lastCheckRecorded(t))
}

func TestCheck_InsecureDownloadURL(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{Version: "1.0.1", DownloadURL: "http://updates.example.com/Setup.exe"})

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInsecureURL))
	assert.Contains(t, err.Error(), RoleUpdateFile)
	assert.Empty(t, f.notifier.available)
}

func TestCheck_InsecureReleaseNotesURL(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{Version: "1.0.1", DownloadURL: testInstallerURL, ReleaseNotesURL: "ftp://x/notes"})

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInsecureURL))
	assert.Contains(t, err.Error(), RoleReleaseNotes)
}

func TestCheck_FeedRedirectToHTTP(t *testing.T) {
	tests := []struct {
		name    string
		schemes []string
	}{
		{"default policy", nil},
		{"http allowed", []string{"https", "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plainHits := 0
			plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				plainHits++
				_, _ = w.Write([]byte("<rss/>"))
			}))
			defer plain.Close()
			secure := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, plain.URL+r.URL.Path, http.StatusFound)
			}))
			defer secure.Close()

			f := newCheckerFixture(t, "1.0", Appcast{})
			f.cfg.AppcastURL = secure.URL + "/appcast.xml"
			f.cfg.URLPolicy = URLPolicy{AllowedSchemes: tt.schemes}
			c := NewChecker(f.cfg, f.store,
				WithDownloader(download.NewHTTPDownloaderWithClient(secure.Client())),
				WithFeedParser(f.parser),
				WithNotifier(f.notifier),
			)

			_, err := c.Check(context.Background(), CheckOptions{})
			require.Error(t, err)
			assert.True(t, IsKind(err, KindInsecureURL), "got %v", err)
			assert.Zero(t, plainHits)
			assert.Zero(t, f.parser.calls)
		})
	}
}

func TestCheck_MissingFeedURL(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{})
	f.cfg.AppcastURL = ""

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfig))
}

func TestCheck_FeedDownloadFailure(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{})
	f.cfg.AppcastURL = "https://updates.example.com/missing.xml"

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.True(t, f.lastCheckRecorded(t), "last check time is written even on failure")
	assert.Zero(t, f.parser.calls)
}

func TestCheck_FeedParseFailure(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{})
	f.parser.err = errors.New("unexpected EOF")

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindParse))
}

func TestCheck_SkipList(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{Version: "1.0.1", DownloadURL: testInstallerURL})
	require.NoError(t, f.store.Write(settings.KeySkipThisVersion, "1.0.1"))
	c := f.checker()

	res, err := c.Check(context.Background(), CheckOptions{Skip: HonorSkipList{Store: f.store}})
	require.NoError(t, err)
	assert.Equal(t, NoUpdate, res.Decision)
	assert.Equal(t, 1, f.notifier.noUpdate)

	res, err = c.Check(context.Background(), CheckOptions{Manual: true, Skip: ManualSkipOverride{}})
	require.NoError(t, err)
	assert.Equal(t, NotifyUser, res.Decision)
	assert.Len(t, f.notifier.available, 1)
}

func TestCheck_SilentInstall(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.parser.appcast.Signature = sign(f.priv, testInstaller)

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)

	assert.Equal(t, SilentInstallReady, res.Decision)
	assert.Equal(t, Verified, res.Verification)
	require.Len(t, f.launcher.paths, 1)
	assert.Equal(t, res.InstallerPath, f.launcher.paths[0])
	assert.Equal(t, "Setup-1.0.1.exe", filepath.Base(res.InstallerPath))

	data, err := os.ReadFile(res.InstallerPath)
	require.NoError(t, err)
	assert.Equal(t, testInstaller, string(data))

	recorded, ok, err := f.store.Read(settings.KeyUpdateTempDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Dir(res.InstallerPath), recorded)

	// silent installs never ask the user
	assert.Empty(t, f.notifier.available)
	assert.Zero(t, f.notifier.noUpdate)
	require.NotEmpty(t, f.notifier.progress)
	last := f.notifier.progress[len(f.notifier.progress)-1]
	assert.Equal(t, [2]uint64{uint64(len(testInstaller)), uint64(len(testInstaller))}, last)
}

func throwawayKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv
}

func TestCheck_SilentInstallCleansPreviousAttempt(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.parser.appcast.Signature = sign(f.priv, testInstaller)

	previous, err := CreateUniqueTempDirectory(f.tempRoot)
	require.NoError(t, err)
	require.NoError(t, f.store.Write(settings.KeyUpdateTempDir, previous))

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.NoDirExists(t, previous)
	assert.FileExists(t, res.InstallerPath)
}

func TestCheck_RejectedSignatureNeverLaunches(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(sign(throwawayKey(t), testInstaller)))

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindVerification))
	assert.Equal(t, Rejected, res.Verification)
	assert.Equal(t, PhaseFailed, res.Phase)
	assert.Empty(t, f.launcher.paths)
	require.Len(t, f.notifier.errors, 1)
}

func TestCheck_UnsignedWithoutKeyLaunches(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.verifier = &Verifier{}

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, SkippedNoKeyConfigured, res.Verification)
	assert.Len(t, f.launcher.paths, 1)
}

func TestCheck_EmptyInstallerNeverLaunches(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.verifier = &Verifier{}
	f.downloader.serve(testInstallerURL, nil)

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
	assert.ErrorIs(t, err, download.ErrEmptyResponse)
	assert.Empty(t, res.InstallerPath)
	assert.Empty(t, f.launcher.paths)
}

func TestCheck_LaunchFailure(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.verifier = &Verifier{}
	f.launcher.err = errors.New("exec format error")

	_, err := f.checker().Check(context.Background(), CheckOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProcessLaunch))
}

func TestCheck_RunInstallerHook(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.verifier = &Verifier{}
	var ran string
	f.hooks.RunInstaller = func(path string) (bool, error) {
		ran = path
		return true, nil
	}

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, res.InstallerPath, ran)
	assert.Empty(t, f.launcher.paths)
}

func TestCheck_CancelledDuringDownload(t *testing.T) {
	f := newCheckerFixture(t, "1.0", silentAppcast(""))
	f.parser.appcast.Signature = sign(f.priv, testInstaller)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.downloader.beforeChunk = func(i int) {
		if i == 2 {
			cancel()
		}
	}
	cancelled := 0
	f.hooks.UpdateCancelled = func() { cancelled++ }

	res, err := f.checker().Check(ctx, CheckOptions{})
	require.Error(t, err)

	assert.True(t, IsKind(err, KindCancelled))
	assert.Equal(t, PhaseFailed, res.Phase)
	assert.Empty(t, res.InstallerPath, "verification must not run")
	assert.Empty(t, f.launcher.paths)
	assert.Equal(t, 1, cancelled)
	require.Len(t, f.notifier.errors, 1)
	assert.True(t, IsKind(f.notifier.errors[0], KindCancelled))

	// the partial download is recorded for the next cleanup
	recorded, ok, err := f.store.Read(settings.KeyUpdateTempDir)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, CleanLeftovers(f.store, f.tempRoot))
	assert.NoDirExists(t, recorded)
}

func TestCheck_AlternateAppcast(t *testing.T) {
	tests := []struct {
		name         string
		result       AlternateResult
		appcast      Appcast
		wantDecision Decision
		wantRequests int
	}{
		{name: "handled no update", result: HandledNoUpdate, wantDecision: NoUpdate},
		{
			name:         "handled update available",
			result:       HandledUpdateAvailable,
			appcast:      Appcast{Version: "3.0", WebBrowserURL: "https://example.com/download"},
			wantDecision: NotifyUser,
		},
		{name: "not handled", result: NotHandled, wantDecision: NotifyUser, wantRequests: 1},
		{name: "unknown error", result: UnknownError, appcast: Appcast{Version: "9.0", DownloadURL: testInstallerURL}, wantDecision: NoUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckerFixture(t, "1.0", Appcast{Version: "1.0.1", DownloadURL: testInstallerURL})
			var gotManual bool
			f.hooks.AlternateAppcast = func(_ context.Context, manual bool) (Appcast, AlternateResult) {
				gotManual = manual
				return tt.appcast, tt.result
			}

			res, err := f.checker().Check(context.Background(), CheckOptions{Manual: true})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, res.Decision)
			assert.Equal(t, tt.wantRequests, f.downloader.requestCount())
			assert.True(t, gotManual)
		})
	}
}

func TestCheck_SilentNoUpdateStaysQuiet(t *testing.T) {
	f := newCheckerFixture(t, "2.0", silentAppcast(""))
	didNotFind := 0
	f.hooks.DidNotFindUpdate = func() { didNotFind++ }

	res, err := f.checker().Check(context.Background(), CheckOptions{})
	require.NoError(t, err)
	assert.Equal(t, NoUpdate, res.Decision)
	assert.Zero(t, f.notifier.noUpdate)
	assert.Zero(t, didNotFind)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "downloading", PhaseDownloading.String())
	assert.Equal(t, "failed", PhaseFailed.String())
	assert.Equal(t, "notify-user", NotifyUser.String())
	assert.Equal(t, "skipped-no-key", SkippedNoKeyConfigured.String())
	assert.Equal(t, "unknown-error", UnknownError.String())
}

func TestInstall_AcceptedUpdate(t *testing.T) {
	f := newCheckerFixture(t, "1.0", Appcast{})
	appcast := Appcast{Version: "1.0.1", DownloadURL: testInstallerURL, Signature: sign(f.priv, testInstaller)}

	res, err := f.checker().Install(context.Background(), appcast)
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, res.Phase)
	assert.Equal(t, Verified, res.Verification)
	assert.Equal(t, []string{res.InstallerPath}, f.launcher.paths)
	assert.Equal(t, []string{testInstallerURL}, f.downloader.requests)
}

func TestInstall_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		appcast Appcast
		kind    Kind
	}{
		{name: "no download", appcast: Appcast{Version: "1.0.1", WebBrowserURL: "https://example.com"}, kind: KindConfig},
		{name: "insecure download", appcast: Appcast{Version: "1.0.1", DownloadURL: "http://example.com/a.exe"}, kind: KindInsecureURL},
		{name: "unsigned", appcast: Appcast{Version: "1.0.1", DownloadURL: testInstallerURL}, kind: KindVerification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckerFixture(t, "1.0", Appcast{})
			_, err := f.checker().Install(context.Background(), tt.appcast)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Empty(t, f.launcher.paths)
			assert.Len(t, f.notifier.errors, 1)
		})
	}
}
