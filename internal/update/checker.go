package update

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"

	"github.com/adamancini/updraft/internal/download"
	"github.com/adamancini/updraft/internal/settings"
)

var log = logging.Logger("updraft/update")

// Phase is the stage a check reached.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseDeciding
	PhaseDownloading
	PhaseVerifying
	PhaseLaunching
	PhaseDone
	PhaseFailed
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseDeciding:
		return "deciding"
	case PhaseDownloading:
		return "downloading"
	case PhaseVerifying:
		return "verifying"
	case PhaseLaunching:
		return "launching"
	case PhaseDone:
		return "done"
	default:
		return "failed"
	}
}

// Config holds what a Checker needs to know about the host application.
type Config struct {
	AppVersion  string            // Currently running version
	AppcastURL  string            // Feed URL; unused when an alternate resolver handles the check
	HTTPHeaders map[string]string // Extra headers sent with the feed request
	UserAgent   string
	TempRoot    string // Parent of download directories (os.TempDir() when empty)
	URLPolicy   URLPolicy
}

// CheckOptions describe one check.
type CheckOptions struct {
	Manual bool       // The user asked for this check
	Skip   SkipPolicy // Nil never skips
}

// Result reports how far a check got.
type Result struct {
	ID            string
	Phase         Phase
	Decision      Decision
	Appcast       Appcast
	InstallerPath string
	Verification  VerifyResult
}

// Checker runs update checks. A Checker is safe to reuse across checks
// but a single check runs on the calling goroutine.
type Checker struct {
	cfg        Config
	store      settings.Store
	downloader Downloader
	parser     FeedParser
	notifier   Notifier
	verifier   *Verifier
	launcher   Launcher
	hooks      Hooks
	clock      clock.Clock
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithDownloader sets the transport used for the feed and the installer.
func WithDownloader(d Downloader) CheckerOption {
	return func(c *Checker) { c.downloader = d }
}

// WithFeedParser sets the feed parser.
func WithFeedParser(p FeedParser) CheckerOption {
	return func(c *Checker) { c.parser = p }
}

// WithNotifier sets the receiver of user-facing events.
func WithNotifier(n Notifier) CheckerOption {
	return func(c *Checker) { c.notifier = n }
}

// WithVerifier sets the authenticity gate.
func WithVerifier(v *Verifier) CheckerOption {
	return func(c *Checker) { c.verifier = v }
}

// WithLauncher sets how verified installers are started.
func WithLauncher(l Launcher) CheckerOption {
	return func(c *Checker) { c.launcher = l }
}

// WithHooks sets the application callbacks.
func WithHooks(h Hooks) CheckerOption {
	return func(c *Checker) { c.hooks = h }
}

// WithCheckerClock sets the time source.
func WithCheckerClock(clk clock.Clock) CheckerOption {
	return func(c *Checker) { c.clock = clk }
}

// NewChecker creates a checker persisting its state in store.
func NewChecker(cfg Config, store settings.Store, opts ...CheckerOption) *Checker {
	c := &Checker{
		cfg:        cfg,
		store:      store,
		downloader: download.NewHTTPDownloader(),
		notifier:   NopNotifier{},
		verifier:   &Verifier{},
		launcher:   ProcessLauncher{},
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the settings store the checker writes to.
func (c *Checker) Store() settings.Store {
	return c.store
}

// Check runs one update check: fetch the feed, decide, and for silent
// installs download, verify and launch the installer. Any failure is
// reported to the notifier and returned as an *Error.
func (c *Checker) Check(ctx context.Context, opts CheckOptions) (res *Result, err error) {
	res = &Result{ID: uuid.NewString(), Phase: PhaseIdle}
	logger := log.With("session", res.ID, "manual", opts.Manual)
	defer func() { err = c.finish(ctx, res, err) }()

	// Recorded before anything can fail so that a broken feed is not
	// retried on every poll.
	if werr := settings.WriteTime(c.store, settings.KeyLastCheckTime, c.clock.Now()); werr != nil {
		logger.Warnw("failed to record check time", "error", werr)
	}

	// 1. Fetch
	res.Phase = PhaseFetching
	appcast, err := c.fetchAppcast(ctx, opts.Manual)
	if err != nil {
		return res, err
	}
	res.Appcast = appcast

	if appcast.ReleaseNotesURL != "" {
		if err := c.cfg.URLPolicy.Check(appcast.ReleaseNotesURL, RoleReleaseNotes); err != nil {
			return res, err
		}
	}
	if appcast.DownloadURL != "" {
		if err := c.cfg.URLPolicy.Check(appcast.DownloadURL, RoleUpdateFile); err != nil {
			return res, err
		}
	}

	// 2. Decide
	res.Phase = PhaseDeciding
	res.Decision = Decide(c.cfg.AppVersion, appcast, opts.Skip)
	autoInstall := c.autoInstall()
	logger.Infow("update check decided",
		"current", c.cfg.AppVersion,
		"available", appcast.Version,
		"decision", res.Decision,
	)

	switch res.Decision {
	case NoUpdate:
		// silent-install feeds stay silent
		if !appcast.SilentInstall {
			c.notifier.NotifyNoUpdate(autoInstall)
			if c.hooks.DidNotFindUpdate != nil {
				c.hooks.DidNotFindUpdate()
			}
		}
		return res, nil

	case NotifyUser:
		if c.hooks.DidFindUpdate != nil {
			c.hooks.DidFindUpdate(appcast)
		}
		c.notifier.NotifyUpdateAvailable(appcast, autoInstall)
		return res, nil
	}

	// 3. Download, verify, launch
	return res, c.installSilently(ctx, res)
}

// Install downloads, verifies and launches the installer of an update the
// user accepted after NotifyUpdateAvailable.
func (c *Checker) Install(ctx context.Context, appcast Appcast) (res *Result, err error) {
	res = &Result{ID: uuid.NewString(), Phase: PhaseIdle, Decision: NotifyUser, Appcast: appcast}
	defer func() { err = c.finish(ctx, res, err) }()

	if appcast.DownloadURL == "" {
		return res, newError(KindConfig, fmt.Sprintf("version %s has no installer to download", appcast.DisplayVersion()), nil)
	}
	if err := c.cfg.URLPolicy.Check(appcast.DownloadURL, RoleUpdateFile); err != nil {
		return res, err
	}
	return res, c.installSilently(ctx, res)
}

// finish classifies and reports the outcome of a session.
func (c *Checker) finish(ctx context.Context, res *Result, err error) error {
	if err == nil {
		res.Phase = PhaseDone
		return nil
	}
	failedIn := res.Phase
	res.Phase = PhaseFailed
	err = classify(ctx, err)
	log.Errorw("update session failed", "session", res.ID, "phase", failedIn, "kind", KindOf(err), "error", err)
	c.notifier.NotifyError(err)
	if IsKind(err, KindCancelled) && c.hooks.UpdateCancelled != nil {
		c.hooks.UpdateCancelled()
	}
	return err
}

// fetchAppcast resolves the appcast, preferring the application's own
// resolver when it handles the request.
func (c *Checker) fetchAppcast(ctx context.Context, manual bool) (Appcast, error) {
	if resolve := c.hooks.AlternateAppcast; resolve != nil {
		appcast, result := resolve(ctx, manual)
		switch result {
		case HandledNoUpdate:
			return Appcast{}, nil
		case HandledUpdateAvailable:
			return appcast, nil
		case NotHandled:
		default:
			log.Warnw("alternate appcast resolver failed, treating as no update", "result", result)
			return Appcast{}, nil
		}
	}

	feedURL := c.cfg.AppcastURL
	if feedURL == "" {
		return Appcast{}, newError(KindConfig, "appcast URL not specified", nil)
	}
	if err := c.cfg.URLPolicy.Check(feedURL, RoleAppcastFeed); err != nil {
		return Appcast{}, err
	}
	if c.parser == nil {
		return Appcast{}, newError(KindConfig, "no feed parser configured", nil)
	}

	opts := []download.Option{
		download.WithHeaders(c.cfg.HTTPHeaders),
		download.WithBypassProxies(),
		c.redirectPolicy(RoleAppcastFeed),
	}
	if c.cfg.UserAgent != "" {
		opts = append(opts, download.WithUserAgent(c.cfg.UserAgent))
	}

	var feed download.StringSink
	if err := c.downloader.Download(ctx, feedURL, &feed, opts...); err != nil {
		return Appcast{}, downloadError("failed to download appcast feed", err)
	}

	appcast, err := c.parser.Parse(feed.Bytes())
	if err != nil {
		if KindOf(err) != KindUnknown {
			return Appcast{}, err
		}
		return Appcast{}, newError(KindParse, "failed to parse appcast feed", err)
	}
	return appcast, nil
}

func (c *Checker) installSilently(ctx context.Context, res *Result) error {
	appcast := res.Appcast
	logger := log.With("session", res.ID)

	res.Phase = PhaseDownloading
	if err := CleanLeftovers(c.store, c.cfg.TempRoot); err != nil {
		logger.Warnw("failed to clean previous update leftovers", "error", err)
	}

	sink := NewUpdateDownloadSink(ctx, c.notifier, WithTempRoot(c.cfg.TempRoot), WithClock(c.clock))
	downloadErr := c.downloader.Download(ctx, appcast.DownloadURL, sink, c.redirectPolicy(RoleUpdateFile))
	closeErr := sink.Close()

	if dir := sink.Dir(); dir != "" {
		if err := c.store.Write(settings.KeyUpdateTempDir, dir); err != nil {
			logger.Warnw("failed to record update directory", "dir", dir, "error", err)
		}
	}
	if downloadErr != nil {
		return downloadError("failed to download update", downloadErr)
	}
	if closeErr != nil {
		return closeErr
	}
	if sink.Downloaded() == 0 {
		return newError(KindNetwork, "downloaded update is empty", download.ErrEmptyResponse)
	}
	res.InstallerPath = sink.FilePath()
	logger.Infow("update downloaded", "path", res.InstallerPath, "bytes", sink.Downloaded())

	res.Phase = PhaseVerifying
	verification, err := c.verifier.Verify(res.InstallerPath, appcast.Signature)
	res.Verification = verification
	if err != nil {
		return err
	}

	res.Phase = PhaseLaunching
	if run := c.hooks.RunInstaller; run != nil {
		handled, err := run(res.InstallerPath)
		if err != nil {
			return newError(KindProcessLaunch, "application failed to run installer", err)
		}
		if handled {
			return nil
		}
	}
	if err := c.launcher.Launch(res.InstallerPath); err != nil {
		if KindOf(err) != KindUnknown {
			return err
		}
		return newError(KindProcessLaunch, fmt.Sprintf("failed to launch %s", res.InstallerPath), err)
	}
	return nil
}

// redirectPolicy applies the URL policy to every redirect hop.
func (c *Checker) redirectPolicy(role string) download.Option {
	return download.WithRedirectCheck(func(u *url.URL) error {
		return c.cfg.URLPolicy.Check(u.String(), role)
	})
}

// downloadError classifies a failed transfer.
func downloadError(msg string, err error) error {
	switch {
	case KindOf(err) != KindUnknown:
		return err
	case errors.Is(err, download.ErrInsecureRedirect):
		return newError(KindInsecureURL, msg, err)
	}
	return newError(KindNetwork, msg, err)
}

func (c *Checker) autoInstall() bool {
	auto, err := settings.ReadBool(c.store, settings.KeyAutomaticInstall, false)
	if err != nil {
		log.Warnw("failed to read automatic install policy", "error", err)
	}
	return auto
}
