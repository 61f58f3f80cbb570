package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/raulk/clock"
	"golang.org/x/time/rate"

	"github.com/adamancini/updraft/internal/download"
)

// ProgressInterval is the minimum spacing between progress notifications.
const ProgressInterval = time.Second / 10

var _ download.Sink = (*UpdateDownloadSink)(nil)

// UpdateDownloadSink writes an installer download to a fresh temporary
// directory and reports throttled progress. It is owned by a single
// goroutine for the duration of one download.
type UpdateDownloadSink struct {
	ctx      context.Context
	root     string
	notifier Notifier
	clock    clock.Clock
	limiter  *rate.Limiter

	downloaded uint64
	total      uint64
	dir        string
	path       string
	file       *os.File
	closeOnce  sync.Once
	closeErr   error
}

// SinkOption configures an UpdateDownloadSink.
type SinkOption func(*UpdateDownloadSink)

// WithTempRoot sets the parent of the download directory (os.TempDir() by default).
func WithTempRoot(root string) SinkOption {
	return func(s *UpdateDownloadSink) {
		s.root = root
	}
}

// WithClock sets the time source used for throttling progress.
func WithClock(c clock.Clock) SinkOption {
	return func(s *UpdateDownloadSink) {
		s.clock = c
	}
}

// NewUpdateDownloadSink creates a sink. ctx is polled before every chunk;
// once it is done, Add fails with a KindCancelled error.
func NewUpdateDownloadSink(ctx context.Context, notifier Notifier, opts ...SinkOption) *UpdateDownloadSink {
	s := &UpdateDownloadSink{
		ctx:      ctx,
		notifier: notifier,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}

	// Burst of one, spent immediately: the first notification comes no
	// earlier than one interval after the download starts.
	s.limiter = rate.NewLimiter(rate.Every(ProgressInterval), 1)
	s.limiter.AllowN(s.clock.Now(), 1)
	return s
}

// SetLength implements download.Sink.
func (s *UpdateDownloadSink) SetLength(n uint64) {
	s.total = n
}

// SetFilename implements download.Sink. It creates the download directory
// and the destination file, and may be called only once.
func (s *UpdateDownloadSink) SetFilename(name string) error {
	if s.path != "" {
		return newError(KindFilesystem, fmt.Sprintf("cannot set filename to %q", name), ErrFilenameAlreadySet)
	}

	base := filepath.Base(filepath.Clean(name))
	if name == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return newError(KindFilesystem, fmt.Sprintf("invalid download filename %q", name), nil)
	}

	dir, err := CreateUniqueTempDirectory(s.root)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, base)
	//nolint:gosec // G304: path is inside a directory we just created
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0700)
	if err != nil {
		_ = os.RemoveAll(dir)
		return newError(KindFilesystem, "failed to create download file", err)
	}

	s.dir = dir
	s.path = path
	s.file = f
	return nil
}

// Add implements download.Sink.
func (s *UpdateDownloadSink) Add(p []byte) error {
	if err := s.ctx.Err(); err != nil {
		return newError(KindCancelled, "download cancelled", err)
	}
	if s.file == nil {
		return newError(KindFilesystem, "cannot write download data", ErrNoDestination)
	}

	n, err := s.file.Write(p)
	if err == nil && n < len(p) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	s.downloaded += uint64(n)
	if err != nil {
		return newError(KindFilesystem, fmt.Sprintf("failed to write %s", s.path), err)
	}

	final := s.total > 0 && s.downloaded == s.total
	if s.limiter.AllowN(s.clock.Now(), 1) || final {
		s.notifier.NotifyDownloadProgress(s.downloaded, s.total)
	}
	return nil
}

// Close releases the file handle. It is safe to call more than once.
func (s *UpdateDownloadSink) Close() error {
	s.closeOnce.Do(func() {
		if s.file == nil {
			return
		}
		if err := s.file.Close(); err != nil {
			s.closeErr = newError(KindFilesystem, "failed to close download file", err)
		}
	})
	return s.closeErr
}

// FilePath returns the destination file, empty until SetFilename succeeds.
func (s *UpdateDownloadSink) FilePath() string {
	return s.path
}

// Dir returns the download directory, empty until SetFilename succeeds.
func (s *UpdateDownloadSink) Dir() string {
	return s.dir
}

// Downloaded returns the number of bytes written so far.
func (s *UpdateDownloadSink) Downloaded() uint64 {
	return s.downloaded
}

// Total returns the expected size, 0 when unknown.
func (s *UpdateDownloadSink) Total() uint64 {
	return s.total
}
