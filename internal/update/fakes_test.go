package update

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/adamancini/updraft/internal/download"
)

// fakeDownloader serves canned bodies by URL.
type fakeDownloader struct {
	mu        sync.Mutex
	files     map[string][]byte
	requests  []string
	chunkSize int
	// beforeChunk runs before each chunk is handed to the sink
	beforeChunk func(i int)
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{files: make(map[string][]byte), chunkSize: 4}
}

func (d *fakeDownloader) serve(url string, body []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[url] = body
}

func (d *fakeDownloader) requestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func (d *fakeDownloader) Download(ctx context.Context, url string, sink download.Sink, _ ...download.Option) error {
	d.mu.Lock()
	d.requests = append(d.requests, url)
	body, ok := d.files[url]
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("GET %s: unexpected status 404 Not Found", url)
	}

	sink.SetLength(uint64(len(body)))
	if err := sink.SetFilename(path.Base(url)); err != nil {
		return fmt.Errorf("failed to prepare download: %w", err)
	}
	for i, n := 0, 0; i < len(body); i, n = i+d.chunkSize, n+1 {
		if d.beforeChunk != nil {
			d.beforeChunk(n)
		}
		end := i + d.chunkSize
		if end > len(body) {
			end = len(body)
		}
		if err := sink.Add(body[i:end]); err != nil {
			return fmt.Errorf("failed to write download: %w", err)
		}
	}
	return nil
}

// stubParser ignores the feed bytes and returns a fixed appcast.
type stubParser struct {
	appcast Appcast
	err     error
	calls   int
}

func (p *stubParser) Parse([]byte) (Appcast, error) {
	p.calls++
	return p.appcast, p.err
}

// recordingNotifier counts every event.
type recordingNotifier struct {
	mu          sync.Mutex
	noUpdate    int
	available   []Appcast
	progress    [][2]uint64
	errors      []error
	autoInstall bool
}

func (n *recordingNotifier) NotifyNoUpdate(autoInstall bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.noUpdate++
	n.autoInstall = autoInstall
}

func (n *recordingNotifier) NotifyUpdateAvailable(a Appcast, autoInstall bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.available = append(n.available, a)
	n.autoInstall = autoInstall
}

func (n *recordingNotifier) NotifyDownloadProgress(downloaded, total uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, [2]uint64{downloaded, total})
}

func (n *recordingNotifier) NotifyError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, err)
}

// recordingLauncher records installers instead of running them.
type recordingLauncher struct {
	paths []string
	err   error
}

func (l *recordingLauncher) Launch(path string) error {
	l.paths = append(l.paths, path)
	return l.err
}
