package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("updraft/download")

// ChunkSize is the size of each write handed to a Sink.
const ChunkSize = 32 * 1024

const defaultFilename = "update"

const maxRedirects = 10

var (
	// ErrInsecureRedirect is returned when an https request is redirected
	// to any other scheme.
	ErrInsecureRedirect = errors.New("redirect leaves https")
	// ErrEmptyResponse is returned for a successful response without a body.
	ErrEmptyResponse = errors.New("response body is empty")
)

// Option configures a single download.
type Option func(*options)

type options struct {
	headers       map[string]string
	userAgent     string
	bypassProxies bool
	redirectCheck func(*url.URL) error
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithBypassProxies connects directly, ignoring proxy settings from the environment.
func WithBypassProxies() Option {
	return func(o *options) {
		o.bypassProxies = true
	}
}

// WithRedirectCheck runs check on every redirect target before it is
// followed. An error stops the download and is returned wrapped.
func WithRedirectCheck(check func(*url.URL) error) Option {
	return func(o *options) {
		o.redirectCheck = check
	}
}

// HTTPDownloader downloads resources over HTTP
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader() *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{
			Timeout:       30 * time.Minute,
			CheckRedirect: checkRedirect(nil),
		},
	}
}

// NewHTTPDownloaderWithClient creates a downloader around an existing client (for testing).
func NewHTTPDownloaderWithClient(client *http.Client) *HTTPDownloader {
	return &HTTPDownloader{client: client}
}

// Download streams the resource at rawURL into sink
func (d *HTTPDownloader) Download(ctx context.Context, rawURL string, sink Sink, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	if o.userAgent != "" {
		req.Header.Set("User-Agent", o.userAgent)
	}

	resp, err := d.clientFor(o).Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s returned status %d", rawURL, resp.StatusCode)
	}

	if resp.ContentLength > 0 {
		sink.SetLength(uint64(resp.ContentLength))
	}
	if err := sink.SetFilename(responseFilename(resp)); err != nil {
		return fmt.Errorf("failed to prepare download destination: %w", err)
	}

	log.Debugw("downloading", "url", rawURL, "length", resp.ContentLength)

	var downloaded int64
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := sink.Add(buf[:n]); err != nil {
				return fmt.Errorf("failed to store downloaded data: %w", err)
			}
			downloaded += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			switch {
			case downloaded == 0:
				return fmt.Errorf("download of %s: %w", rawURL, ErrEmptyResponse)
			case resp.ContentLength > 0 && downloaded != resp.ContentLength:
				return fmt.Errorf("download of %s truncated: got %d of %d bytes", rawURL, downloaded, resp.ContentLength)
			}
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read response body: %w", readErr)
		}
	}
}

// clientFor returns a client honouring the per-download options.
func (d *HTTPDownloader) clientFor(o options) *http.Client {
	if !o.bypassProxies && o.redirectCheck == nil {
		return d.client
	}

	client := *d.client
	if o.bypassProxies {
		var transport *http.Transport
		if t, ok := d.client.Transport.(*http.Transport); ok && t != nil {
			transport = t.Clone()
		} else {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		transport.Proxy = nil
		client.Transport = transport
	}
	if o.redirectCheck != nil {
		client.CheckRedirect = checkRedirect(o.redirectCheck)
	}
	return &client
}

// checkRedirect refuses https to http downgrades, then defers to check.
func checkRedirect(check func(*url.URL) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if check != nil {
			if err := check(req.URL); err != nil {
				return err
			}
		}
		prev := via[len(via)-1].URL
		if strings.EqualFold(prev.Scheme, "https") && !strings.EqualFold(req.URL.Scheme, "https") {
			return fmt.Errorf("%w: %s to %s", ErrInsecureRedirect, prev.Redacted(), req.URL.Redacted())
		}
		return nil
	}
}

// responseFilename picks the file name from Content-Disposition, falling
// back to the last path segment of the final request URL.
func responseFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := cleanFilename(params["filename"]); name != "" {
				return name
			}
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		if name := filenameFromURL(resp.Request.URL); name != "" {
			return name
		}
	}
	return defaultFilename
}

func filenameFromURL(u *url.URL) string {
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		p = u.Path
	}
	return cleanFilename(path.Base(p))
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}
