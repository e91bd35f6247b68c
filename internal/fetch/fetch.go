// Package fetch downloads remote assets into local scratch files with size
// and content-type guards.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// UserAgent is sent on every download. Some image hosts reject the Go default.
const UserAgent = "Mozilla/5.0 (compatible; talkinghead/1.0)"

// ErrTooLarge is returned when a resource exceeds the configured size limit.
var ErrTooLarge = errors.New("file too large")

// StatusError reports a non-200 response from the remote host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("could not fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Fetcher streams remote resources to disk.
type Fetcher struct {
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// Options configures a Fetcher.
type Options struct {
	MaxSize        int64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Client         *http.Client // optional, replaces the default transport
}

// New returns a Fetcher. Zero timeouts fall back to 10s connect / 30s read.
func New(opts Options, logger *slog.Logger) *Fetcher {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout:   opts.ConnectTimeout,
				ResponseHeaderTimeout: opts.ReadTimeout,
			},
		}
	}
	return &Fetcher{
		client:  client,
		maxSize: opts.MaxSize,
		logger:  logger.With("component", "fetch"),
	}
}

// Fetch downloads url into dest and returns the number of bytes written.
// wantType is a content-type prefix such as "image/"; a mismatch is only
// logged. On any error the partially written file is removed.
func (f *Fetcher) Fetch(ctx context.Context, url, dest, wantType string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("could not fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if wantType != "" {
		ct := resp.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(ct)
		if !strings.HasPrefix(mediaType, wantType) {
			f.logger.WarnContext(ctx, "Unexpected content type", "url", url, "content_type", ct, "want", wantType)
		}
	}

	if f.maxSize > 0 && resp.ContentLength > f.maxSize {
		return 0, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, resp.ContentLength, f.maxSize)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	var src io.Reader = resp.Body
	if f.maxSize > 0 {
		// One byte past the limit is enough to detect an oversized body
		// when Content-Length is absent or wrong.
		src = io.LimitReader(resp.Body, f.maxSize+1)
	}

	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && f.maxSize > 0 && n > f.maxSize {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxSize)
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("download %s: %w", url, err)
	}

	f.logger.DebugContext(ctx, "Downloaded asset", "url", url, "bytes", n)
	return n, nil
}
