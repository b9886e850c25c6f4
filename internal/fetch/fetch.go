// Package fetch retrieves remote dataset archives to local storage with
// retry, backoff, and free-space enforcement.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/koalasec/photon-sync/internal/logger"
	"github.com/koalasec/photon-sync/internal/retry"
)

// FetchError reports an exhausted download: every attempt failed.
type FetchError struct {
	URL       string
	Attempts  int
	LastCause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("download of %s failed after %d attempts: %v", e.URL, e.Attempts, e.LastCause)
}

func (e *FetchError) Unwrap() error { return e.LastCause }

// Fetcher downloads files over HTTP. Each Fetch invocation carries its own
// retry state; attempts never resume a prior partial transfer.
type Fetcher struct {
	client           *http.Client
	log              logger.Logger
	limiter          *rate.Limiter
	newBackoff       func() retry.Backoff
	progressInterval time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRateLimit caps download bandwidth to bytesPerSec. Zero means unlimited.
func WithRateLimit(bytesPerSec int64) Option {
	return func(f *Fetcher) {
		if bytesPerSec > 0 {
			burst := int(bytesPerSec)
			if burst < copyChunkSize {
				burst = copyChunkSize
			}
			f.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
		}
	}
}

// WithBackoffFactory replaces the backoff policy used between attempts.
func WithBackoffFactory(fn func() retry.Backoff) Option {
	return func(f *Fetcher) { f.newBackoff = fn }
}

const copyChunkSize = 128 * 1024

// New creates a Fetcher. The default client bounds connection setup and
// response-header waits but not the transfer itself: archive sizes vary by
// orders of magnitude, so a total timeout would be arbitrary.
func New(log logger.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
		log: log,
		newBackoff: func() retry.Backoff {
			return retry.NewSimpleBackoff(time.Second, 30*time.Second, 0.15, 2)
		},
		progressInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to dest, retrying up to maxRetries attempts with
// exponential backoff. On return dest is either absent or complete: partial
// transfers from failed attempts are discarded. Returns the number of bytes
// written.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string, maxRetries int) (int64, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var written int64
	attempts := 0
	backoff := f.newBackoff()

	err := retry.NWithBackoffCtx(ctx, backoff, maxRetries, func() error {
		attempts++
		n, err := f.fetchOnce(ctx, url, dest)
		if err != nil {
			f.log.Warnf("download attempt %d/%d failed: %v", attempts, maxRetries, err)
			return err
		}
		written = n
		return nil
	})
	if err != nil {
		_ = os.Remove(partialPath(dest))
		return 0, &FetchError{URL: url, Attempts: attempts, LastCause: err}
	}

	return written, nil
}

// RemoteSize probes the size of the resource at url via a HEAD request.
// Returns -1 when the server does not report a length.
func (f *Fetcher) RemoteSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return -1, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return -1, fmt.Errorf("HEAD %s returned status %d", url, resp.StatusCode)
	}
	return resp.ContentLength, nil
}

func partialPath(dest string) string { return dest + ".partial" }

// fetchOnce performs one full transfer attempt into a partial file, renaming
// it onto dest only after the body has been read to completion.
func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	partial := partialPath(dest)
	_ = os.Remove(partial)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}

	out, err := os.Create(partial)
	if err != nil {
		return 0, err
	}

	written, err := f.copy(ctx, out, resp.Body, resp.ContentLength, filepath.Base(dest))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength > 0 && written < resp.ContentLength {
		err = fmt.Errorf("download incomplete: %d/%d bytes", written, resp.ContentLength)
	}
	if err != nil {
		_ = os.Remove(partial)
		return 0, err
	}

	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return 0, err
	}
	return written, nil
}

// copy streams body to out in fixed-size chunks, applying the bandwidth cap
// and logging progress periodically.
func (f *Fetcher) copy(ctx context.Context, out io.Writer, body io.Reader, total int64, name string) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64

	start := time.Now()
	lastLog := start
	var lastLogBytes int64

	if total > 0 {
		f.log.Infof("starting download of %.2f GB to %s", gb(total), name)
	}

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				if err := waitN(ctx, f.limiter, n); err != nil {
					return written, err
				}
			}
			w, werr := out.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}

			if now := time.Now(); total > 0 && now.Sub(lastLog) >= f.progressInterval {
				elapsed := now.Sub(lastLog).Seconds()
				speed := float64(written-lastLogBytes) * 8 / (elapsed * 1e6)
				f.log.Infof("download progress: %.1f%% (%.2fGB / %.2fGB) - %.1f Mbps",
					float64(written)/float64(total)*100, gb(written), gb(total), speed)
				lastLog = now
				lastLogBytes = written
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, rerr
		}
	}

	f.log.Infof("download completed: %.2f GB in %s", gb(written), time.Since(start).Round(time.Second))
	return written, nil
}

// waitN reserves n tokens, splitting requests larger than the limiter burst.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	for n > 0 {
		chunk := n
		if chunk > l.Burst() {
			chunk = l.Burst()
		}
		if err := l.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func gb(n int64) float64 { return float64(n) / (1 << 30) }
