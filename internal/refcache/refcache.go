// Package refcache fetches external reference datasets once and serves them
// from a local cache directory afterwards.
package refcache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrIOFailure is matched by every error returned when neither the cache file
// nor the remote resource could be read.
var ErrIOFailure = errors.New("reference resource unreachable")

// FetchError describes a failed fetch of a reference dataset.
type FetchError struct {
	Location string
	CacheKey string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (cache key %s): %v", e.Location, e.CacheKey, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports a match for ErrIOFailure.
func (e *FetchError) Is(target error) bool { return target == ErrIOFailure }

// Max length of a single reference line.
const maxLineSize = 16 * 1024 * 1024

// Fetcher reads reference datasets through a local file cache.
// A Fetcher is safe for concurrent use.
type Fetcher struct {
	dir     string
	timeout time.Duration
	retries uint64
	opener  Opener
	logger  *zap.Logger
	group   singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each remote fetch, including retries.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithRetries sets how many times a failed remote read is retried.
func WithRetries(n uint64) Option {
	return func(f *Fetcher) { f.retries = n }
}

// WithOpener replaces the default location opener.
func WithOpener(o Opener) Option {
	return func(f *Fetcher) { f.opener = o }
}

// WithLogger sets the logger for cache hits, misses and retries.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher that caches datasets in dir.
func New(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:     dir,
		timeout: 10 * time.Minute,
		retries: 3,
		opener:  DefaultOpener(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dir returns the cache directory.
func (f *Fetcher) Dir() string {
	return f.dir
}

// Path returns the cache file path for a cache key.
func (f *Fetcher) Path(cacheKey string) string {
	return filepath.Join(f.dir, cacheKey)
}

// Fetch returns the lines of the dataset at location. When a cache file for
// cacheKey exists its contents are returned without touching location;
// otherwise the remote resource is read once, persisted under cacheKey and
// returned.
func (f *Fetcher) Fetch(ctx context.Context, location, cacheKey string) ([]string, error) {
	if cacheKey == "" || strings.ContainsAny(cacheKey, `/\`) || cacheKey == "." || cacheKey == ".." {
		return nil, fmt.Errorf("invalid cache key %q", cacheKey)
	}

	path := f.Path(cacheKey)
	if lines, err := readCacheFile(path); err == nil {
		f.logger.Debug("reference cache hit", zap.String("key", cacheKey), zap.Int("lines", len(lines)))
		return lines, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, &FetchError{Location: location, CacheKey: cacheKey, Err: err}
	}

	// Concurrent first-time fetches of one key share a single download. The
	// download outlives a cancelled caller and is bounded by the fetch timeout
	// instead, so the remaining callers still get its result.
	ch := f.group.DoChan(cacheKey, func() (any, error) {
		if lines, err := readCacheFile(path); err == nil {
			return lines, nil
		}
		return f.fetchRemote(context.WithoutCancel(ctx), location, cacheKey)
	})
	select {
	case <-ctx.Done():
		return nil, &FetchError{Location: location, CacheKey: cacheKey, Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]string), nil
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, location, cacheKey string) ([]string, error) {
	f.logger.Info("reference cache miss, fetching",
		zap.String("key", cacheKey),
		zap.String("location", location))

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var lines []string
	op := func() error {
		rc, err := f.opener.Open(ctx, location)
		if err != nil {
			return err
		}
		defer rc.Close()

		lines, err = scanLines(rc)
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("reference fetch failed, retrying",
			zap.String("key", cacheKey),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, &FetchError{Location: location, CacheKey: cacheKey, Err: err}
	}

	if err := f.writeCacheFile(cacheKey, lines); err != nil {
		return nil, &FetchError{Location: location, CacheKey: cacheKey, Err: err}
	}

	f.logger.Info("reference dataset cached",
		zap.String("key", cacheKey),
		zap.Int("lines", len(lines)))
	return lines, nil
}

// writeCacheFile writes lines to a temp file in the cache directory and
// renames it into place, so readers never observe a partial cache file.
func (f *Fetcher) writeCacheFile(cacheKey string, lines []string) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, cacheKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, f.Path(cacheKey)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func readCacheFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines, err := scanLines(file)
	if err != nil {
		return nil, fmt.Errorf("read cache file %s: %w", path, err)
	}
	return lines, nil
}

func scanLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
