package payment

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Fetcher loads an SDK script from its URL and yields a usable handle.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (SDKHandle, error)
}

// Loader loads gateway SDKs lazily and at most once per URL. SDK handles
// are a process-wide resource; the loader is their sole mutator and
// serializes duplicate requests for the same URL.
type Loader struct {
	fetch  Fetcher
	logger *zap.Logger

	mu       sync.Mutex
	loaded   map[string]SDKHandle
	inflight map[string]*loadCall
}

type loadCall struct {
	done   chan struct{}
	handle SDKHandle
	err    error
}

// NewLoader creates an SDK loader on top of the given fetcher.
func NewLoader(fetch Fetcher, logger *zap.Logger) *Loader {
	return &Loader{
		fetch:    fetch,
		logger:   logger,
		loaded:   make(map[string]SDKHandle),
		inflight: make(map[string]*loadCall),
	}
}

// Ensure returns the SDK handle for url, loading it on first use. Concurrent
// calls for the same URL share a single fetch. A failed load is not cached,
// so a later attempt may retry.
func (l *Loader) Ensure(ctx context.Context, url string) (SDKHandle, error) {
	l.mu.Lock()
	if h, ok := l.loaded[url]; ok {
		l.mu.Unlock()
		return h, nil
	}
	if call, ok := l.inflight[url]; ok {
		l.mu.Unlock()
		select {
		case <-call.done:
			return call.handle, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &loadCall{done: make(chan struct{})}
	l.inflight[url] = call
	l.mu.Unlock()

	handle, err := l.fetch.Fetch(ctx, url)
	if err != nil {
		l.logger.Warn("SDK load failed", zap.String("url", url), zap.Error(err))
		err = fmt.Errorf("%w: load %s: %v", ErrGatewayUnavailable, url, err)
	}
	call.handle = handle
	call.err = err

	l.mu.Lock()
	delete(l.inflight, url)
	if err == nil {
		l.loaded[url] = handle
	}
	l.mu.Unlock()
	close(call.done)

	return handle, err
}

// IsLoaded reports whether url has already been loaded successfully.
func (l *Loader) IsLoaded(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[url]
	return ok
}
