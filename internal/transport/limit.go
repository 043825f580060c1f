// Package transport provides the shared HTTP client used for relay and
// image requests.
package transport

import (
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// LimitedTransport caps the number of requests whose responses are in
// flight. A slot is held from the start of the round trip until the
// response body is closed.
type LimitedTransport struct {
	base http.RoundTripper
	sem  *semaphore.Weighted
}

// NewLimitedTransport wraps base so that at most maxConns requests run at
// once. A nil base uses a clone of http.DefaultTransport.
func NewLimitedTransport(base http.RoundTripper, maxConns int) *LimitedTransport {
	if maxConns <= 0 {
		maxConns = 1
	}
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = maxConns
		t.MaxIdleConnsPerHost = maxConns
		t.IdleConnTimeout = 90 * time.Second
		base = t
	}
	return &LimitedTransport{
		base: base,
		sem:  semaphore.NewWeighted(int64(maxConns)),
	}
}

// RoundTrip implements http.RoundTripper
func (t *LimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.sem.Acquire(req.Context(), 1); err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.sem.Release(1)
		return nil, err
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, release: func() { t.sem.Release(1) }}
	return resp, nil
}

// releasingBody returns its semaphore slot exactly once on Close
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}

// NewLimitedClient returns an *http.Client sharing one connection pool capped
// at maxConns concurrent requests. Timeouts are applied per request by the
// callers through their contexts.
func NewLimitedClient(maxConns int) *http.Client {
	return &http.Client{Transport: NewLimitedTransport(nil, maxConns)}
}
