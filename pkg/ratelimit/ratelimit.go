// Package ratelimit implements a best-effort sliding window limiter keyed by
// client address.
//
// The limiter is not authoritative across process instances unless it is
// backed by a shared Store such as RedisStore. It softens casual abuse and is
// not a security control.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultWindow = time.Minute
	DefaultMax    = 3

	// UnknownKey is shared by every request that carries no address signal.
	UnknownKey = "unknown"
)

// Store records hits per key inside a trailing window.
//
// Hit drops the timestamps of key that are at least window older than now,
// appends now, and returns how many timestamps remain. The whole operation
// must be atomic per key.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

// Limiter admits at most Max requests per key within Window.
type Limiter struct {
	store  Store
	window time.Duration
	max    int
	now    func() time.Time
}

type Option func(*Limiter)

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

func WithMax(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.max = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		window: DefaultWindow,
		max:    DefaultMax,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Window() time.Duration { return l.window }
func (l *Limiter) Max() int              { return l.max }

// Allow records an attempt for key and reports whether it fits in the
// window. Rejected attempts are recorded too. A store error admits the
// request and is returned so the caller can log it.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Hit(ctx, key, l.now(), l.window)
	if err != nil {
		return true, err
	}
	return count <= l.max, nil
}

// ClientKey derives the rate limit key for r: the first X-Forwarded-For
// entry, then the peer address, then UnknownKey.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}
	return UnknownKey
}
