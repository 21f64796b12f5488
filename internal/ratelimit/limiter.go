// Package ratelimit implements fixed-window request counters keyed by
// scope and caller.
package ratelimit

import (
	"sync"
	"time"
)

type Scope string

const (
	// ScopeSalvage covers requests that start a salvage run.
	ScopeSalvage Scope = "salvage"
	ScopeRead    Scope = "read"
)

type BucketKind string

const (
	BucketIP    BucketKind = "ip"
	BucketToken BucketKind = "token"
)

// Limit is the per-window allowance of one scope. Zero disables the bucket.
type Limit struct {
	PerIP    int
	PerToken int
}

type Config struct {
	Window time.Duration
	Scopes map[Scope]Limit
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   int64
	ResetIn   int64
}

type key struct {
	scope  Scope
	kind   BucketKind
	bucket string
}

type counter struct {
	windowStart int64
	count       int
}

const maxEntries = 100000

type Limiter struct {
	scopes  map[Scope]Limit
	windowS int64

	mu      sync.Mutex
	entries map[key]counter
}

func New(cfg Config) *Limiter {
	windowS := int64(cfg.Window.Seconds())
	if windowS <= 0 {
		windowS = 60
	}
	scopes := make(map[Scope]Limit, len(cfg.Scopes))
	for s, l := range cfg.Scopes {
		scopes[s] = l
	}
	return &Limiter{
		scopes:  scopes,
		windowS: windowS,
		entries: make(map[key]counter, 1024),
	}
}

// Take counts one request against the bucket and reports whether it fits in
// the current window. Denied requests do not consume the allowance.
func (l *Limiter) Take(now time.Time, scope Scope, kind BucketKind, bucket string) Result {
	limit := l.limit(scope, kind)
	unixNow := now.Unix()
	if limit <= 0 {
		return Result{Allowed: true, ResetAt: unixNow}
	}

	windowStart := unixNow / l.windowS * l.windowS
	resetAt := windowStart + l.windowS
	k := key{scope: scope, kind: kind, bucket: bucket}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[k]
	if !ok || entry.windowStart != windowStart {
		entry = counter{windowStart: windowStart}
	}
	allowed := entry.count < limit
	if allowed {
		entry.count++
	}
	l.entries[k] = entry

	if len(l.entries) > maxEntries {
		l.evictBefore(windowStart)
	}

	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-entry.count, 0),
		ResetAt:   resetAt,
		ResetIn:   max(resetAt-unixNow, 0),
	}
}

func (l *Limiter) limit(scope Scope, kind BucketKind) int {
	lim, ok := l.scopes[scope]
	if !ok {
		return 0
	}
	if kind == BucketToken {
		return lim.PerToken
	}
	return lim.PerIP
}

func (l *Limiter) evictBefore(windowStart int64) {
	for k, v := range l.entries {
		if v.windowStart < windowStart {
			delete(l.entries, k)
		}
	}
}
