package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same window and lockout rules as PG.
type Memory struct {
	mu       sync.Mutex
	data     map[string]*memEntry
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory constructs an in-memory limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		data:     make(map[string]*memEntry),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func memKey(username string, ipHash []byte) string { return username + "\x00" + string(ipHash) }

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.data[memKey(username, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (username, ip).
func (l *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	l.mu.Lock()
	delete(l.data, memKey(username, ipHash))
	l.mu.Unlock()
	return nil
}

// Failure records a failed attempt; reaching maxFails within the window blocks for blockFor.
func (l *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := memKey(username, ipHash)
	e, ok := l.data[k]
	if !ok || now.Sub(e.updatedAt) > l.window {
		e = &memEntry{}
		l.data[k] = e
	}
	e.fails++
	e.updatedAt = now
	if e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor, nil
	}
	return false, 0, nil
}

// Purge drops entries that are neither blocked nor updated within the window.
func (l *Memory) Purge(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	var n int64
	for k, e := range l.data {
		if !e.blockedUntil.After(now) && now.Sub(e.updatedAt) > l.window {
			delete(l.data, k)
			n++
		}
	}
	return n, nil
}
