package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultRetainedKeys are the key fragments [Memory] keeps out of its LRU:
// revoked-token hashes and jti reuse markers. Losing either to eviction
// would let a token authenticate that must be rejected.
var DefaultRetainedKeys = []string{"token_blacklist:", "token_jti:"}

const defaultPruneInterval = time.Minute

// MemoryConfig sizes a [Memory] cache.
type MemoryConfig struct {
	// MaxEntries bounds the LRU holding counters and cached status.
	// Defaults to 100000.
	MaxEntries int
	// RetainedKeys lists substrings of keys that are never evicted and
	// live until their own TTL. Defaults to [DefaultRetainedKeys].
	RetainedKeys []string
	// PruneInterval is the minimum time between sweeps of expired
	// retained keys. Defaults to one minute.
	PruneInterval time.Duration
	Now           func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process cache with per-key TTLs. Counters and cached
// status live in an expirable LRU; retained keys live in a plain map that is
// swept for expired entries. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	items    *lru.LRU[string, memoryEntry]
	retained map[string]memoryEntry
	patterns []string
	now      func() time.Time

	pruneEvery time.Duration
	nextPrune  time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100000
	}
	if cfg.RetainedKeys == nil {
		cfg.RetainedKeys = DefaultRetainedKeys
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Memory{
		// A zero LRU TTL disables the LRU's own expiry; deadlines are
		// per entry.
		items:      lru.NewLRU[string, memoryEntry](cfg.MaxEntries, nil, 0),
		retained:   make(map[string]memoryEntry),
		patterns:   append([]string(nil), cfg.RetainedKeys...),
		now:        cfg.Now,
		pruneEvery: cfg.PruneInterval,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.load(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store(key, memoryEntry{value: value, expiresAt: m.deadline(ttl)})
	return nil
}

// Increment follows INCR semantics: a missing key starts at 0 and keeps no TTL.
func (m *Memory) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.load(key)
	var n int64
	if ok {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotInteger, key)
		}
		n = v
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	m.store(key, e)
	return n, nil
}

// Expire sets a TTL on an existing key. Missing keys are ignored.
func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.load(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		m.remove(key)
		return nil
	}
	e.expiresAt = m.deadline(ttl)
	m.store(key, e)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.load(key)
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(key)
	return nil
}

// Available always reports true.
func (m *Memory) Available(context.Context) bool {
	return m != nil
}

// TTL returns the remaining lifetime of key, or -1 when it has none.
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.load(key)
	if !ok {
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return -1, true
	}
	return e.expiresAt.Sub(m.now()), true
}

// Len reports the number of stored entries, expired ones included until
// they are swept or read.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len() + len(m.retained)
}

func (m *Memory) isRetained(key string) bool {
	for _, p := range m.patterns {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

// load returns a live entry, dropping it when its deadline passed.
// Callers hold m.mu.
func (m *Memory) load(key string) (memoryEntry, bool) {
	var (
		e  memoryEntry
		ok bool
	)
	if m.isRetained(key) {
		e, ok = m.retained[key]
	} else {
		e, ok = m.items.Get(key)
	}
	if !ok {
		return memoryEntry{}, false
	}
	if m.expired(e, m.now()) {
		m.remove(key)
		return memoryEntry{}, false
	}
	return e, true
}

// store writes e under key. Callers hold m.mu.
func (m *Memory) store(key string, e memoryEntry) {
	if !m.isRetained(key) {
		m.items.Add(key, e)
		return
	}
	m.retained[key] = e
	m.prune()
}

func (m *Memory) remove(key string) {
	if m.isRetained(key) {
		delete(m.retained, key)
		return
	}
	m.items.Remove(key)
}

// prune sweeps expired retained entries at most once per interval.
func (m *Memory) prune() {
	now := m.now()
	if now.Before(m.nextPrune) {
		return
	}
	m.nextPrune = now.Add(m.pruneEvery)
	for k, e := range m.retained {
		if m.expired(e, now) {
			delete(m.retained, k)
		}
	}
}

func (m *Memory) expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
