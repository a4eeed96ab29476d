// Package cache stores node outputs across runs with LRU eviction and lazy TTL
// expiry.
package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

const (
	DefaultMaxSize = 1000
	DefaultTTL     = time.Hour
)

// Entry is a cached node output.
type Entry struct {
	NodeID      string        `json:"nodeId"`
	Output      any           `json:"output"`
	Timestamp   time.Time     `json:"timestamp"`
	AccessCount int           `json:"accessCount"`
	LastAccess  time.Time     `json:"lastAccess"`
	Size        int           `json:"size"`
	TTL         time.Duration `json:"ttl,omitempty"`

	seq uint64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	TotalEntries int     `json:"totalEntries"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hitRate"`
	Evictions    int64   `json:"evictions"`
	TotalSize    int     `json:"totalSize"`
}

// Manager is an LRU cache keyed by node id. Entries expire lazily: an entry
// older than its TTL is dropped when it is next read.
// Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	seq        uint64

	hits      int64
	misses    int64
	evictions int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// WithTTL sets the default time to live.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a cache with DefaultMaxSize and DefaultTTL unless overridden.
func New(opts ...Option) *Manager {
	m := &Manager{
		entries:    make(map[string]*Entry),
		maxSize:    DefaultMaxSize,
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EstimateSize returns the length of the JSON encoding of v, or 0 if v cannot
// be encoded.
func EstimateSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

// Set stores output under nodeID with the default TTL.
func (m *Manager) Set(nodeID string, output any) {
	m.SetWithTTL(nodeID, output, 0)
}

// SetWithTTL stores a copy of output with a specific TTL; zero means the
// default. When the cache is full and nodeID is new, the least recently
// accessed entry is evicted first. A cache with capacity zero stores nothing.
func (m *Manager) SetWithTTL(nodeID string, output any, ttl time.Duration) {
	size := EstimateSize(output)
	output = domain.CloneValue(output)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSize <= 0 {
		return
	}

	if _, exists := m.entries[nodeID]; !exists && len(m.entries) >= m.maxSize {
		m.evictLocked()
	}

	now := m.now()
	m.seq++
	m.entries[nodeID] = &Entry{
		NodeID:     nodeID,
		Output:     output,
		Timestamp:  now,
		LastAccess: now,
		Size:       size,
		TTL:        ttl,
		seq:        m.seq,
	}
}

func (m *Manager) ttlOf(e *Entry) time.Duration {
	if e.TTL > 0 {
		return e.TTL
	}
	return m.defaultTTL
}

func (m *Manager) expired(e *Entry, now time.Time) bool {
	return now.Sub(e.Timestamp) > m.ttlOf(e)
}

// Get returns a copy of the cached output. Missing and expired entries count as misses;
// an expired entry is removed.
func (m *Manager) Get(nodeID string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[nodeID]
	if !ok {
		m.misses++
		return nil, false
	}
	now := m.now()
	if m.expired(e, now) {
		delete(m.entries, nodeID)
		m.misses++
		return nil, false
	}

	e.AccessCount++
	e.LastAccess = now
	m.seq++
	e.seq = m.seq
	m.hits++
	return domain.CloneValue(e.Output), true
}

// Has reports whether a live entry exists without touching counters or access
// metadata. An expired entry is removed.
func (m *Manager) Has(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[nodeID]
	if !ok {
		return false
	}
	if m.expired(e, m.now()) {
		delete(m.entries, nodeID)
		return false
	}
	return true
}

// Invalidate removes one entry and reports whether it existed.
func (m *Manager) Invalidate(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[nodeID]
	delete(m.entries, nodeID)
	return ok
}

// InvalidateBatch removes several entries and returns how many existed.
func (m *Manager) InvalidateBatch(nodeIDs []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range nodeIDs {
		if _, ok := m.entries[id]; ok {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Clear removes every entry and resets all counters.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	m.hits, m.misses, m.evictions = 0, 0, 0
}

// EvictLRU removes the least recently accessed entry. It reports false on an
// empty cache.
func (m *Manager) EvictLRU() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictLocked()
}

func (m *Manager) evictLocked() bool {
	var victim *Entry
	for _, e := range m.entries {
		if victim == nil ||
			e.LastAccess.Before(victim.LastAccess) ||
			(e.LastAccess.Equal(victim.LastAccess) && e.seq < victim.seq) {
			victim = e
		}
	}
	if victim == nil {
		return false
	}
	delete(m.entries, victim.NodeID)
	m.evictions++
	return true
}

// CleanupExpired eagerly removes every expired entry and returns the count.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TotalEntries: len(m.entries),
		Hits:         m.hits,
		Misses:       m.misses,
		Evictions:    m.evictions,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	for _, e := range m.entries {
		s.TotalSize += e.Size
	}
	return s
}

// ResetStats zeroes the hit, miss and eviction counters.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits, m.misses, m.evictions = 0, 0, 0
}

// SetMaxSize changes the capacity, evicting until the cache fits. Negative
// values are treated as zero, which empties the cache and disables storing.
func (m *Manager) SetMaxSize(n int) {
	if n < 0 {
		n = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSize = n
	for len(m.entries) > m.maxSize {
		m.evictLocked()
	}
}

// SetDefaultTTL changes the TTL applied to entries stored without one.
func (m *Manager) SetDefaultTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultTTL = ttl
}

// Keys returns the ids of the cached entries, sorted.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for id := range m.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TopEntries returns up to limit entries ordered by access count, highest first.
func (m *Manager) TopEntries(limit int) []Entry {
	m.mu.Lock()
	all := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		c := *e
		c.Output = domain.CloneValue(e.Output)
		all = append(all, c)
	}
	m.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].AccessCount != all[j].AccessCount {
			return all[i].AccessCount > all[j].AccessCount
		}
		return all[i].NodeID < all[j].NodeID
	})
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
