package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"dev.veridict.agent/internal/models"
)

// ContentKey derives the cache key from the parts of an item that an
// idempotent unit actually reads. Two items with the same headline, body
// and link are the same work.
func ContentKey(item models.NewsItem) string {
	h := sha256.New()
	h.Write([]byte(item.Headline))
	h.Write([]byte{0})
	h.Write([]byte(item.Text))
	h.Write([]byte{0})
	h.Write([]byte(item.Link))
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	report    models.SignalReport
	expiresAt time.Time
	storedAt  time.Time
}

// ReportCache holds unit reports keyed by content key and unit ID, with
// TTL expiry and a hard size cap. Staleness is bounded and auditable: an
// entry lives at most one TTL, and eviction removes the oldest entries.
type ReportCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int

	done chan struct{}
	once sync.Once
}

func NewReportCache(ttl time.Duration, maxSize int) *ReportCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	c := &ReportCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func cacheKey(contentKey, unitID string) string {
	return unitID + ":" + contentKey
}

// Get returns the cached report for a unit and content key, if fresh.
func (c *ReportCache) Get(contentKey, unitID string) (models.SignalReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(contentKey, unitID)]
	if !ok || time.Now().After(e.expiresAt) {
		return models.SignalReport{}, false
	}
	return e.report, true
}

// Put stores a report. Degenerate reports are not cached; a failure now
// says nothing about the next attempt.
func (c *ReportCache) Put(contentKey, unitID string, report models.SignalReport) {
	if report.Degenerate() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[cacheKey(contentKey, unitID)] = cacheEntry{
		report:    report,
		expiresAt: now.Add(c.ttl),
		storedAt:  now,
	}
}

func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReportCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldest) {
			oldestKey = k
			oldest = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *ReportCache) cleanupLoop() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *ReportCache) removeExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *ReportCache) Close() {
	c.once.Do(func() { close(c.done) })
}
