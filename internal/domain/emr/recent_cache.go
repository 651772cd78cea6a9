package emr

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultRecentCapacity is how many submitted bundles the cache keeps.
const DefaultRecentCapacity = 5

// CacheMetadata identifies the submission a cached bundle belongs to.
type CacheMetadata struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	ClinicianID string `json:"clinicianId"`
}

type CacheEntry struct {
	Bundle    json.RawMessage `json:"bundle"`
	Metadata  CacheMetadata   `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
}

// RecentCache holds the most recently submitted bundles, newest first. It
// lives only as long as the process and is never the system of record.
type RecentCache struct {
	mu       sync.RWMutex
	entries  []CacheEntry
	capacity int
	now      func() time.Time
}

func NewRecentCache(capacity int) *RecentCache {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &RecentCache{
		entries:  make([]CacheEntry, 0, capacity+1),
		capacity: capacity,
		now:      time.Now,
	}
}

// Add prepends an entry, dropping the oldest one past capacity. It returns
// the number of cached entries.
func (c *RecentCache) Add(bundle json.RawMessage, meta CacheMetadata) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := CacheEntry{Bundle: bundle, Metadata: meta, Timestamp: c.now().UTC()}
	c.entries = append(c.entries, CacheEntry{})
	copy(c.entries[1:], c.entries)
	c.entries[0] = entry
	if len(c.entries) > c.capacity {
		c.entries[len(c.entries)-1] = CacheEntry{}
		c.entries = c.entries[:c.capacity]
	}
	return len(c.entries)
}

// List returns a snapshot of the cache, newest first.
func (c *RecentCache) List() []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CacheEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get returns the entry of submission id.
func (c *RecentCache) Get(id string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Metadata.ID == id {
			return e, true
		}
	}
	return CacheEntry{}, false
}

func (c *RecentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *RecentCache) Capacity() int { return c.capacity }
