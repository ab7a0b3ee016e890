package scan

import (
	"sync"
	"time"
)

// DedupeCache suppresses repeated reads of the same code within a cooldown,
// as a scanner in continuous mode reports one label many times.
type DedupeCache struct {
	cache    map[string]time.Time
	mutex    sync.Mutex
	cooldown time.Duration
	now      func() time.Time
}

func NewDedupeCache(cooldown time.Duration) *DedupeCache {
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	return &DedupeCache{
		cache:    make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Seen reports whether code was accepted within the cooldown. When it was
// not, the read is recorded and false is returned.
func (dc *DedupeCache) Seen(code string) bool {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()

	now := dc.now()
	if last, ok := dc.cache[code]; ok && now.Sub(last) < dc.cooldown {
		return true
	}
	dc.cache[code] = now
	dc.cleanup(now)
	return false
}

// cleanup drops entries older than twice the cooldown.
func (dc *DedupeCache) cleanup(now time.Time) {
	for key, ts := range dc.cache {
		if now.Sub(ts) > dc.cooldown*2 {
			delete(dc.cache, key)
		}
	}
}

func (dc *DedupeCache) Len() int {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	return len(dc.cache)
}

func (dc *DedupeCache) Clear() {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	dc.cache = make(map[string]time.Time)
}
