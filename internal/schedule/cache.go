package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SlotCache memoizes generated slot pages per provider/service/duration/day. Entries
// are keyed with a per-provider generation counter; bumping the counter on a
// committed booking orphans every cached page for that provider, and the
// orphans age out of the LRU on their own.
type SlotCache struct {
	entries *lru.Cache[string, []Slot]

	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

func NewSlotCache(size int) (*SlotCache, error) {
	entries, err := lru.New[string, []Slot](size)
	if err != nil {
		return nil, fmt.Errorf("create slot cache: %w", err)
	}
	return &SlotCache{
		entries:     entries,
		generations: make(map[uuid.UUID]uint64),
	}, nil
}

func (c *SlotCache) Get(providerID, serviceID uuid.UUID, duration time.Duration, day time.Time) ([]Slot, bool) {
	return c.entries.Get(c.key(providerID, serviceID, duration, day))
}

func (c *SlotCache) Add(providerID, serviceID uuid.UUID, duration time.Duration, day time.Time, slots []Slot) {
	c.entries.Add(c.key(providerID, serviceID, duration, day), slots)
}

// Invalidate drops all cached pages for the provider.
func (c *SlotCache) Invalidate(providerID uuid.UUID) {
	c.mu.Lock()
	c.generations[providerID]++
	c.mu.Unlock()
}

func (c *SlotCache) key(providerID, serviceID uuid.UUID, duration time.Duration, day time.Time) string {
	c.mu.Lock()
	gen := c.generations[providerID]
	c.mu.Unlock()
	// Duration is part of the key: service-less queries share serviceID zero
	// but may ask for different durations.
	return fmt.Sprintf("%s|%s|%s|%s|%d", providerID, serviceID, duration, day.UTC().Format("2006-01-02"), gen)
}
