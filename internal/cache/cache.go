package cache

import (
	"sort"
	"sync"

	"github.com/IronFox/AVS-sub001/internal/vehicle"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// EntityCache holds the vehicles spawned in the current session, keyed by id.
// Lookups happen on every host command and every restore step.
type EntityCache struct {
	m        sync.RWMutex
	vehicles map[core.EntityID]*vehicle.Vehicle
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		vehicles: make(map[core.EntityID]*vehicle.Vehicle),
	}
}

// Reset drops every entry. Vehicles are not destroyed.
func (c *EntityCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.vehicles = make(map[core.EntityID]*vehicle.Vehicle)
}

func (c *EntityCache) Add(v *vehicle.Vehicle) {
	c.m.Lock()
	defer c.m.Unlock()
	c.vehicles[v.ID()] = v
}

func (c *EntityCache) Get(id core.EntityID) (*vehicle.Vehicle, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	v, ok := c.vehicles[id]
	return v, ok
}

// Remove deletes id and returns the vehicle that was cached under it.
func (c *EntityCache) Remove(id core.EntityID) (*vehicle.Vehicle, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	v, ok := c.vehicles[id]
	delete(c.vehicles, id)
	return v, ok
}

func (c *EntityCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.vehicles)
}

// All returns the cached vehicles ordered by id.
func (c *EntityCache) All() []*vehicle.Vehicle {
	c.m.RLock()
	out := make([]*vehicle.Vehicle, 0, len(c.vehicles))
	for _, v := range c.vehicles {
		out = append(out, v)
	}
	c.m.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IsEntityInitialized reports whether id is cached and finished construction.
func (c *EntityCache) IsEntityInitialized(id core.EntityID) bool {
	v, ok := c.Get(id)
	return ok && v.IsInitialized()
}

// IDAllocator hands out entity ids. It is owned by the host and injected
// wherever vehicles are spawned.
type IDAllocator struct {
	mu   sync.Mutex
	last core.EntityID
}

// NewIDAllocator returns an allocator whose first id is last+1.
func NewIDAllocator(last core.EntityID) *IDAllocator {
	return &IDAllocator{last: last}
}

// Next returns a fresh id. core.NoEntity is never returned.
func (a *IDAllocator) Next() core.EntityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	if a.last == core.NoEntity {
		a.last++
	}
	return a.last
}

// Observe makes sure later ids are above id, e.g. after a restore reuses one.
func (a *IDAllocator) Observe(id core.EntityID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id > a.last {
		a.last = id
	}
}

// Reset restarts numbering so the next id is last+1.
func (a *IDAllocator) Reset(last core.EntityID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = last
}

// Last returns the most recently issued or observed id.
func (a *IDAllocator) Last() core.EntityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
