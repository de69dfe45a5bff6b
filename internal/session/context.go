// Package session tracks the save slot and world-load state of the running game.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

// EntityChecker answers whether an entity finished construction.
type EntityChecker interface {
	IsEntityInitialized(id core.EntityID) bool
}

// Context holds the current session. A new session id is issued on every
// slot change so journal rows of different playthroughs do not mix.
type Context struct {
	mu          sync.RWMutex
	session     core.Session
	worldLoaded bool
	entities    EntityChecker
}

// NewContext creates a Context for slot with a fresh session id.
func NewContext(slot, version string, entities EntityChecker) *Context {
	return &Context{
		session:  newSession(slot, version),
		entities: entities,
	}
}

func newSession(slot, version string) core.Session {
	return core.Session{
		ID:               uuid.NewString(),
		Slot:             slot,
		StartTime:        time.Now(),
		ExtensionVersion: version,
	}
}

// Session returns a copy of the current session.
func (c *Context) Session() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Context) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.ID
}

func (c *Context) Slot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Slot
}

// SetSlot switches to slot, starting a new session and marking the world
// unloaded. It returns the new session.
func (c *Context) SetSlot(slot string) core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = newSession(slot, c.session.ExtensionVersion)
	c.worldLoaded = false
	return c.session
}

func (c *Context) IsWorldLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldLoaded
}

func (c *Context) SetWorldLoaded(loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.worldLoaded = loaded
}

// IsEntityInitialized delegates to the entity registry. Without one, nothing
// counts as initialized.
func (c *Context) IsEntityInitialized(id core.EntityID) bool {
	if c.entities == nil {
		return false
	}
	return c.entities.IsEntityInitialized(id)
}
