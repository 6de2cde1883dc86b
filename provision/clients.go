package provision

import (
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-onboarding/core"
	"github.com/uptrace/bun"
)

// ClientCache holds one open handle per provisioning target so repeated
// grants against the same destination reuse a connection pool. Entries have
// an explicit lifecycle: Invalidate drops a handle that went bad, Close
// drains everything at shutdown.
type ClientCache struct {
	registry *Registry

	mu      sync.Mutex
	clients map[string]*bun.DB
}

func NewClientCache(registry *Registry) (*ClientCache, error) {
	if registry == nil {
		return nil, fmt.Errorf("provision: registry is required")
	}
	return &ClientCache{
		registry: registry,
		clients:  make(map[string]*bun.DB),
	}, nil
}

func (c *ClientCache) Get(target core.TargetDescriptor) (*bun.DB, error) {
	if c == nil {
		return nil, fmt.Errorf("provision: client cache is not configured")
	}
	key := cacheKey(target)
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.clients[key]; ok {
		return db, nil
	}
	db, err := c.registry.Open(target)
	if err != nil {
		return nil, err
	}
	c.clients[key] = db
	return db, nil
}

func (c *ClientCache) Invalidate(target core.TargetDescriptor) {
	if c == nil {
		return
	}
	key := cacheKey(target)
	c.mu.Lock()
	db, ok := c.clients[key]
	if ok {
		delete(c.clients, key)
	}
	c.mu.Unlock()
	if ok {
		_ = db.Close()
	}
}

func (c *ClientCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	clients := c.clients
	c.clients = make(map[string]*bun.DB)
	c.mu.Unlock()

	var firstErr error
	for _, db := range clients {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func cacheKey(target core.TargetDescriptor) string {
	return strings.TrimSpace(strings.ToLower(target.Driver)) + "|" + strings.TrimSpace(target.DSN)
}
