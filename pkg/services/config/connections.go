package config

import (
	"fmt"
	"sync"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// Connections is the set of configured provider connections, in config order.
type Connections struct {
	mu    sync.RWMutex
	byID  map[string]domain.Connection
	order []string
}

func NewConnections(conns ...domain.Connection) (*Connections, error) {
	c := &Connections{byID: make(map[string]domain.Connection, len(conns))}
	for _, conn := range conns {
		if err := c.Add(conn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Config) ConnectionSet() (*Connections, error) {
	conns := make([]domain.Connection, 0, len(c.Connections))
	for _, cc := range c.Connections {
		conns = append(conns, cc.Domain())
	}
	return NewConnections(conns...)
}

func (c *Connections) Add(conn domain.Connection) error {
	if conn.ID == "" {
		return fmt.Errorf("connection id is required")
	}
	if !conn.Provider.Valid() {
		return fmt.Errorf("connection %s: unknown provider %q", conn.ID, conn.Provider)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[conn.ID]; exists {
		return fmt.Errorf("connection %s is already registered", conn.ID)
	}
	c.byID[conn.ID] = conn
	c.order = append(c.order, conn.ID)
	return nil
}

func (c *Connections) Connection(id string) (domain.Connection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.byID[id]
	return conn, ok
}

func (c *Connections) Connections() []domain.Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Connection, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
