// Package storage provides key-value storage adapters for session
// persistence: an in-process map for single-tab use and a Redis adapter for
// storage shared across tabs/processes.
package storage

import (
	"context"
	"sync"

	"github.com/brightline/portal-sessions/internal/ports"
)

// Memory is an in-process storage adapter. Handles created with Handle share
// the same data; removal watchers fire asynchronously and never observe
// deletes made through their own handle, matching the Redis adapter's
// delivery semantics.
type Memory struct {
	core   *memoryCore
	origin int
}

type memoryCore struct {
	mu         sync.Mutex
	data       map[string]string
	watchers   map[string]map[int]memoryWatcher
	nextWatch  int
	nextOrigin int
}

type memoryWatcher struct {
	origin int
	fn     func()
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	core := &memoryCore{
		data:     make(map[string]string),
		watchers: make(map[string]map[int]memoryWatcher),
	}
	return core.handle()
}

// Handle returns a new handle over the same data with its own watch origin,
// like a second tab opening the same shared storage.
func (m *Memory) Handle() *Memory {
	return m.core.handle()
}

func (c *memoryCore) handle() *Memory {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextOrigin++
	return &Memory{core: c, origin: c.nextOrigin}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	c := m.core
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	c := m.core
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	c := m.core
	var fns []func()
	c.mu.Lock()
	for _, key := range keys {
		if _, ok := c.data[key]; !ok {
			continue
		}
		delete(c.data, key)
		for _, w := range c.watchers[key] {
			if w.origin == m.origin {
				continue
			}
			fns = append(fns, w.fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		go fn()
	}
	return nil
}

// WatchRemoval registers fn to run when key is deleted through another
// handle.
func (m *Memory) WatchRemoval(key string, fn func()) (func(), error) {
	c := m.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watchers[key] == nil {
		c.watchers[key] = make(map[int]memoryWatcher)
	}
	id := c.nextWatch
	c.nextWatch++
	c.watchers[key][id] = memoryWatcher{origin: m.origin, fn: fn}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers[key], id)
	}, nil
}
