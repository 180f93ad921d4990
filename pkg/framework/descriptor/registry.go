package descriptor

import (
	"fmt"
	"sort"
	"sync"
)

type registryEntry struct {
	desc       *Descriptor
	persistent bool
}

// Registry holds named descriptors a plug-in keeps between invocations. Values are
// deep-copied on the way in and on the way out.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Set stores a copy of d under key.
func (r *Registry) Set(key string, d *Descriptor, persistent bool) {
	if d == nil {
		d = New(nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = registryEntry{desc: d.Clone(), persistent: persistent}
}

// Get returns a copy of the descriptor stored under key and whether it is persistent.
func (r *Registry) Get(key string) (*Descriptor, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, false, fmt.Errorf("%w: registry key %q", ErrKeyNotFound, key)
	}
	return e.desc.Clone(), e.persistent, nil
}

// Erase removes key.
func (r *Registry) Erase(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return fmt.Errorf("%w: registry key %q", ErrKeyNotFound, key)
	}
	delete(r.entries, key)
	return nil
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) subset(persistent bool) map[string]*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Descriptor)
	for k, e := range r.entries {
		if e.persistent == persistent {
			out[k] = e.desc.Clone()
		}
	}
	return out
}

// Persistent returns copies of the entries that are written to storage.
func (r *Registry) Persistent() map[string]*Descriptor { return r.subset(true) }

// Session returns copies of the entries that live only for the process lifetime.
func (r *Registry) Session() map[string]*Descriptor { return r.subset(false) }

// Load adds copies of the given entries.
func (r *Registry) Load(entries map[string]*Descriptor, persistent bool) {
	for k, d := range entries {
		r.Set(k, d, persistent)
	}
}

// SessionCache keeps non-persistent registry entries per plug-in for the life of the
// process, so a later invocation of the same plug-in sees them again.
type SessionCache struct {
	mu      sync.Mutex
	plugins map[string]map[string]*Descriptor
}

// NewSessionCache creates an empty cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{plugins: make(map[string]map[string]*Descriptor)}
}

// ProcessCache is the cache shared by every invocation in this process.
var ProcessCache = NewSessionCache()

// Restore loads the cached entries of plugin into r.
func (c *SessionCache) Restore(plugin string, r *Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r.Load(c.plugins[plugin], false)
}

// Save replaces the cached entries of plugin with r's non-persistent entries.
func (c *SessionCache) Save(plugin string, r *Registry) {
	entries := r.Session()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plugins[plugin] = entries
}
