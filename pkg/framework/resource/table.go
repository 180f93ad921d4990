// Package resource holds the pseudo-resources a plug-in stores alongside its parameters.
//
// Entries are grouped by type. Within a type, indices are 0-based, dense and in insertion
// order; deleting an entry shifts every later entry of that type down by one.
package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// ErrNotFound is returned for a (type, index) pair with no entry.
var ErrNotFound = errors.New("resource: not found")

// Entry is one pseudo-resource.
type Entry struct {
	Type filterapi.OSType
	Data []byte
}

// Table is a per-invocation pseudo-resource table.
type Table struct {
	mu     sync.RWMutex
	order  []filterapi.OSType
	byType map[filterapi.OSType][][]byte
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byType: make(map[filterapi.OSType][][]byte)}
}

// Count returns the number of entries of type t.
func (r *Table) Count(t filterapi.OSType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType[t])
}

// Get returns a copy of entry index of type t.
func (r *Table) Get(t filterapi.OSType, index int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byType[t]
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %s #%d", ErrNotFound, t, index)
	}
	return clone(list[index]), nil
}

// Add appends a copy of data and returns its index.
func (r *Table) Add(t filterapi.OSType, data []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byType[t]; !ok {
		r.order = append(r.order, t)
	}
	r.byType[t] = append(r.byType[t], clone(data))
	return len(r.byType[t]) - 1
}

// Delete removes entry index of type t and closes the gap.
func (r *Table) Delete(t filterapi.OSType, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byType[t]
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: %s #%d", ErrNotFound, t, index)
	}
	r.byType[t] = append(list[:index:index], list[index+1:]...)
	return nil
}

// Types returns the types present, in first-insertion order.
func (r *Table) Types() []filterapi.OSType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []filterapi.OSType
	for _, t := range r.order {
		if len(r.byType[t]) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Entries returns a copy of every entry, grouped by type in first-insertion order.
func (r *Table) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, t := range r.order {
		for _, data := range r.byType[t] {
			out = append(out, Entry{Type: t, Data: clone(data)})
		}
	}
	return out
}

// Load replaces the table's content with entries.
func (r *Table) Load(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.byType = make(map[filterapi.OSType][][]byte)
	for _, e := range entries {
		if _, ok := r.byType[e.Type]; !ok {
			r.order = append(r.order, e.Type)
		}
		r.byType[e.Type] = append(r.byType[e.Type], clone(e.Data))
	}
}

// Len returns the total number of entries.
func (r *Table) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, list := range r.byType {
		n += len(list)
	}
	return n
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append([]byte(nil), b...)
}
