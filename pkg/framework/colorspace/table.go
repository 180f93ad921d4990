package colorspace

import (
	"errors"
	"fmt"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrUnknownColor is returned for color ids that were never made or are deleted.
var ErrUnknownColor = errors.New("colorspace: unknown color id")

// ID is the opaque color id handed to the plug-in by the color space suite.
type ID uintptr

type entry struct {
	color  colorful.Color
	native Space
}

// Table holds the colors a plug-in made through the color space suite.
type Table struct {
	mu     sync.Mutex
	next   ID
	colors map[ID]*entry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{colors: make(map[ID]*entry)}
}

// Make creates a black RGB color.
func (t *Table) Make() ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.colors[t.next] = &entry{native: RGB}
	return t.next
}

// Delete removes a color.
func (t *Table) Delete(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.colors[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownColor, id)
	}
	delete(t.colors, id)
	return nil
}

func (t *Table) get(id ID) (*entry, error) {
	e, ok := t.colors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownColor, id)
	}
	return e, nil
}

// Stuff sets the color from components in space s, which becomes its native space.
func (t *Table) Stuff(id ID, s Space, u Unit) error {
	c, err := Decode(s, u)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.get(id)
	if err != nil {
		return err
	}
	e.color, e.native = c, s
	return nil
}

// Extract returns the color's components in space s.
func (t *Table) Extract(id ID, s Space) (Unit, error) {
	t.mu.Lock()
	e, err := t.get(id)
	var c colorful.Color
	if err == nil {
		c = e.color
	}
	t.mu.Unlock()
	if err != nil {
		return Unit{}, err
	}
	u, err := Encode(s, c.Clamped())
	if err != nil {
		return Unit{}, err
	}
	for i := range u {
		u[i] = clamp01(u[i])
	}
	return u, nil
}

// Native returns the space the color was last stuffed in.
func (t *Table) Native(id ID) (Space, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.get(id)
	if err != nil {
		return 0, err
	}
	return e.native, nil
}

// Len returns the number of live colors.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.colors)
}
