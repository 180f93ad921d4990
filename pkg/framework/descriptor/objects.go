package descriptor

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidToken is returned for tokens that were never issued or are already freed.
var ErrInvalidToken = errors.New("descriptor: invalid token")

// Token is the opaque non-zero value a plug-in holds for a descriptor, list, reference or
// read/write cursor.
type Token uintptr

// Objects issues tokens for the objects a plug-in manipulates through the suites.
type Objects struct {
	mu      sync.Mutex
	next    Token
	objects map[Token]any
}

// NewObjects creates an empty token table.
func NewObjects() *Objects {
	return &Objects{objects: make(map[Token]any)}
}

// Put issues a token for obj.
func (o *Objects) Put(obj any) Token {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.objects[o.next] = obj
	return o.next
}

func lookup[T any](o *Objects, t Token) (T, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var zero T
	obj, ok := o.objects[t]
	if !ok {
		return zero, fmt.Errorf("%w: %d", ErrInvalidToken, t)
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %d is a %T", ErrInvalidToken, t, obj)
	}
	return v, nil
}

func (o *Objects) Descriptor(t Token) (*Descriptor, error) { return lookup[*Descriptor](o, t) }
func (o *Objects) List(t Token) (*List, error)             { return lookup[*List](o, t) }
func (o *Objects) Reference(t Token) (*Reference, error)   { return lookup[*Reference](o, t) }
func (o *Objects) ReadCursor(t Token) (*ReadCursor, error) { return lookup[*ReadCursor](o, t) }
func (o *Objects) WriteCursor(t Token) (*WriteCursor, error) {
	return lookup[*WriteCursor](o, t)
}

// Free drops a token.
func (o *Objects) Free(t Token) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.objects[t]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidToken, t)
	}
	delete(o.objects, t)
	return nil
}

// Len returns the number of live tokens.
func (o *Objects) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

// Reset drops every token and returns how many were live.
func (o *Objects) Reset() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.objects)
	o.objects = make(map[Token]any)
	return n
}
