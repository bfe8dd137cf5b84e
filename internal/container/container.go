// Package container provides the name-keyed mapping used by every folder-like
// component: the pluggable authentication scope, group folders and principal
// folders.
//
// Iteration is ordered by name, the way a B-tree backed folder iterates.
package container

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
)

var (
	// ErrDuplicateID is matched by DuplicateIDError via errors.Is.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound is returned when a name is not present in the container.
	ErrNotFound = errors.New("not found")
)

// DuplicateIDError reports an insertion under a name that is already taken.
type DuplicateIDError struct {
	Name string
	Msg  string
}

func (e *DuplicateIDError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("duplicate id %q", e.Name)
}

// Is makes errors.Is(err, ErrDuplicateID) true for any DuplicateIDError.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// Locatable is implemented by values that want to know which container holds
// them and under which name. Set calls SetLocation after a successful insert.
type Locatable interface {
	SetLocation(parent any, name string)
}

// Container is a name-keyed mapping that rejects duplicate names.
//
// The zero value is not usable; construct with New. Container is safe for
// concurrent use.
type Container[V any] struct {
	mu     sync.RWMutex
	items  map[string]V
	parent any
}

// New creates an empty container. parent is passed to Locatable values as
// their location; it may be nil.
func New[V any](parent any) *Container[V] {
	return &Container[V]{
		items:  make(map[string]V),
		parent: parent,
	}
}

// Get returns the value stored under name.
func (c *Container[V]) Get(name string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[name]
	return v, ok
}

// MustGet returns the value stored under name or ErrNotFound.
func (c *Container[V]) MustGet(name string) (V, error) {
	v, ok := c.Get(name)
	if !ok {
		return v, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v, nil
}

// Contains reports whether name is present.
func (c *Container[V]) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[name]
	return ok
}

// Set inserts value under name. An existing entry is never replaced.
func (c *Container[V]) Set(name string, value V) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	c.mu.Lock()
	if _, exists := c.items[name]; exists {
		c.mu.Unlock()
		return &DuplicateIDError{Name: name}
	}
	c.items[name] = value
	c.mu.Unlock()

	if loc, ok := any(value).(Locatable); ok {
		loc.SetLocation(c.parent, name)
	}
	return nil
}

// Delete removes name and returns the removed value.
func (c *Container[V]) Delete(name string) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[name]
	if !ok {
		return v, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(c.items, name)
	return v, nil
}

// Len returns the number of entries.
func (c *Container[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the names in sorted order.
func (c *Container[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.items))
}

// All iterates over a snapshot of the entries in name order. Mutating the
// container during iteration does not affect the running sequence.
func (c *Container[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		c.mu.RLock()
		names := slices.Sorted(maps.Keys(c.items))
		values := make([]V, len(names))
		for i, name := range names {
			values[i] = c.items[name]
		}
		c.mu.RUnlock()

		for i, name := range names {
			if !yield(name, values[i]) {
				return
			}
		}
	}
}
