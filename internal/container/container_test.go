package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type located struct {
	parent any
	name   string
}

func (l *located) SetLocation(parent any, name string) {
	l.parent = parent
	l.name = name
}

func TestContainer_SetRejectsDuplicates(t *testing.T) {
	c := New[int](nil)
	require.NoError(t, c.Set("a", 1))

	err := c.Set("a", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v, "existing entry must not be replaced")
}

func TestContainer_SetEmptyName(t *testing.T) {
	c := New[int](nil)
	assert.Error(t, c.Set("", 1))
	assert.Equal(t, 0, c.Len())
}

func TestContainer_OrderedIteration(t *testing.T) {
	c := New[string](nil)
	for _, name := range []string{"zpug", "editors", "reviewers"} {
		require.NoError(t, c.Set(name, name+"-value"))
	}

	assert.Equal(t, []string{"editors", "reviewers", "zpug"}, c.Keys())

	var seen []string
	for name, value := range c.All() {
		seen = append(seen, name)
		assert.Equal(t, name+"-value", value)
	}
	assert.Equal(t, []string{"editors", "reviewers", "zpug"}, seen)
}

func TestContainer_DeleteAndMustGet(t *testing.T) {
	c := New[int](nil)
	require.NoError(t, c.Set("a", 1))

	v, err := c.Delete("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.False(t, c.Contains("a"))

	_, err = c.Delete("a")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.MustGet("a")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestContainer_SetLocation(t *testing.T) {
	owner := struct{ name string }{"owner"}
	c := New[*located](&owner)

	item := &located{}
	require.NoError(t, c.Set("item", item))
	assert.Equal(t, "item", item.name)
	assert.Same(t, &owner, item.parent)

	dup := &located{}
	require.Error(t, c.Set("item", dup))
	assert.Empty(t, dup.name, "rejected values are not located")
}
