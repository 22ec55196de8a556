package service

import (
	"testing"

	"taskboard/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCursor_OnlyMovesForward(t *testing.T) {
	c := NewCursor(models.NoCursor)
	assert.Equal(t, -1, c.Value())
	assert.Equal(t, 0, c.Offset())

	for _, id := range []int{5, 3, 8} {
		c.Advance(id)
	}
	assert.Equal(t, 8, c.Value())
	assert.Equal(t, 9, c.Offset())

	assert.False(t, c.Advance(8))
	assert.False(t, c.Advance(2))
	assert.True(t, c.Advance(9))
}

func TestNewCursor_ClampsBelowSentinel(t *testing.T) {
	assert.Equal(t, models.NoCursor, NewCursor(-10).Value())
	assert.Equal(t, 4, NewCursor(4).Value())
}
