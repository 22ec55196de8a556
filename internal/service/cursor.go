package service

import (
	"sync"

	"taskboard/internal/models"
)

// Cursor tracks the highest update id consumed from getUpdates. It never moves backwards.
type Cursor struct {
	mu    sync.Mutex
	value int
}

func NewCursor(start int) *Cursor {
	if start < models.NoCursor {
		start = models.NoCursor
	}
	return &Cursor{value: start}
}

// Advance moves the cursor to id if id is ahead and reports whether it moved.
func (c *Cursor) Advance(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id <= c.value {
		return false
	}
	c.value = id
	return true
}

func (c *Cursor) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Offset is the getUpdates offset that acknowledges everything up to the cursor.
func (c *Cursor) Offset() int {
	return c.Value() + 1
}
