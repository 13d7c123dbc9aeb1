package task

import (
	"time"
)

type Task struct {
	ID          int64     `json:"id" db:"id"`
	OwnerID     int64     `json:"owner_id" db:"owner_id"`
	Description string    `json:"description" db:"description"`
	Completed   bool      `json:"completed" db:"completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const GlyphDone = "✓"
const GlyphPending = "✗"

func (t *Task) StatusGlyph() string {
	if t.Completed {
		return GlyphDone
	}
	return GlyphPending
}
