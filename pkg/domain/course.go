package domain

import "time"

// Entity is a persisted record addressed by a numeric surrogate key. A zero key
// marks an entity that has not been stored yet.
type Entity interface {
	Key() int64
	SetKey(id int64)
}

// Course is a training course offered by the catalog.
type Course struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	BeginDate time.Time `json:"begin_date"`
	EndDate   time.Time `json:"end_date"`
	Fee       int       `json:"fee"`
}

// Normalizer is implemented by entities that canonicalise their fields before
// they are written, so that a reload compares equal to what was stored.
type Normalizer interface {
	Normalize()
}

var (
	_ Entity     = (*Course)(nil)
	_ Normalizer = (*Course)(nil)
)

// Key returns the course surrogate key.
func (c *Course) Key() int64 { return c.ID }

// SetKey assigns the course surrogate key.
func (c *Course) SetKey(id int64) { c.ID = id }

// Normalize moves both dates to UTC and drops any monotonic clock reading.
func (c *Course) Normalize() {
	c.BeginDate = c.BeginDate.UTC()
	c.EndDate = c.EndDate.UTC()
}

// CloneCourse returns an independent copy of the course.
func CloneCourse(c *Course) *Course {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
