// Package types provides common types used across the membership ledger.
package types

import "time"

// Entity is the base type for stored entities with timestamps.
// Timestamps come from the engine clock rather than time.Now so that a
// single operation stamps every row it touches with the same instant.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped at now (normalized to UTC).
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}

// Age returns how long before now the entity was created.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
