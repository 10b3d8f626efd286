package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups search profiles for display purposes.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is a saved search configuration: a set of terms plus optional
// region, modality, and value restrictions.
type Profile struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	CategoryID   uuid.UUID    `json:"category_id"`
	Description  string       `json:"description"`
	MinValue     *float64     `json:"min_value"`
	MaxValue     *float64     `json:"max_value"`
	Regions      []string     `json:"regions"`    // state codes, empty = nationwide
	Modalities   []int        `json:"modalities"` // modality codes, empty = defaults
	Active       bool         `json:"active"`
	SearchToday  bool         `json:"search_today"`
	TotalMatches int          `json:"total_matches"`
	LastRunAt    *time.Time   `json:"last_run_at"`
	Terms        []SearchTerm `json:"terms,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

type TermOrigin string

const (
	TermOriginManual    TermOrigin = "manual"
	TermOriginLearned   TermOrigin = "learned"
	TermOriginSuggested TermOrigin = "suggested"
)

// SearchTerm belongs to exactly one profile. Terms are deactivated rather
// than deleted so history keeps pointing at something real.
type SearchTerm struct {
	ID           uuid.UUID  `json:"id"`
	ProfileID    uuid.UUID  `json:"profile_id"`
	Term         string     `json:"term"` // lowercased, trimmed
	Origin       TermOrigin `json:"origin"`
	Relevance    float64    `json:"relevance"`
	Active       bool       `json:"active"`
	TimesMatched int        `json:"times_matched"`
	TimesUseful  int        `json:"times_useful"`
	CreatedAt    time.Time  `json:"created_at"`
}
