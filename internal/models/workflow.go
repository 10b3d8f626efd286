package models

import (
	"time"

	"github.com/google/uuid"
)

type BidState string

const (
	StateNew       BidState = "new"
	StateReviewing BidState = "reviewing"
	StatePursuing  BidState = "pursuing"
	StateDiscarded BidState = "discarded"
	StateWon       BidState = "won"
	StateLost      BidState = "lost"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// BidStatus is the one-to-one workflow record for a bid. The engine creates it
// with state=new at first match; afterwards only operator actions mutate it.
type BidStatus struct {
	BidID     uuid.UUID `json:"bid_id"`
	State     BidState  `json:"state"`
	Priority  Priority  `json:"priority"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BidMatch links a bid to a profile, composite-unique on (bid, profile).
// It records the winning term and the normalized score in [0,1].
type BidMatch struct {
	ID        uuid.UUID `json:"id"`
	BidID     uuid.UUID `json:"bid_id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Term      string    `json:"term"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchHistoryEntry is an append-only record, one per term per run, so the
// rate of dead terms stays observable.
type SearchHistoryEntry struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Term      string    `json:"term"`
	Results   int       `json:"results"`
	Useful    int       `json:"useful"`
	CreatedAt time.Time `json:"created_at"`
}

// TermSuggestion is a candidate term surfaced from frequent description
// substrings. Accepted is tri-state: nil means pending review.
type TermSuggestion struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Term      string    `json:"term"`
	Frequency int       `json:"frequency"`
	Accepted  *bool     `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}
