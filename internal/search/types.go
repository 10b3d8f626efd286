package search

import (
	"context"
	"time"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/google/uuid"
)

// Query is the date window plus the optional filters a profile imposes.
// The underlying APIs only accept a single state per request, so clients
// issue one request per entry in Regions when it is non-empty.
type Query struct {
	From       time.Time
	To         time.Time
	Regions    []string // state codes, empty = nationwide
	Modalities []int    // Lei 14.133 modality codes, empty = registry defaults
	MaxPages   int      // per-endpoint pagination cap, 0 = source default
}

// SourceClient adapts one upstream API to the canonical Bid shape.
// Implementations do field mapping and pagination only; no filtering or
// scoring. A network or non-200 failure truncates pagination and whatever was
// already collected is returned, so partial results are not an error.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]models.Bid, error)
}

// ProgressFunc receives progress updates between pipeline stages. It is called
// synchronously and must return quickly; a nil callback is valid.
type ProgressFunc func(message string, fraction float64)

// RunResult summarizes one profile run.
type RunResult struct {
	Matched   int `json:"matched"`    // bids accepted this run
	New       int `json:"new"`        // bids persisted for the first time
	TermsUsed int `json:"terms_used"` // active terms evaluated
	Fetched   int `json:"fetched"`    // deduplicated bids returned by the sources
}

// ProfileResult is one entry of a batch run. Err carries a profile-level
// failure without stopping the rest of the batch.
type ProfileResult struct {
	Profile string `json:"profile"`
	RunResult
	Err string `json:"error,omitempty"`
}

// BatchResult aggregates a category-wide or flagged-profiles run.
type BatchResult struct {
	TotalMatched int             `json:"total_matched"`
	TotalNew     int             `json:"total_new"`
	Profiles     []ProfileResult `json:"profiles"`
}

// ProfileFilter selects which profiles a batch run covers.
type ProfileFilter struct {
	CategoryID  *uuid.UUID
	SearchToday bool
	ActiveOnly  bool
}

// Store is the persistence gateway the engine depends on. All operations are
// idempotent except AppendSearchHistory, which is append-only.
type Store interface {
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]models.Profile, error)
	ListActiveTerms(ctx context.Context, profileID uuid.UUID) ([]models.SearchTerm, error)

	// UpsertBid persists a bid keyed on id_compra and reports whether the row
	// was newly inserted.
	UpsertBid(ctx context.Context, bid *models.Bid) (uuid.UUID, bool, error)
	// UpsertMatch links a bid to a profile, composite-unique on (bid, profile).
	UpsertMatch(ctx context.Context, bidID, profileID uuid.UUID, term string, score float64) error
	// EnsureStatus creates the initial workflow record; it never overwrites an
	// existing one.
	EnsureStatus(ctx context.Context, bidID uuid.UUID, state models.BidState, priority models.Priority) error

	IncrementTermHits(ctx context.Context, termID uuid.UUID, hits int) error
	AppendSearchHistory(ctx context.Context, profileID uuid.UUID, term string, results int) error
	FinishProfileRun(ctx context.Context, profileID uuid.UUID, matched int) error
}
