package search

import (
	"context"
	"errors"
	"testing"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type historyRow struct {
	profileID uuid.UUID
	term      string
	results   int
}

// fakeStore is an in-memory Store with the same idempotency rules as the
// real one: bids keyed on id_compra, statuses written once.
type fakeStore struct {
	terms    map[uuid.UUID][]models.SearchTerm
	bidIDs   map[string]uuid.UUID
	statuses map[uuid.UUID]models.BidStatus
	matches  map[string]float64
	termHits map[uuid.UUID]int
	history  []historyRow
	finished map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		terms:    map[uuid.UUID][]models.SearchTerm{},
		bidIDs:   map[string]uuid.UUID{},
		statuses: map[uuid.UUID]models.BidStatus{},
		matches:  map[string]float64{},
		termHits: map[uuid.UUID]int{},
		finished: map[uuid.UUID]int{},
	}
}

func (s *fakeStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]models.Profile, error) {
	return nil, nil
}

func (s *fakeStore) ListActiveTerms(ctx context.Context, profileID uuid.UUID) ([]models.SearchTerm, error) {
	return s.terms[profileID], nil
}

func (s *fakeStore) UpsertBid(ctx context.Context, bid *models.Bid) (uuid.UUID, bool, error) {
	if bid.IDCompra != "" {
		if id, ok := s.bidIDs[bid.IDCompra]; ok {
			return id, false, nil
		}
	}
	id := uuid.New()
	if bid.IDCompra != "" {
		s.bidIDs[bid.IDCompra] = id
	}
	return id, true, nil
}

func (s *fakeStore) UpsertMatch(ctx context.Context, bidID, profileID uuid.UUID, term string, score float64) error {
	s.matches[bidID.String()+"|"+profileID.String()] = score
	return nil
}

func (s *fakeStore) EnsureStatus(ctx context.Context, bidID uuid.UUID, state models.BidState, priority models.Priority) error {
	if _, ok := s.statuses[bidID]; ok {
		return nil
	}
	s.statuses[bidID] = models.BidStatus{BidID: bidID, State: state, Priority: priority}
	return nil
}

func (s *fakeStore) IncrementTermHits(ctx context.Context, termID uuid.UUID, hits int) error {
	s.termHits[termID] += hits
	return nil
}

func (s *fakeStore) AppendSearchHistory(ctx context.Context, profileID uuid.UUID, term string, results int) error {
	s.history = append(s.history, historyRow{profileID: profileID, term: term, results: results})
	return nil
}

func (s *fakeStore) FinishProfileRun(ctx context.Context, profileID uuid.UUID, matched int) error {
	s.finished[profileID] += 1
	return nil
}

func testProfile(store *fakeStore, terms ...string) models.Profile {
	profile := models.Profile{ID: uuid.New(), Name: "Infraestrutura", Active: true}
	for _, tm := range terms {
		store.terms[profile.ID] = append(store.terms[profile.ID], models.SearchTerm{
			ID:        uuid.New(),
			ProfileID: profile.ID,
			Term:      tm,
			Active:    true,
		})
	}
	return profile
}

func asphaltBids() []models.Bid {
	return []models.Bid{
		{IDCompra: "9001", Description: "Fornecimento de asfalto CBUQ para recapeamento"},
		{IDCompra: "9002", Description: "Aquisição de asfalto usinado a quente"},
	}
}

func TestEngine_SecondRunPersistsNothingNew(t *testing.T) {
	store := newFakeStore()
	profile := testProfile(store, "asfalto")
	client := &fakeClient{name: "fake", bids: asphaltBids()}
	engine := NewEngine(store, NewAggregator(zap.NewNop(), client), zap.NewNop())

	first, err := engine.RunForProfile(context.Background(), profile, 7, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Matched != 2 || first.New != 2 {
		t.Fatalf("first run: expected 2 matched / 2 new, got %d / %d", first.Matched, first.New)
	}

	second, err := engine.RunForProfile(context.Background(), profile, 7, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Matched != 2 || second.New != 0 {
		t.Fatalf("second run: expected 2 matched / 0 new, got %d / %d", second.Matched, second.New)
	}
	if len(store.matches) != 1*2 {
		t.Fatalf("expected 2 match rows after both runs, got %d", len(store.matches))
	}
}

func TestEngine_StatusNeverOverwritten(t *testing.T) {
	store := newFakeStore()
	profile := testProfile(store, "asfalto")
	client := &fakeClient{name: "fake", bids: asphaltBids()}
	engine := NewEngine(store, NewAggregator(zap.NewNop(), client), zap.NewNop())

	if _, err := engine.RunForProfile(context.Background(), profile, 7, nil); err != nil {
		t.Fatal(err)
	}

	bidID := store.bidIDs["9001"]
	status := store.statuses[bidID]
	if status.State != models.StateNew {
		t.Fatalf("expected initial state new, got %s", status.State)
	}

	// Operator advances the workflow between runs.
	status.State = models.StatePursuing
	store.statuses[bidID] = status

	if _, err := engine.RunForProfile(context.Background(), profile, 7, nil); err != nil {
		t.Fatal(err)
	}
	if store.statuses[bidID].State != models.StatePursuing {
		t.Fatalf("rerun overwrote operator state, got %s", store.statuses[bidID].State)
	}
}

func TestEngine_HistoryRowPerActiveTerm(t *testing.T) {
	store := newFakeStore()
	profile := testProfile(store, "asfalto", "merenda escolar")
	client := &fakeClient{name: "fake", bids: asphaltBids()}
	engine := NewEngine(store, NewAggregator(zap.NewNop(), client), zap.NewNop())

	if _, err := engine.RunForProfile(context.Background(), profile, 7, nil); err != nil {
		t.Fatal(err)
	}

	if len(store.history) != 2 {
		t.Fatalf("expected one history row per active term, got %d", len(store.history))
	}
	byTerm := map[string]int{}
	for _, row := range store.history {
		byTerm[row.term] = row.results
	}
	if byTerm["asfalto"] != 2 {
		t.Errorf("expected 2 hits for asfalto, got %d", byTerm["asfalto"])
	}
	if hits, ok := byTerm["merenda escolar"]; !ok || hits != 0 {
		t.Errorf("expected zero-hit history row for merenda escolar, got %d (present=%v)", hits, ok)
	}

	terms := store.terms[profile.ID]
	if store.termHits[terms[0].ID] != 2 {
		t.Errorf("expected hit counter 2 for asfalto term, got %d", store.termHits[terms[0].ID])
	}
	if store.termHits[terms[1].ID] != 0 {
		t.Errorf("expected no counter update for zero-hit term, got %d", store.termHits[terms[1].ID])
	}
	if store.finished[profile.ID] != 1 {
		t.Errorf("expected one run bookkeeping call, got %d", store.finished[profile.ID])
	}
}

func TestEngine_NoActiveTermsSkipsSources(t *testing.T) {
	store := newFakeStore()
	profile := models.Profile{ID: uuid.New(), Name: "Vazio", Active: true}
	client := &fakeClient{name: "fake", bids: asphaltBids()}
	engine := NewEngine(store, NewAggregator(zap.NewNop(), client), zap.NewNop())

	res, err := engine.RunForProfile(context.Background(), profile, 7, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != (RunResult{}) {
		t.Fatalf("expected zero result, got %+v", res)
	}
	if client.calls != 0 {
		t.Fatalf("sources should not be queried without active terms, got %d calls", client.calls)
	}
}

func TestEngine_SourceFailureStillMatches(t *testing.T) {
	store := newFakeStore()
	profile := testProfile(store, "asfalto")
	broken := &fakeClient{name: "broken", err: errors.New("boom")}
	healthy := &fakeClient{name: "ok", bids: asphaltBids()}
	engine := NewEngine(store, NewAggregator(zap.NewNop(), broken, healthy), zap.NewNop())

	res, err := engine.RunForProfile(context.Background(), profile, 7, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 2 {
		t.Fatalf("expected matches from the healthy source, got %d", res.Matched)
	}
}

func TestEngine_ProgressReachesCompletion(t *testing.T) {
	store := newFakeStore()
	profile := testProfile(store, "asfalto")
	client := &fakeClient{name: "fake", bids: asphaltBids()}
	engine := NewEngine(store, NewAggregator(zap.NewNop(), client), zap.NewNop())

	var fractions []float64
	progress := func(msg string, fraction float64) {
		fractions = append(fractions, fraction)
	}

	if _, err := engine.RunForProfile(context.Background(), profile, 7, progress); err != nil {
		t.Fatal(err)
	}
	if len(fractions) == 0 || fractions[len(fractions)-1] != 1.0 {
		t.Fatalf("expected progress to end at 1.0, got %v", fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress went backwards: %v", fractions)
		}
	}
}
