package search

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// fakeClient is a canned SourceClient shared by the aggregator and engine
// tests.
type fakeClient struct {
	name  string
	bids  []models.Bid
	err   error
	calls int
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Fetch(ctx context.Context, q Query) ([]models.Bid, error) {
	f.calls++
	return f.bids, f.err
}

func TestDedupBids_FirstOccurrenceWins(t *testing.T) {
	bids := []models.Bid{
		{IDCompra: "100", Description: "first"},
		{IDCompra: "200", Description: "other"},
		{IDCompra: "100", Description: "second"},
	}

	got := DedupBids(bids)
	if len(got) != 2 {
		t.Fatalf("expected 2 bids, got %d", len(got))
	}
	if got[0].Description != "first" {
		t.Fatalf("expected first occurrence kept, got %q", got[0].Description)
	}
}

func TestDedupBids_EmptyIDsAllRetained(t *testing.T) {
	bids := []models.Bid{
		{IDCompra: "", Description: "a"},
		{IDCompra: "", Description: "b"},
		{IDCompra: "", Description: "c"},
	}

	got := DedupBids(bids)
	if len(got) != 3 {
		t.Fatalf("expected all 3 unidentified bids retained, got %d", len(got))
	}
}

func TestCollect_FailingClientIsolated(t *testing.T) {
	healthy := &fakeClient{name: "ok", bids: []models.Bid{{IDCompra: "1"}}}
	broken := &fakeClient{
		name: "broken",
		bids: []models.Bid{{IDCompra: "2"}}, // partial results before the failure
		err:  errors.New("upstream timeout"),
	}

	agg := NewAggregator(zap.NewNop(), broken, healthy)
	got := agg.Collect(context.Background(), Query{})

	if len(got) != 2 {
		t.Fatalf("expected partial plus healthy results, got %d bids", len(got))
	}
	if healthy.calls != 1 {
		t.Fatalf("healthy client should still be queried after a failure")
	}
}

func TestDedupBids_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genIDs := gen.SliceOf(gen.OneConstOf("", "a", "b", "c", "d", "e"))

	properties.Property("non-empty ids appear exactly once", prop.ForAll(
		func(ids []string) bool {
			got := DedupBids(bidsFromIDs(ids))
			seen := map[string]int{}
			for _, b := range got {
				if b.IDCompra != "" {
					seen[b.IDCompra]++
				}
			}
			for _, n := range seen {
				if n != 1 {
					return false
				}
			}
			return true
		},
		genIDs,
	))

	properties.Property("every empty-id record survives", prop.ForAll(
		func(ids []string) bool {
			in, out := 0, 0
			for _, id := range ids {
				if id == "" {
					in++
				}
			}
			for _, b := range DedupBids(bidsFromIDs(ids)) {
				if b.IDCompra == "" {
					out++
				}
			}
			return in == out
		},
		genIDs,
	))

	properties.Property("output preserves input order", prop.ForAll(
		func(ids []string) bool {
			got := DedupBids(bidsFromIDs(ids))
			pos := -1
			for _, b := range got {
				n, err := strconv.Atoi(b.Description)
				if err != nil || n <= pos {
					return false
				}
				pos = n
			}
			return true
		},
		genIDs,
	))

	properties.TestingRun(t)
}

// bidsFromIDs builds bids whose description records the input position.
func bidsFromIDs(ids []string) []models.Bid {
	bids := make([]models.Bid, len(ids))
	for i, id := range ids {
		bids[i] = models.Bid{IDCompra: id, Description: strconv.Itoa(i)}
	}
	return bids
}
