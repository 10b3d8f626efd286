package db

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBuildBidFilter_Empty(t *testing.T) {
	where, args, next := buildBidFilter(BidListParams{})

	if where != "WHERE 1=1" {
		t.Fatalf("unexpected clause: %s", where)
	}
	if len(args) != 0 || next != 1 {
		t.Fatalf("expected no args, got %d (next=%d)", len(args), next)
	}
}

func TestBuildBidFilter_AllFilters(t *testing.T) {
	profileID := uuid.New()
	where, args, next := buildBidFilter(BidListParams{
		State:     "pursuing",
		Priority:  "urgent",
		ProfileID: &profileID,
		Source:    "pncp",
		UF:        "sp",
		Query:     "asfalto",
		MinValue:  1000,
		MaxValue:  50000,
	})

	mustContain := []string{
		"COALESCE(st.state, 'new') = $1",
		"COALESCE(st.priority, 'normal') = $2",
		"pm.profile_id = $3",
		"b.source = $4",
		"b.uf = $5",
		"b.description ILIKE",
		"b.estimated_value >= $7",
		"b.estimated_value <= $8",
	}
	for _, token := range mustContain {
		if !strings.Contains(where, token) {
			t.Fatalf("clause missing token %q: %s", token, where)
		}
	}

	if len(args) != 8 || next != 9 {
		t.Fatalf("expected 8 args and next=9, got %d and %d", len(args), next)
	}
	if args[4] != "SP" {
		t.Fatalf("uf must be uppercased, got %v", args[4])
	}
}

func TestBuildBidFilter_UnfilteredStatesDefaultToNew(t *testing.T) {
	where, _, _ := buildBidFilter(BidListParams{State: "new"})

	// Bids without a status row count as new.
	if !strings.Contains(where, "COALESCE(st.state, 'new')") {
		t.Fatalf("state filter must treat missing status rows as new: %s", where)
	}
}
