package search

import (
	"testing"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/google/uuid"
)

func term(s string) models.SearchTerm {
	return models.SearchTerm{ID: uuid.New(), Term: s, Active: true}
}

func TestMatchBids_SubstringTermAccepted(t *testing.T) {
	bids := []models.Bid{{
		IDCompra:    "1001",
		Description: "Fornecimento de asfalto CBUQ para recapeamento de vias urbanas",
	}}

	got := MatchBids(bids, []models.SearchTerm{term("asfalto")}, MinScore)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Term.Term != "asfalto" {
		t.Fatalf("expected term asfalto, got %s", got[0].Term.Term)
	}
	if got[0].Score < 0.6 || got[0].Score > 1.0 {
		t.Fatalf("score out of range: %f", got[0].Score)
	}
}

func TestMatchBids_UnrelatedTermRejected(t *testing.T) {
	bids := []models.Bid{{
		IDCompra:    "1001",
		Description: "Fornecimento de asfalto CBUQ para recapeamento de vias urbanas",
	}}

	got := MatchBids(bids, []models.SearchTerm{term("consultoria tributaria")}, MinScore)
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d (score %f)", len(got), got[0].Score)
	}
}

func TestMatchBids_BestTermWins(t *testing.T) {
	bids := []models.Bid{{
		IDCompra:    "2002",
		Description: "Aquisição de asfalto CBUQ usinado a quente",
	}}
	terms := []models.SearchTerm{term("merenda escolar"), term("asfalto cbuq")}

	got := MatchBids(bids, terms, MinScore)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Term.Term != "asfalto cbuq" {
		t.Fatalf("expected best term asfalto cbuq, got %s", got[0].Term.Term)
	}
}

func TestMatchBids_CaseInsensitive(t *testing.T) {
	bids := []models.Bid{{
		IDCompra:    "3003",
		Description: "contratação de empresa para fornecimento de ASFALTO",
	}}

	got := MatchBids(bids, []models.SearchTerm{term("Asfalto")}, MinScore)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
}

func TestMatchBids_EmptyDescriptionSkipped(t *testing.T) {
	bids := []models.Bid{
		{IDCompra: "4004", Description: "   "},
		{IDCompra: "4005", Description: ""},
	}

	got := MatchBids(bids, []models.SearchTerm{term("asfalto")}, MinScore)
	if len(got) != 0 {
		t.Fatalf("expected no candidates for blank descriptions, got %d", len(got))
	}
}

func TestMatchBids_InactiveTermsIgnored(t *testing.T) {
	bids := []models.Bid{{IDCompra: "5005", Description: "Fornecimento de asfalto"}}
	inactive := models.SearchTerm{ID: uuid.New(), Term: "asfalto", Active: false}

	got := MatchBids(bids, []models.SearchTerm{inactive}, MinScore)
	if got != nil {
		t.Fatalf("expected nil result with no active terms, got %d candidates", len(got))
	}
}
