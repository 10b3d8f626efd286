package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmbp/licitaflix/internal/models"
	"go.uber.org/zap"
)

func testRegistry(baseURL string) *Registry {
	return &Registry{
		Sources: map[string]SourceConfig{
			"comprasgov": {BaseURL: baseURL, PageSize: 10, MaxPages: 3, TimeoutSeconds: 5},
			"pncp":       {BaseURL: baseURL, PageSize: 2, MaxPages: 3, TimeoutSeconds: 5},
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encoding response: %v", err)
	}
}

func TestComprasGovClient_FetchNormalizesAllEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/modulo-contratacoes/1_consultarContratacoes_PNCP_14133":
			if got := r.URL.Query().Get("codigoModalidade"); got != "6" {
				t.Errorf("unexpected modality %q", got)
			}
			if got := r.URL.Query().Get("unidadeOrgaoUfSigla"); got != "SP" {
				t.Errorf("unexpected uf %q", got)
			}
			writeJSON(t, w, map[string]interface{}{
				"resultado": []map[string]interface{}{{
					"idCompra":                     "U-1",
					"numeroControlePNCP":           "00000-1/2026",
					"modalidadeNome":               "Pregão - Eletrônico",
					"codigoModalidade":             6,
					"objetoCompra":                 "Fornecimento de asfalto CBUQ",
					"valorTotalEstimado":           1000.5,
					"unidadeOrgaoUfSigla":          "SP",
					"dataEncerramentoPropostaPncp": "2026-03-05T10:00:00",
					"srp":                          true,
				}},
				"paginasRestantes": 0,
			})
		case "/modulo-legado/3_consultarPregoes":
			writeJSON(t, w, map[string]interface{}{
				"resultado": []map[string]interface{}{{
					"id_compra":         "P-1",
					"tx_objeto":         "Aquisição de emulsão asfáltica",
					"vl_estimado_total": "1500,75",
				}},
				"paginasRestantes": 0,
			})
		case "/modulo-legado/1_consultarLicitacao":
			writeJSON(t, w, map[string]interface{}{
				"resultado": []map[string]interface{}{{
					"id_compra":       "L-1",
					"objeto":          "Serviços de tapa-buraco",
					"nome_modalidade": "Tomada de Preços",
				}},
				"paginasRestantes": 0,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewComprasGovClient(testRegistry(srv.URL), zap.NewNop())
	bids, err := client.Fetch(context.Background(), Query{
		From:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		Regions:    []string{"SP"},
		Modalities: []int{6},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(bids) != 3 {
		t.Fatalf("expected 3 bids across endpoints, got %d", len(bids))
	}

	bySource := map[models.Source]models.Bid{}
	for _, b := range bids {
		bySource[b.Source] = b
	}

	unified := bySource[models.SourceUnified]
	if unified.IDCompra != "U-1" || unified.UF != "SP" || !unified.Recurring {
		t.Errorf("unified record mapped wrong: %+v", unified)
	}
	if unified.EstimatedValue == nil || *unified.EstimatedValue != 1000.5 {
		t.Errorf("unified estimated value mapped wrong: %v", unified.EstimatedValue)
	}
	if unified.ProposalCloseAt == nil {
		t.Error("unified close date not parsed")
	}

	auction := bySource[models.SourceLegacyAuction]
	if auction.IDCompra != "P-1" || auction.Modality != "Pregão" {
		t.Errorf("auction record mapped wrong: %+v", auction)
	}
	if auction.EstimatedValue == nil || *auction.EstimatedValue != 1500.75 {
		t.Errorf("comma decimal not coerced: %v", auction.EstimatedValue)
	}

	legacy := bySource[models.SourceLegacyBidding]
	if legacy.IDCompra != "L-1" || legacy.Modality != "Tomada de Preços" {
		t.Errorf("legacy record mapped wrong: %+v", legacy)
	}
}

func TestComprasGovClient_PaginationStopsOnError(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/modulo-legado/1_consultarLicitacao" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		pages++
		if r.URL.Query().Get("pagina") != "1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(t, w, map[string]interface{}{
			"resultado":        []map[string]interface{}{{"id_compra": "L-1", "objeto": "obj"}},
			"paginasRestantes": 5,
		})
	}))
	defer srv.Close()

	client := NewComprasGovClient(testRegistry(srv.URL), zap.NewNop())
	bids, err := client.Fetch(context.Background(), Query{
		From:       time.Now().AddDate(0, 0, -7),
		To:         time.Now(),
		Modalities: []int{6},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Page 1 succeeded, page 2 failed; the partial page survives.
	if pages != 2 {
		t.Fatalf("expected pagination to stop after the failing page, got %d requests", pages)
	}
	if len(bids) != 1 || bids[0].IDCompra != "L-1" {
		t.Fatalf("expected the partial page's record, got %+v", bids)
	}
}

func TestPNCPClient_ObjectAndArrayResponses(t *testing.T) {
	record := map[string]interface{}{
		"numeroControlePNCP": "00038-1/2026",
		"objetoCompra":       "Pavimentação asfáltica",
		"orgaoEntidade":      map[string]interface{}{"razaoSocial": "Prefeitura de Sorocaba"},
		"unidadeOrgao":       map[string]interface{}{"ufSigla": "SP", "municipioNome": "Sorocaba"},
	}

	for _, tt := range []struct {
		name string
		body func(w http.ResponseWriter)
	}{
		{
			name: "object form",
			body: func(w http.ResponseWriter) {
				writeJSON(t, w, map[string]interface{}{
					"data":             []map[string]interface{}{record},
					"paginasRestantes": 0,
				})
			},
		},
		{
			name: "bare array form",
			body: func(w http.ResponseWriter) {
				writeJSON(t, w, []map[string]interface{}{record})
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/contratacoes/publicacao" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				tt.body(w)
			}))
			defer srv.Close()

			client := NewPNCPClient(testRegistry(srv.URL), zap.NewNop())
			bids, err := client.Fetch(context.Background(), Query{
				From: time.Now().AddDate(0, 0, -7),
				To:   time.Now(),
			})
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(bids) != 1 {
				t.Fatalf("expected 1 bid, got %d", len(bids))
			}

			bid := bids[0]
			if bid.Source != models.SourcePNCP {
				t.Errorf("expected pncp source, got %s", bid.Source)
			}
			if bid.IDCompra != "00038-1/2026" || bid.PNCPControl != "00038-1/2026" {
				t.Errorf("control number mapped wrong: %+v", bid)
			}
			if bid.Agency != "Prefeitura de Sorocaba" || bid.UF != "SP" {
				t.Errorf("nested org fields mapped wrong: %+v", bid)
			}
		})
	}
}
