package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmbp/licitaflix/internal/models"
	"go.uber.org/zap"
)

// PNCPClient queries the pncp.gov.br consulta API for contracts by
// publication date.
type PNCPClient struct {
	cfg        SourceConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewPNCPClient(reg *Registry, log *zap.Logger) *PNCPClient {
	cfg := reg.Source("pncp")
	return &PNCPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:        log,
	}
}

func (p *PNCPClient) Name() string { return "pncp" }

// pncpPage is the object form of the consulta response. Some deployments
// return a bare JSON array instead; both are tolerated.
type pncpPage struct {
	Data             []map[string]interface{} `json:"data"`
	PaginasRestantes int                      `json:"paginasRestantes"`
}

func (p *PNCPClient) Fetch(ctx context.Context, q Query) ([]models.Bid, error) {
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = p.cfg.MaxPages
	}

	var bids []models.Bid
	for page := 1; page <= maxPages; page++ {
		records, remaining, ok := p.getPage(ctx, q, page)
		for _, rec := range records {
			bids = append(bids, normalizePNCP(rec))
		}
		if !ok || remaining <= 0 {
			break
		}

		delay := time.Duration(p.cfg.PageDelayMS) * time.Millisecond
		if delay > 0 {
			select {
			case <-ctx.Done():
				return bids, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return bids, ctx.Err()
}

// getPage fetches one page. ok=false truncates pagination; records already
// collected by the caller stay valid (partial results, not an error).
func (p *PNCPClient) getPage(ctx context.Context, q Query, page int) ([]map[string]interface{}, int, bool) {
	params := url.Values{}
	params.Set("dataInicial", q.From.Format(isoDate))
	params.Set("dataFinal", q.To.Format(isoDate))
	params.Set("pagina", strconv.Itoa(page))
	params.Set("tamanhoPagina", strconv.Itoa(p.cfg.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/contratacoes/publicacao?"+params.Encode(), nil)
	if err != nil {
		p.log.Warn("pncp request build failed", zap.Error(err))
		return nil, 0, false
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.log.Warn("pncp request failed", zap.Error(err))
		return nil, 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		p.log.Warn("pncp unexpected status", zap.Int("status", resp.StatusCode))
		return nil, 0, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Warn("pncp read failed", zap.Error(err))
		return nil, 0, false
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []map[string]interface{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			p.log.Warn("pncp malformed page", zap.Error(err))
			return nil, 0, false
		}
		// Bare arrays carry no paging metadata; a short page means the end.
		remaining := 0
		if len(records) == p.cfg.PageSize {
			remaining = 1
		}
		return records, remaining, true
	}

	var pageData pncpPage
	if err := json.Unmarshal(trimmed, &pageData); err != nil {
		p.log.Warn("pncp malformed page", zap.Error(err))
		return nil, 0, false
	}
	return pageData.Data, pageData.PaginasRestantes, true
}
