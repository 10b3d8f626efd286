package search

import (
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

const isoDate = "2006-01-02"

// ComprasGovClient queries the dadosabertos.compras.gov.br API: legacy
// biddings (Lei 8.666), legacy auctions (pregões) and Lei 14.133 contracts.
type ComprasGovClient struct {
	cfg        SourceConfig
	modalities []int // defaults when the query has no restriction
	httpClient *http.Client
	log        *zap.Logger
}

func NewComprasGovClient(reg *Registry, log *zap.Logger) *ComprasGovClient {
	cfg := reg.Source("comprasgov")
	return &ComprasGovClient{
		cfg:        cfg,
		modalities: reg.DefaultModalities(),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:        log,
	}
}

func (c *ComprasGovClient) Name() string { return "comprasgov" }

// Fetch collects bids from the three ComprasGov endpoints for the query
// window. The Lei 14.133 endpoint takes a single modality and a single state
// per request, so it is queried once per combination; the legacy endpoints
// have no region filter and are queried once regardless of q.Regions.
func (c *ComprasGovClient) Fetch(ctx context.Context, q Query) ([]models.Bid, error) {
	var bids []models.Bid

	mods := q.Modalities
	if len(mods) == 0 {
		mods = c.modalities
	}
	regions := q.Regions
	if len(regions) == 0 {
		regions = []string{""}
	}

	for _, uf := range regions {
		for i, mod := range mods {
			if i > 0 && !c.pause(ctx, time.Duration(c.cfg.ModalityDelayMS)*time.Millisecond) {
				return bids, ctx.Err()
			}

			params := url.Values{}
			params.Set("dataPublicacaoPncpInicial", q.From.Format(isoDate))
			params.Set("dataPublicacaoPncpFinal", q.To.Format(isoDate))
			params.Set("codigoModalidade", strconv.Itoa(mod))
			if uf != "" {
				params.Set("unidadeOrgaoUfSigla", uf)
			}

			for _, rec := range c.getPaged(ctx, "/modulo-contratacoes/1_consultarContratacoes_PNCP_14133", params, c.maxPages(q)) {
				bids = append(bids, normalizeUnified(rec))
			}
		}
	}

	params := url.Values{}
	params.Set("dt_data_edital_inicial", q.From.Format(isoDate))
	params.Set("dt_data_edital_final", q.To.Format(isoDate))
	for _, rec := range c.getPaged(ctx, "/modulo-legado/3_consultarPregoes", params, c.maxPages(q)) {
		bids = append(bids, normalizeAuction(rec))
	}

	params = url.Values{}
	params.Set("data_publicacao_inicial", q.From.Format(isoDate))
	params.Set("data_publicacao_final", q.To.Format(isoDate))
	for _, rec := range c.getPaged(ctx, "/modulo-legado/1_consultarLicitacao", params, c.maxPages(q)) {
		bids = append(bids, normalizeLegacy(rec))
	}

	return bids, ctx.Err()
}

func (c *ComprasGovClient) maxPages(q Query) int {
	if q.MaxPages > 0 {
		return q.MaxPages
	}
	return c.cfg.MaxPages
}

type comprasPage struct {
	Resultado        []map[string]interface{} `json:"resultado"`
	PaginasRestantes int                      `json:"paginasRestantes"`
}

// getPaged walks an endpoint's pages up to maxPages. Any network error,
// non-200 response or malformed page truncates pagination; whatever was
// already collected is returned. Partial results are acceptable, not an error.
func (c *ComprasGovClient) getPaged(ctx context.Context, endpoint string, params url.Values, maxPages int) []map[string]interface{} {
	var out []map[string]interface{}

	for page := 1; page <= maxPages; page++ {
		params.Set("pagina", strconv.Itoa(page))
		params.Set("tamanhoPagina", strconv.Itoa(c.cfg.PageSize))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint+"?"+params.Encode(), nil)
		if err != nil {
			c.log.Warn("comprasgov request build failed", zap.String("endpoint", endpoint), zap.Error(err))
			break
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("comprasgov request failed", zap.String("endpoint", endpoint), zap.Error(err))
			break
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.log.Warn("comprasgov unexpected status", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
			break
		}

		var pageData comprasPage
		err = json.NewDecoder(resp.Body).Decode(&pageData)
		resp.Body.Close()
		if err != nil {
			c.log.Warn("comprasgov malformed page", zap.String("endpoint", endpoint), zap.Error(err))
			break
		}
		if len(pageData.Resultado) == 0 {
			break
		}

		out = append(out, pageData.Resultado...)

		if pageData.PaginasRestantes <= 0 {
			break
		}
		if !c.pause(ctx, time.Duration(c.cfg.PageDelayMS)*time.Millisecond) {
			break
		}
	}

	return out
}

// pause sleeps for the inter-request throttle, honoring cancellation.
func (c *ComprasGovClient) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
