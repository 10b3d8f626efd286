package search

import (
	"context"

	"github.com/dmbp/licitaflix/internal/models"
	"go.uber.org/zap"
)

// Aggregator fans a query out to every configured source client and merges
// the results into one deduplicated slice.
type Aggregator struct {
	clients []SourceClient
	log     *zap.Logger
}

func NewAggregator(log *zap.Logger, clients ...SourceClient) *Aggregator {
	return &Aggregator{clients: clients, log: log}
}

// Collect queries all clients sequentially. A failing client is logged and
// skipped; one broken source must never abort the whole run.
func (a *Aggregator) Collect(ctx context.Context, q Query) []models.Bid {
	var all []models.Bid

	for _, client := range a.clients {
		bids, err := client.Fetch(ctx, q)
		all = append(all, bids...)
		if err != nil {
			a.log.Warn("source client failed",
				zap.String("source", client.Name()),
				zap.Int("partial", len(bids)),
				zap.Error(err))
		}
	}

	return DedupBids(all)
}

// DedupBids removes repeated records by id_compra, first occurrence wins.
// Records without an identifier are all retained: identity cannot be
// established, so none of them can be declared a duplicate of another.
func DedupBids(bids []models.Bid) []models.Bid {
	seen := make(map[string]bool, len(bids))
	out := make([]models.Bid, 0, len(bids))

	for _, bid := range bids {
		if bid.IDCompra == "" {
			out = append(out, bid)
			continue
		}
		if seen[bid.IDCompra] {
			continue
		}
		seen[bid.IDCompra] = true
		out = append(out, bid)
	}

	return out
}
