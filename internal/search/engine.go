package search

import (
	"context"
	"fmt"
	"time"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLookbackDays is the query window when the caller gives none.
const DefaultLookbackDays = 7

// Engine runs the full pipeline for a profile: fetch, match, classify,
// persist, record history.
type Engine struct {
	store    Store
	agg      *Aggregator
	log      *zap.Logger
	minScore int
	now      func() time.Time
}

func NewEngine(store Store, agg *Aggregator, log *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		agg:      agg,
		log:      log,
		minScore: MinScore,
		now:      time.Now,
	}
}

// RunForProfile executes one search run for a single profile. A profile with
// no active terms yields a zero result without touching the sources. Per-bid
// persistence failures are logged and skipped so one bad record cannot sink
// the run.
func (e *Engine) RunForProfile(ctx context.Context, profile models.Profile, lookbackDays int, progress ProgressFunc) (RunResult, error) {
	if progress == nil {
		progress = func(string, float64) {}
	}
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	terms, err := e.store.ListActiveTerms(ctx, profile.ID)
	if err != nil {
		return RunResult{}, fmt.Errorf("listing terms for profile %s: %w", profile.Name, err)
	}
	if len(terms) == 0 {
		e.log.Info("profile has no active terms, skipping",
			zap.String("profile", profile.Name))
		return RunResult{}, nil
	}

	now := e.now()
	q := Query{
		From:       now.AddDate(0, 0, -lookbackDays),
		To:         now,
		Regions:    profile.Regions,
		Modalities: profile.Modalities,
	}

	progress("consultando fontes", 0.1)
	bids := e.agg.Collect(ctx, q)
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}

	progress("comparando termos", 0.5)
	candidates := MatchBids(bids, terms, e.minScore)

	progress("gravando resultados", 0.7)
	result := RunResult{
		Matched:   len(candidates),
		TermsUsed: len(terms),
		Fetched:   len(bids),
	}

	hitsByTerm := make(map[uuid.UUID]int, len(terms))
	for _, cand := range candidates {
		bid := cand.Bid
		bidID, inserted, err := e.store.UpsertBid(ctx, &bid)
		if err != nil {
			e.log.Warn("bid upsert failed",
				zap.String("id_compra", bid.IDCompra),
				zap.Error(err))
			continue
		}
		if inserted {
			result.New++
		}

		if err := e.store.UpsertMatch(ctx, bidID, profile.ID, cand.Term.Term, cand.Score); err != nil {
			e.log.Warn("match upsert failed",
				zap.String("bid", bidID.String()),
				zap.Error(err))
			continue
		}

		priority := ClassifyPriority(bid, now)
		if err := e.store.EnsureStatus(ctx, bidID, models.StateNew, priority); err != nil {
			e.log.Warn("status init failed",
				zap.String("bid", bidID.String()),
				zap.Error(err))
		}

		hitsByTerm[cand.Term.ID]++
	}

	// Every active term gets a history row this run, zero-hit terms included,
	// so term effectiveness can be judged over time.
	for _, term := range terms {
		hits := hitsByTerm[term.ID]
		if hits > 0 {
			if err := e.store.IncrementTermHits(ctx, term.ID, hits); err != nil {
				e.log.Warn("term counter update failed",
					zap.String("term", term.Term),
					zap.Error(err))
			}
		}
		if err := e.store.AppendSearchHistory(ctx, profile.ID, term.Term, hits); err != nil {
			e.log.Warn("history append failed",
				zap.String("term", term.Term),
				zap.Error(err))
		}
	}

	if err := e.store.FinishProfileRun(ctx, profile.ID, result.Matched); err != nil {
		e.log.Warn("profile run bookkeeping failed",
			zap.String("profile", profile.Name),
			zap.Error(err))
	}

	progress("concluído", 1.0)
	e.log.Info("profile run finished",
		zap.String("profile", profile.Name),
		zap.Int("fetched", result.Fetched),
		zap.Int("matched", result.Matched),
		zap.Int("new", result.New))

	return result, nil
}

// RunForCategory runs every active profile in a category.
func (e *Engine) RunForCategory(ctx context.Context, categoryID uuid.UUID, lookbackDays int, progress ProgressFunc) (BatchResult, error) {
	profiles, err := e.store.ListProfiles(ctx, ProfileFilter{CategoryID: &categoryID, ActiveOnly: true})
	if err != nil {
		return BatchResult{}, fmt.Errorf("listing category profiles: %w", err)
	}
	return e.runBatch(ctx, profiles, lookbackDays, progress), nil
}

// RunToday runs every active profile flagged for the daily sweep.
func (e *Engine) RunToday(ctx context.Context, lookbackDays int, progress ProgressFunc) (BatchResult, error) {
	profiles, err := e.store.ListProfiles(ctx, ProfileFilter{SearchToday: true, ActiveOnly: true})
	if err != nil {
		return BatchResult{}, fmt.Errorf("listing daily profiles: %w", err)
	}
	return e.runBatch(ctx, profiles, lookbackDays, progress), nil
}

// runBatch runs the profiles sequentially. A failing profile is recorded in
// its result entry and the batch continues.
func (e *Engine) runBatch(ctx context.Context, profiles []models.Profile, lookbackDays int, progress ProgressFunc) BatchResult {
	var batch BatchResult

	for i, profile := range profiles {
		if progress != nil {
			progress(fmt.Sprintf("perfil %s", profile.Name), float64(i)/float64(len(profiles)))
		}

		res, err := e.RunForProfile(ctx, profile, lookbackDays, nil)
		entry := ProfileResult{Profile: profile.Name, RunResult: res}
		if err != nil {
			entry.Err = err.Error()
			e.log.Warn("profile run failed",
				zap.String("profile", profile.Name),
				zap.Error(err))
		}
		batch.Profiles = append(batch.Profiles, entry)
		batch.TotalMatched += res.Matched
		batch.TotalNew += res.New

		if ctx.Err() != nil {
			break
		}
	}

	if progress != nil {
		progress("concluído", 1.0)
	}
	return batch
}
