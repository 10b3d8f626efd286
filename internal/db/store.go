package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmbp/licitaflix/internal/models"
	"github.com/dmbp/licitaflix/internal/search"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// selectBidCols is the comprehensive bid column list for all queries.
const selectBidCols = `b.id, b.id_compra, b.pncp_control, b.source, b.modality, b.modality_code,
	b.description, b.estimated_value, b.awarded_value, b.agency, b.uasg, b.uf, b.municipality,
	b.situation, b.published_at, b.proposal_open_at, b.proposal_close_at, b.result_at,
	b.item_count, b.process_number, b.recurring, b.raw, b.created_at, b.updated_at`

func scanBid(scan func(dest ...interface{}) error) (models.Bid, error) {
	var b models.Bid
	var rawJSON []byte

	err := scan(
		&b.ID, &b.IDCompra, &b.PNCPControl, &b.Source, &b.Modality, &b.ModalityCode,
		&b.Description, &b.EstimatedValue, &b.AwardedValue, &b.Agency, &b.UASG, &b.UF, &b.Municipality,
		&b.Situation, &b.PublishedAt, &b.ProposalOpenAt, &b.ProposalCloseAt, &b.ResultAt,
		&b.ItemCount, &b.ProcessNumber, &b.Recurring, &rawJSON, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}

	if len(rawJSON) > 0 {
		_ = json.Unmarshal(rawJSON, &b.Raw)
	}

	return b, nil
}

// --- Engine persistence ---

// UpsertBid inserts or refreshes a bid keyed on id_compra and reports whether
// the row is new. Bids without an upstream identifier always insert: they
// cannot be told apart, so no existing row can be claimed as theirs.
func (s *Store) UpsertBid(ctx context.Context, bid *models.Bid) (uuid.UUID, bool, error) {
	rawJSON, err := json.Marshal(bid.Raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("encoding raw payload: %w", err)
	}

	args := []interface{}{
		bid.IDCompra, bid.PNCPControl, string(bid.Source), bid.Modality, bid.ModalityCode,
		bid.Description, bid.EstimatedValue, bid.AwardedValue, bid.Agency, bid.UASG,
		bid.UF, bid.Municipality, bid.Situation, bid.PublishedAt, bid.ProposalOpenAt,
		bid.ProposalCloseAt, bid.ResultAt, bid.ItemCount, bid.ProcessNumber, bid.Recurring,
		string(rawJSON),
	}

	const cols = `id_compra, pncp_control, source, modality, modality_code,
		description, estimated_value, awarded_value, agency, uasg,
		uf, municipality, situation, published_at, proposal_open_at,
		proposal_close_at, result_at, item_count, process_number, recurring, raw`
	const vals = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21::jsonb`

	if bid.IDCompra == "" {
		var id uuid.UUID
		err := s.pool.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO bids (%s) VALUES (%s) RETURNING id
		`, cols, vals), args...).Scan(&id)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("inserting unidentified bid: %w", err)
		}
		return id, true, nil
	}

	var id uuid.UUID
	var inserted bool
	err = s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO bids (%s) VALUES (%s)
		ON CONFLICT (id_compra) WHERE id_compra <> '' DO UPDATE SET
			updated_at = NOW(),
			situation = EXCLUDED.situation,
			description = EXCLUDED.description,
			estimated_value = COALESCE(EXCLUDED.estimated_value, bids.estimated_value),
			awarded_value = COALESCE(EXCLUDED.awarded_value, bids.awarded_value),
			proposal_open_at = COALESCE(EXCLUDED.proposal_open_at, bids.proposal_open_at),
			proposal_close_at = COALESCE(EXCLUDED.proposal_close_at, bids.proposal_close_at),
			result_at = COALESCE(EXCLUDED.result_at, bids.result_at),
			raw = EXCLUDED.raw
		RETURNING id, (xmax = 0) AS inserted
	`, cols, vals), args...).Scan(&id, &inserted)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upserting bid %s: %w", bid.IDCompra, err)
	}

	return id, inserted, nil
}

func (s *Store) UpsertMatch(ctx context.Context, bidID, profileID uuid.UUID, term string, score float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bid_matches (bid_id, profile_id, term, score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (bid_id, profile_id) DO UPDATE SET
			term = EXCLUDED.term,
			score = EXCLUDED.score
	`, bidID, profileID, term, score)
	if err != nil {
		return fmt.Errorf("upserting match: %w", err)
	}
	return nil
}

// EnsureStatus writes the initial workflow record once. Reruns never touch an
// existing row, so operator decisions survive re-ingestion.
func (s *Store) EnsureStatus(ctx context.Context, bidID uuid.UUID, state models.BidState, priority models.Priority) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bid_status (bid_id, state, priority)
		VALUES ($1, $2, $3)
		ON CONFLICT (bid_id) DO NOTHING
	`, bidID, string(state), string(priority))
	if err != nil {
		return fmt.Errorf("ensuring status: %w", err)
	}
	return nil
}

func (s *Store) IncrementTermHits(ctx context.Context, termID uuid.UUID, hits int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE search_terms SET times_matched = times_matched + $2 WHERE id = $1
	`, termID, hits)
	if err != nil {
		return fmt.Errorf("updating term counter: %w", err)
	}
	return nil
}

func (s *Store) AppendSearchHistory(ctx context.Context, profileID uuid.UUID, term string, results int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO search_history (profile_id, term, results) VALUES ($1, $2, $3)
	`, profileID, term, results)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

func (s *Store) FinishProfileRun(ctx context.Context, profileID uuid.UUID, matched int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE profiles SET total_matches = total_matches + $2, last_run_at = NOW() WHERE id = $1
	`, profileID, matched)
	if err != nil {
		return fmt.Errorf("closing profile run: %w", err)
	}
	return nil
}

// --- Categories ---

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, icon, color, active, created_at
		FROM categories ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	cats := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, icon, color) VALUES ($1, $2, $3)
		RETURNING id, active, created_at
	`, c.Name, c.Icon, c.Color).Scan(&c.ID, &c.Active, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating category: %w", err)
	}
	return nil
}

// --- Profiles ---

const selectProfileCols = `id, name, category_id, description, min_value, max_value,
	regions, modalities, active, search_today, total_matches, last_run_at, created_at`

func scanProfile(scan func(dest ...interface{}) error) (models.Profile, error) {
	var p models.Profile
	err := scan(
		&p.ID, &p.Name, &p.CategoryID, &p.Description, &p.MinValue, &p.MaxValue,
		&p.Regions, &p.Modalities, &p.Active, &p.SearchToday, &p.TotalMatches,
		&p.LastRunAt, &p.CreatedAt,
	)
	return p, err
}

func (s *Store) ListProfiles(ctx context.Context, filter search.ProfileFilter) ([]models.Profile, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if filter.CategoryID != nil {
		where += fmt.Sprintf(" AND category_id = $%d", argIdx)
		args = append(args, *filter.CategoryID)
		argIdx++
	}
	if filter.SearchToday {
		where += " AND search_today = TRUE"
	}
	if filter.ActiveOnly {
		where += " AND active = TRUE"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM profiles %s ORDER BY name
	`, selectProfileCols, where), args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM profiles WHERE id = $1
	`, selectProfileCols), id)

	p, err := scanProfile(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	terms, err := s.listTerms(ctx, id, false)
	if err != nil {
		return nil, err
	}
	p.Terms = terms

	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.Regions == nil {
		p.Regions = []string{}
	}
	if p.Modalities == nil {
		p.Modalities = []int{}
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (name, category_id, description, min_value, max_value, regions, modalities, search_today)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, active, total_matches, created_at
	`, p.Name, p.CategoryID, p.Description, p.MinValue, p.MaxValue, p.Regions, p.Modalities, p.SearchToday).
		Scan(&p.ID, &p.Active, &p.TotalMatches, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles SET
			name = $2, description = $3, min_value = $4, max_value = $5,
			regions = $6, modalities = $7, active = $8, search_today = $9
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.MinValue, p.MaxValue, p.Regions, p.Modalities, p.Active, p.SearchToday)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Terms ---

const selectTermCols = `id, profile_id, term, origin, relevance, active, times_matched, times_useful, created_at`

func scanTerm(scan func(dest ...interface{}) error) (models.SearchTerm, error) {
	var t models.SearchTerm
	err := scan(
		&t.ID, &t.ProfileID, &t.Term, &t.Origin, &t.Relevance, &t.Active,
		&t.TimesMatched, &t.TimesUseful, &t.CreatedAt,
	)
	return t, err
}

func (s *Store) ListActiveTerms(ctx context.Context, profileID uuid.UUID) ([]models.SearchTerm, error) {
	return s.listTerms(ctx, profileID, true)
}

func (s *Store) listTerms(ctx context.Context, profileID uuid.UUID, activeOnly bool) ([]models.SearchTerm, error) {
	where := "WHERE profile_id = $1"
	if activeOnly {
		where += " AND active = TRUE"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM search_terms %s ORDER BY relevance DESC, term
	`, selectTermCols, where), profileID)
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	defer rows.Close()

	terms := []models.SearchTerm{}
	for rows.Next() {
		t, err := scanTerm(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// AddTerm stores a lowercased, trimmed term. Re-adding an existing term
// reactivates it instead of failing the unique constraint.
func (s *Store) AddTerm(ctx context.Context, profileID uuid.UUID, term string, origin models.TermOrigin) (*models.SearchTerm, error) {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if normalized == "" {
		return nil, fmt.Errorf("term must not be empty")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO search_terms (profile_id, term, origin)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, term) DO UPDATE SET active = TRUE
		RETURNING %s
	`, selectTermCols), profileID, normalized, string(origin))

	t, err := scanTerm(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("adding term: %w", err)
	}
	return &t, nil
}

func (s *Store) SetTermActive(ctx context.Context, termID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE search_terms SET active = $2 WHERE id = $1`, termID, active)
	if err != nil {
		return fmt.Errorf("toggling term: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkTermUseful(ctx context.Context, termID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE search_terms SET times_useful = times_useful + 1 WHERE id = $1
	`, termID)
	if err != nil {
		return fmt.Errorf("marking term useful: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Bids ---

type BidListParams struct {
	State        string
	Priority     string
	ProfileID    *uuid.UUID
	Source       string
	UF           string
	ModalityCode int
	Query        string
	MinValue     float64
	MaxValue     float64
	Limit        int
	Offset       int
}

// BidRow is a bid plus its workflow state and the terms that matched it.
type BidRow struct {
	models.Bid
	State        models.BidState `json:"state"`
	Priority     models.Priority `json:"priority"`
	MatchedTerms []string        `json:"matched_terms"`
	BestScore    float64         `json:"best_score"`
}

type BidListResult struct {
	Bids   []BidRow `json:"bids"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// buildBidFilter renders the WHERE clause and positional args for a bid
// listing. The returned index is the next free placeholder.
func buildBidFilter(params BidListParams) (string, []interface{}, int) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.State != "" {
		where += fmt.Sprintf(" AND COALESCE(st.state, 'new') = $%d", argIdx)
		args = append(args, params.State)
		argIdx++
	}
	if params.Priority != "" {
		where += fmt.Sprintf(" AND COALESCE(st.priority, 'normal') = $%d", argIdx)
		args = append(args, params.Priority)
		argIdx++
	}
	if params.ProfileID != nil {
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM bid_matches pm WHERE pm.bid_id = b.id AND pm.profile_id = $%d)", argIdx)
		args = append(args, *params.ProfileID)
		argIdx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND b.source = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.UF != "" {
		where += fmt.Sprintf(" AND b.uf = $%d", argIdx)
		args = append(args, strings.ToUpper(params.UF))
		argIdx++
	}
	if params.ModalityCode > 0 {
		where += fmt.Sprintf(" AND b.modality_code = $%d", argIdx)
		args = append(args, params.ModalityCode)
		argIdx++
	}
	if params.Query != "" {
		where += fmt.Sprintf(" AND b.description ILIKE '%%' || $%d || '%%'", argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.MinValue > 0 {
		where += fmt.Sprintf(" AND b.estimated_value >= $%d", argIdx)
		args = append(args, params.MinValue)
		argIdx++
	}
	if params.MaxValue > 0 {
		where += fmt.Sprintf(" AND b.estimated_value <= $%d", argIdx)
		args = append(args, params.MaxValue)
		argIdx++
	}

	return where, args, argIdx
}

func (s *Store) ListBids(ctx context.Context, params BidListParams) (*BidListResult, error) {
	where, args, argIdx := buildBidFilter(params)

	from := `FROM bids b LEFT JOIN bid_status st ON st.bid_id = b.id`

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) "+from+" "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting bids: %w", err)
	}

	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}

	selectSQL := fmt.Sprintf(`
		SELECT %s,
			COALESCE(st.state, 'new'), COALESCE(st.priority, 'normal'),
			COALESCE((SELECT array_agg(m.term ORDER BY m.score DESC) FROM bid_matches m WHERE m.bid_id = b.id), '{}'),
			COALESCE((SELECT MAX(m.score) FROM bid_matches m WHERE m.bid_id = b.id), 0)
		%s %s
		ORDER BY
			CASE COALESCE(st.priority, 'normal')
				WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3
			END,
			b.proposal_close_at ASC NULLS LAST,
			b.created_at DESC
		LIMIT $%d OFFSET $%d
	`, selectBidCols, from, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	defer rows.Close()

	bids := []BidRow{}
	for rows.Next() {
		var row BidRow
		var rawJSON []byte
		err := rows.Scan(
			&row.ID, &row.IDCompra, &row.PNCPControl, &row.Source, &row.Modality, &row.ModalityCode,
			&row.Description, &row.EstimatedValue, &row.AwardedValue, &row.Agency, &row.UASG, &row.UF, &row.Municipality,
			&row.Situation, &row.PublishedAt, &row.ProposalOpenAt, &row.ProposalCloseAt, &row.ResultAt,
			&row.ItemCount, &row.ProcessNumber, &row.Recurring, &rawJSON, &row.CreatedAt, &row.UpdatedAt,
			&row.State, &row.Priority, &row.MatchedTerms, &row.BestScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning bid row: %w", err)
		}
		// The raw payload stays out of list responses; GetBid serves it.
		bids = append(bids, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bids: %w", err)
	}

	return &BidListResult{Bids: bids, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// BidDetail is the full view of one bid: workflow state, matches, raw payload.
type BidDetail struct {
	models.Bid
	Status  models.BidStatus  `json:"status"`
	Matches []models.BidMatch `json:"matches"`
}

func (s *Store) GetBid(ctx context.Context, id uuid.UUID) (*BidDetail, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM bids b WHERE b.id = $1
	`, selectBidCols), id)

	bid, err := scanBid(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting bid: %w", err)
	}

	detail := &BidDetail{Bid: bid}

	err = s.pool.QueryRow(ctx, `
		SELECT bid_id, state, priority, notes, updated_at FROM bid_status WHERE bid_id = $1
	`, id).Scan(&detail.Status.BidID, &detail.Status.State, &detail.Status.Priority, &detail.Status.Notes, &detail.Status.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		detail.Status = models.BidStatus{BidID: id, State: models.StateNew, Priority: models.PriorityNormal}
	} else if err != nil {
		return nil, fmt.Errorf("getting bid status: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, bid_id, profile_id, term, score, created_at
		FROM bid_matches WHERE bid_id = $1 ORDER BY score DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("getting bid matches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.BidMatch
		if err := rows.Scan(&m.ID, &m.BidID, &m.ProfileID, &m.Term, &m.Score, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		detail.Matches = append(detail.Matches, m)
	}

	return detail, rows.Err()
}

// UpdateBidStatus is the operator write path. Unlike EnsureStatus it
// overwrites: nil priority and notes leave the current values in place.
func (s *Store) UpdateBidStatus(ctx context.Context, bidID uuid.UUID, state models.BidState, priority *models.Priority, notes *string) error {
	var prio *string
	if priority != nil {
		p := string(*priority)
		prio = &p
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO bid_status (bid_id, state, priority, notes, updated_at)
		VALUES ($1, $2, COALESCE($3, 'normal'), COALESCE($4, ''), NOW())
		ON CONFLICT (bid_id) DO UPDATE SET
			state = EXCLUDED.state,
			priority = COALESCE($3, bid_status.priority),
			notes = COALESCE($4, bid_status.notes),
			updated_at = NOW()
	`, bidID, string(state), prio, notes)
	if err != nil {
		return fmt.Errorf("updating bid status: %w", err)
	}
	return nil
}

// --- History and suggestions ---

func (s *Store) ListSearchHistory(ctx context.Context, profileID uuid.UUID, limit int) ([]models.SearchHistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, term, results, useful, created_at
		FROM search_history WHERE profile_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	entries := []models.SearchHistoryEntry{}
	for rows.Next() {
		var e models.SearchHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Term, &e.Results, &e.Useful, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertSuggestion accumulates frequency across runs for a candidate term.
func (s *Store) UpsertSuggestion(ctx context.Context, profileID uuid.UUID, term string, frequency int) error {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if normalized == "" {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO term_suggestions (profile_id, term, frequency)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, term) DO UPDATE SET
			frequency = term_suggestions.frequency + EXCLUDED.frequency
	`, profileID, normalized, frequency)
	if err != nil {
		return fmt.Errorf("upserting suggestion: %w", err)
	}
	return nil
}

func (s *Store) ListSuggestions(ctx context.Context, profileID uuid.UUID, pendingOnly bool) ([]models.TermSuggestion, error) {
	where := "WHERE profile_id = $1"
	if pendingOnly {
		where += " AND accepted IS NULL"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, profile_id, term, frequency, accepted, created_at
		FROM term_suggestions %s ORDER BY frequency DESC, term
	`, where), profileID)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []models.TermSuggestion{}
	for rows.Next() {
		var sg models.TermSuggestion
		if err := rows.Scan(&sg.ID, &sg.ProfileID, &sg.Term, &sg.Frequency, &sg.Accepted, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

// RespondSuggestion records the reviewer's verdict. Accepting also promotes
// the suggestion into an active search term for the profile.
func (s *Store) RespondSuggestion(ctx context.Context, id uuid.UUID, accept bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var profileID uuid.UUID
	var term string
	err = tx.QueryRow(ctx, `
		UPDATE term_suggestions SET accepted = $2 WHERE id = $1
		RETURNING profile_id, term
	`, id, accept).Scan(&profileID, &term)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("responding to suggestion: %w", err)
	}

	if accept {
		if _, err := tx.Exec(ctx, `
			INSERT INTO search_terms (profile_id, term, origin)
			VALUES ($1, $2, 'suggested')
			ON CONFLICT (profile_id, term) DO UPDATE SET active = TRUE
		`, profileID, term); err != nil {
			return fmt.Errorf("promoting suggestion: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// --- Stats ---

type Stats struct {
	TotalBids      int            `json:"total_bids"`
	NewToday       int            `json:"new_today"`
	ActiveProfiles int            `json:"active_profiles"`
	ActiveTerms    int            `json:"active_terms"`
	ByState        map[string]int `json:"by_state"`
	ByPriority     map[string]int `json:"by_priority"`
}

func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByState:    map[string]int{},
		ByPriority: map[string]int{},
	}

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bids),
			(SELECT COUNT(*) FROM bids WHERE created_at >= CURRENT_DATE),
			(SELECT COUNT(*) FROM profiles WHERE active),
			(SELECT COUNT(*) FROM search_terms WHERE active)
	`).Scan(&stats.TotalBids, &stats.NewToday, &stats.ActiveProfiles, &stats.ActiveTerms)
	if err != nil {
		return nil, fmt.Errorf("counting totals: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(st.state, 'new'), COALESCE(st.priority, 'normal'), COUNT(*)
		FROM bids b LEFT JOIN bid_status st ON st.bid_id = b.id
		GROUP BY 1, 2
	`)
	if err != nil {
		return nil, fmt.Errorf("counting by state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state, priority string
		var count int
		if err := rows.Scan(&state, &priority, &count); err != nil {
			return nil, fmt.Errorf("scanning stat row: %w", err)
		}
		stats.ByState[state] += count
		stats.ByPriority[priority] += count
	}

	return stats, rows.Err()
}
