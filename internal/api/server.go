package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmbp/licitaflix/internal/db"
	"github.com/dmbp/licitaflix/internal/models"
	"github.com/dmbp/licitaflix/internal/search"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	Store    *db.Store
	Engine   *search.Engine
	Registry *search.Registry
	Echo     *echo.Echo
	DB       *pgxpool.Pool
	Log      *zap.Logger

	// Background job tracking: one search run at a time.
	jobMu      sync.Mutex
	runningJob *searchJob
}

type searchJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	Message   string             `json:"message"`
	Progress  float64            `json:"progress"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(pool *pgxpool.Pool, log *zap.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	reg, err := search.LoadRegistry()
	if err != nil {
		return nil, err
	}

	store := db.NewStore(pool)
	agg := search.NewAggregator(log,
		search.NewComprasGovClient(reg, log),
		search.NewPNCPClient(reg, log),
	)

	s := &Server{
		DB:       pool,
		Store:    store,
		Engine:   search.NewEngine(store, agg, log),
		Registry: reg,
		Echo:     e,
		Log:      log,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")

	api.GET("/bids", s.handleListBids)
	api.GET("/bids/:id", s.handleGetBid)
	api.PATCH("/bids/:id/status", s.handleUpdateBidStatus)

	api.GET("/categories", s.handleListCategories)
	api.POST("/categories", s.handleCreateCategory)

	api.GET("/profiles", s.handleListProfiles)
	api.POST("/profiles", s.handleCreateProfile)
	api.GET("/profiles/:id", s.handleGetProfile)
	api.PATCH("/profiles/:id", s.handleUpdateProfile)
	api.DELETE("/profiles/:id", s.handleDeleteProfile)

	api.POST("/profiles/:id/terms", s.handleAddTerm)
	api.PATCH("/terms/:id", s.handleUpdateTerm)
	api.POST("/terms/:id/useful", s.handleMarkTermUseful)

	api.GET("/profiles/:id/history", s.handleSearchHistory)
	api.GET("/profiles/:id/suggestions", s.handleListSuggestions)
	api.POST("/suggestions/:id/respond", s.handleRespondSuggestion)

	api.POST("/search/profile/:id", s.handleSearchProfile)
	api.POST("/search/category/:id", s.handleSearchCategory)
	api.POST("/search/today", s.handleSearchToday)
	api.GET("/search/jobs/:id", s.handleJobStatus)

	api.GET("/stats", s.handleGetStats)
	api.GET("/sources", s.handleGetSources)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.DB.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// --- Bids ---

func (s *Server) handleListBids(c echo.Context) error {
	params := db.BidListParams{
		State:    c.QueryParam("state"),
		Priority: c.QueryParam("priority"),
		Source:   c.QueryParam("source"),
		UF:       c.QueryParam("uf"),
		Query:    c.QueryParam("q"),
	}
	if raw := c.QueryParam("profile_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile_id"})
		}
		params.ProfileID = &id
	}
	if raw := c.QueryParam("modality"); raw != "" {
		params.ModalityCode, _ = strconv.Atoi(raw)
	}
	if raw := c.QueryParam("min_value"); raw != "" {
		params.MinValue, _ = strconv.ParseFloat(raw, 64)
	}
	if raw := c.QueryParam("max_value"); raw != "" {
		params.MaxValue, _ = strconv.ParseFloat(raw, 64)
	}
	params.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	params.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	result, err := s.Store.ListBids(c.Request().Context(), params)
	if err != nil {
		s.Log.Error("listing bids failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list bids"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetBid(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid bid id"})
	}

	detail, err := s.Store.GetBid(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "bid not found"})
	}
	if err != nil {
		s.Log.Error("getting bid failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get bid"})
	}
	return c.JSON(http.StatusOK, detail)
}

type updateStatusRequest struct {
	State    models.BidState  `json:"state"`
	Priority *models.Priority `json:"priority"`
	Notes    *string          `json:"notes"`
}

var validStates = map[models.BidState]bool{
	models.StateNew: true, models.StateReviewing: true, models.StatePursuing: true,
	models.StateDiscarded: true, models.StateWon: true, models.StateLost: true,
}

var validPriorities = map[models.Priority]bool{
	models.PriorityUrgent: true, models.PriorityHigh: true,
	models.PriorityNormal: true, models.PriorityLow: true,
}

func (s *Server) handleUpdateBidStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid bid id"})
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if !validStates[req.State] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid state"})
	}
	if req.Priority != nil && !validPriorities[*req.Priority] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid priority"})
	}

	if err := s.Store.UpdateBidStatus(c.Request().Context(), id, req.State, req.Priority, req.Notes); err != nil {
		s.Log.Error("updating bid status failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update status"})
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Categories ---

func (s *Server) handleListCategories(c echo.Context) error {
	cats, err := s.Store.ListCategories(c.Request().Context())
	if err != nil {
		s.Log.Error("listing categories failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list categories"})
	}
	return c.JSON(http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(c echo.Context) error {
	var cat models.Category
	if err := c.Bind(&cat); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(cat.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	if err := s.Store.CreateCategory(c.Request().Context(), &cat); err != nil {
		s.Log.Error("creating category failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create category"})
	}
	return c.JSON(http.StatusCreated, cat)
}

// --- Profiles ---

func (s *Server) handleListProfiles(c echo.Context) error {
	var filter search.ProfileFilter
	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		}
		filter.CategoryID = &id
	}
	filter.ActiveOnly = c.QueryParam("active") == "true"

	profiles, err := s.Store.ListProfiles(c.Request().Context(), filter)
	if err != nil {
		s.Log.Error("listing profiles failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list profiles"})
	}
	return c.JSON(http.StatusOK, profiles)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}

	profile, err := s.Store.GetProfile(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "profile not found"})
	}
	if err != nil {
		s.Log.Error("getting profile failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get profile"})
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleCreateProfile(c echo.Context) error {
	var p models.Profile
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(p.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	if p.CategoryID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "category_id is required"})
	}
	for _, uf := range p.Regions {
		if !isBrazilState(uf) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown state code: " + uf})
		}
	}

	if err := s.Store.CreateProfile(c.Request().Context(), &p); err != nil {
		s.Log.Error("creating profile failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create profile"})
	}

	// Terms may ride along on creation.
	for _, t := range p.Terms {
		if _, err := s.Store.AddTerm(c.Request().Context(), p.ID, t.Term, models.TermOriginManual); err != nil {
			s.Log.Warn("adding initial term failed", zap.String("term", t.Term), zap.Error(err))
		}
	}

	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}

	existing, err := s.Store.GetProfile(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "profile not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get profile"})
	}

	if err := c.Bind(existing); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	existing.ID = id
	for _, uf := range existing.Regions {
		if !isBrazilState(uf) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown state code: " + uf})
		}
	}

	if err := s.Store.UpdateProfile(c.Request().Context(), existing); err != nil {
		s.Log.Error("updating profile failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
	}
	return c.JSON(http.StatusOK, existing)
}

func (s *Server) handleDeleteProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}

	err = s.Store.DeleteProfile(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "profile not found"})
	}
	if err != nil {
		s.Log.Error("deleting profile failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete profile"})
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Terms ---

type addTermRequest struct {
	Term string `json:"term"`
}

func (s *Server) handleAddTerm(c echo.Context) error {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}

	var req addTermRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	term, err := s.Store.AddTerm(c.Request().Context(), profileID, req.Term, models.TermOriginManual)
	if err != nil {
		s.Log.Error("adding term failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, term)
}

type updateTermRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) handleUpdateTerm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid term id"})
	}

	var req updateTermRequest
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "active is required"})
	}

	err = s.Store.SetTermActive(c.Request().Context(), id, *req.Active)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "term not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update term"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMarkTermUseful(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid term id"})
	}

	err = s.Store.MarkTermUseful(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "term not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to mark term"})
	}
	return c.NoContent(http.StatusNoContent)
}

// --- History and suggestions ---

func (s *Server) handleSearchHistory(c echo.Context) error {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	entries, err := s.Store.ListSearchHistory(c.Request().Context(), profileID, limit)
	if err != nil {
		s.Log.Error("listing history failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list history"})
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) handleListSuggestions(c echo.Context) error {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}

	pendingOnly := c.QueryParam("pending") != "false"
	suggestions, err := s.Store.ListSuggestions(c.Request().Context(), profileID, pendingOnly)
	if err != nil {
		s.Log.Error("listing suggestions failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list suggestions"})
	}
	return c.JSON(http.StatusOK, suggestions)
}

type respondSuggestionRequest struct {
	Accept *bool `json:"accept"`
}

func (s *Server) handleRespondSuggestion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid suggestion id"})
	}

	var req respondSuggestionRequest
	if err := c.Bind(&req); err != nil || req.Accept == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "accept is required"})
	}

	err = s.Store.RespondSuggestion(c.Request().Context(), id, *req.Accept)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "suggestion not found"})
	}
	if err != nil {
		s.Log.Error("responding to suggestion failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to respond"})
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Search runs ---

func (s *Server) handleSearchProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid profile id"})
	}

	profile, err := s.Store.GetProfile(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "profile not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get profile"})
	}

	days := lookbackDays(c)
	return s.startSearchJob(c, func(ctx context.Context, progress search.ProgressFunc) (any, error) {
		return s.Engine.RunForProfile(ctx, *profile, days, progress)
	})
}

func (s *Server) handleSearchCategory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid category id"})
	}

	days := lookbackDays(c)
	return s.startSearchJob(c, func(ctx context.Context, progress search.ProgressFunc) (any, error) {
		return s.Engine.RunForCategory(ctx, id, days, progress)
	})
}

func (s *Server) handleSearchToday(c echo.Context) error {
	days := lookbackDays(c)
	return s.startSearchJob(c, func(ctx context.Context, progress search.ProgressFunc) (any, error) {
		return s.Engine.RunToday(ctx, days, progress)
	})
}

func lookbackDays(c echo.Context) int {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	return days
}

// startSearchJob launches fn in a detached goroutine and answers 202 with a
// job id. Only one search runs at a time; a second request gets 409.
func (s *Server) startSearchJob(c echo.Context, fn func(ctx context.Context, progress search.ProgressFunc) (any, error)) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "a search is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle; the timeout
	// bounds runaway source crawls.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	job := &searchJob{
		ID:        uuid.New().String()[:8],
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	progress := func(message string, fraction float64) {
		s.jobMu.Lock()
		job.Message = message
		job.Progress = fraction
		s.jobMu.Unlock()
	}

	go func() {
		defer jobCancel()
		result, err := fn(jobCtx, progress)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			return
		}
		job.Status = "completed"
		job.Result = result
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"message":    job.Message,
		"progress":   job.Progress,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}

	return c.JSON(http.StatusOK, resp)
}

// --- Stats and sources ---

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		s.Log.Error("getting stats failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetSources(c echo.Context) error {
	sources := make([]map[string]interface{}, 0, len(s.Registry.Sources))
	for id := range s.Registry.Sources {
		src := s.Registry.Source(id)
		sources = append(sources, map[string]interface{}{
			"id":        id,
			"name":      src.Name,
			"base_url":  src.BaseURL,
			"page_size": src.PageSize,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sources":    sources,
		"states":     search.BrazilStates,
		"modalities": s.Registry.Modalities,
	})
}

func isBrazilState(uf string) bool {
	for _, s := range search.BrazilStates {
		if s == uf {
			return true
		}
	}
	return false
}

// Start runs the HTTP server until the listener fails or is shut down.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Cancel != nil {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}
