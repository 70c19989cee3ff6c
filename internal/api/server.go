package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/david/grantscout/internal/db"
	"github.com/david/grantscout/internal/models"
	"github.com/david/grantscout/internal/planner"
	"github.com/david/grantscout/internal/profile"
	"github.com/david/grantscout/internal/scoring"
	"github.com/david/grantscout/internal/search"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	Store        *db.Store
	Echo         *echo.Echo
	DB           *pgxpool.Pool
	Compiler     *profile.Compiler
	Orchestrator *search.Orchestrator
	Intel        *search.IntelClient

	logger *zap.Logger
}

func NewServer(pool *pgxpool.Pool, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

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
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	compiler, err := profile.NewCompiler()
	if err != nil {
		return nil, err
	}

	registry, err := search.LoadRegistry("")
	if err != nil {
		return nil, err
	}
	providers := search.BuildProviders(registry, logger)

	s := &Server{
		DB:           pool,
		Store:        db.NewStore(pool),
		Echo:         e,
		Compiler:     compiler,
		Orchestrator: search.NewOrchestrator(providers, logger),
		Intel:        search.NewIntelClient(logger),
		logger:       logger,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/profile", s.handleGetProfile)
	api.PUT("/profile", s.handlePutProfile)

	api.POST("/scan", s.handleScan)
	api.POST("/score", s.handleScore)

	api.GET("/pipeline", s.handleListPipeline)
	api.POST("/pipeline/:id/promote", s.handlePromote)
	api.PATCH("/pipeline/:id/stage", s.handleUpdateStage)
	api.GET("/pipeline/:id/health", s.handleOpportunityHealth)
	api.GET("/pipeline/:id/intel", s.handleOpportunityIntel)

	api.GET("/documents", s.handleListDocuments)
	api.POST("/documents", s.handleSaveDocument)
	api.GET("/contacts", s.handleListContacts)
	api.POST("/contacts", s.handleSaveContact)

	api.GET("/plan", s.handlePlan)
	api.GET("/actions", s.handleActions)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleGetProfile(c echo.Context) error {
	p, err := s.Store.GetProfile(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handlePutProfile(c echo.Context) error {
	var p models.Profile
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	saved, err := s.Store.SaveProfile(c.Request().Context(), p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, saved)
}

type scanRequest struct {
	TierLimit int      `json:"tier_limit"`
	Terms     []string `json:"terms"`         // optional override; empty = derive from profile
	TimeoutMS int      `json:"timeout_ms"`    // per provider call
	Status    string   `json:"status_filter"` // provider-specific
	SkipKnown bool     `json:"skip_known"`    // drop opportunities already tracked
}

func (s *Server) handleScan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	ctx := c.Request().Context()

	p, err := s.Store.GetProfile(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	derived := s.Compiler.Compile(p.Tags, p.Sectors)

	terms := derived.SearchTerms
	if len(req.Terms) > 0 {
		terms = terms[:0]
		for _, kw := range req.Terms {
			kw = strings.TrimSpace(kw)
			if kw != "" {
				terms = append(terms, profile.SearchTerm{Keyword: kw, Label: kw, Tier: 1})
			}
		}
	}

	var known map[string]bool
	if req.SkipKnown {
		known, err = s.Store.KnownKeys(ctx)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	result, err := s.Orchestrator.Scan(ctx, search.ScanRequest{
		Terms:     terms,
		Weights:   derived.Weights,
		TierLimit: req.TierLimit,
		KnownKeys: known,
		Timeout:   time.Duration(req.TimeoutMS) * time.Millisecond,
		Options:   search.SearchOptions{StatusFilter: req.Status},
	})
	if err != nil {
		if errors.Is(err, search.ErrNoResults) {
			return c.JSON(http.StatusOK, result)
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

type scoreRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleScore(c echo.Context) error {
	var req scoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	p, err := s.Store.GetProfile(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	derived := s.Compiler.Compile(p.Tags, p.Sectors)

	fit := scoring.ScoreFit(req.Text, derived.Weights)
	return c.JSON(http.StatusOK, fit)
}

func (s *Server) handleListPipeline(c echo.Context) error {
	includeTerminal := c.QueryParam("include_terminal") == "true"
	opps, err := s.Store.ListPipeline(c.Request().Context(), includeTerminal)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	return c.JSON(http.StatusOK, opps)
}

func (s *Server) handlePromote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}

	var opp models.Opportunity
	if err := c.Bind(&opp); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	opp.ID = id
	if strings.TrimSpace(opp.Title) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}

	saved, err := s.Store.PromoteOpportunity(c.Request().Context(), opp)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, saved)
}

type stageRequest struct {
	Stage string `json:"stage"`
}

func (s *Server) handleUpdateStage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	var req stageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	updated, err := s.Store.UpdateStage(c.Request().Context(), id, models.Stage(req.Stage))
	switch {
	case errors.Is(err, db.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "opportunity not found"})
	case errors.Is(err, db.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleOpportunityHealth(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	ctx := c.Request().Context()

	opp, err := s.Store.GetOpportunity(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "opportunity not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	docs, err := s.Store.ListDocuments(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, planner.HealthFor(time.Now().UTC(), opp, docs))
}

func (s *Server) handleOpportunityIntel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	}
	ctx := c.Request().Context()

	opp, err := s.Store.GetOpportunity(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "opportunity not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	// State FIPS for the area lookup; the funder side only needs the agency.
	return c.JSON(http.StatusOK, s.Intel.Fetch(ctx, opp.AgencyName, c.QueryParam("state")))
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.Store.ListDocuments(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleSaveDocument(c echo.Context) error {
	var d models.Document
	if err := c.Bind(&d); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(d.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	saved, err := s.Store.SaveDocument(c.Request().Context(), d)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) handleListContacts(c echo.Context) error {
	contacts, err := s.Store.ListContacts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return c.JSON(http.StatusOK, contacts)
}

func (s *Server) handleSaveContact(c echo.Context) error {
	var contact models.Contact
	if err := c.Bind(&contact); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(contact.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}
	saved, err := s.Store.SaveContact(c.Request().Context(), contact)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, saved)
}

func (s *Server) handlePlan(c echo.Context) error {
	ctx := c.Request().Context()

	target := 0
	if v := c.QueryParam("target"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid target"})
		}
		target = parsed
	}
	if target == 0 {
		if p, err := s.Store.GetProfile(ctx); err == nil {
			target = p.FundingTarget
		}
	}

	opps, err := s.Store.ListPipeline(ctx, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	docs, err := s.Store.ListDocuments(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, planner.BuildPlan(opps, docs, target))
}

func (s *Server) handleActions(c echo.Context) error {
	ctx := c.Request().Context()

	opps, err := s.Store.ListPipeline(ctx, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	docs, err := s.Store.ListDocuments(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	contacts, err := s.Store.ListContacts(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	actions := planner.NextActions(time.Now().UTC(), opps, docs, contacts)
	if actions == nil {
		actions = []planner.Action{}
	}
	return c.JSON(http.StatusOK, actions)
}
