package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/david/grantscout/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid stage transition")
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ---- profile ----

// GetProfile returns the applicant profile, creating an empty one on first
// access so callers never deal with a missing row.
func (s *Store) GetProfile(ctx context.Context) (models.Profile, error) {
	var p models.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, location, tags, sectors, narrative, funding_target, created_at, updated_at
		FROM profiles ORDER BY created_at LIMIT 1
	`).Scan(&p.ID, &p.Name, &p.Location, &p.Tags, &p.Sectors, &p.Narrative, &p.FundingTarget, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.SaveProfile(ctx, models.Profile{})
	}
	if err != nil {
		return p, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Sectors == nil {
		p.Sectors = []string{}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, name, location, tags, sectors, narrative, funding_target)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			tags = EXCLUDED.tags,
			sectors = EXCLUDED.sectors,
			narrative = EXCLUDED.narrative,
			funding_target = EXCLUDED.funding_target,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Location, p.Tags, p.Sectors, p.Narrative, p.FundingTarget).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// ---- pipeline ----

const oppCols = `id, source_id, provider, title, agency_name, category, external_url,
	amount_raw, open_date, close_date, forecasted,
	fit_score, fit_label, matches, gaps,
	stage, stage_updated_at, required_doc_ids, created_at, updated_at`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	var stage string
	var matchesRaw, gapsRaw []byte

	err := scan(
		&o.ID, &o.SourceID, &o.Provider, &o.Title, &o.AgencyName, &o.Category, &o.ExternalURL,
		&o.AmountRaw, &o.OpenDate, &o.CloseDate, &o.Forecasted,
		&o.FitScore, &o.FitLabel, &matchesRaw, &gapsRaw,
		&stage, &o.StageUpdatedAt, &o.RequiredDocIDs, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	o.Stage = models.Stage(stage)
	if len(matchesRaw) > 0 {
		_ = json.Unmarshal(matchesRaw, &o.Matches)
	}
	if len(gapsRaw) > 0 {
		_ = json.Unmarshal(gapsRaw, &o.Gaps)
	}
	return o, nil
}

// ListPipeline returns tracked opportunities, newest first. Terminal stages
// are excluded unless includeTerminal is set.
func (s *Store) ListPipeline(ctx context.Context, includeTerminal bool) ([]models.Opportunity, error) {
	query := "SELECT " + oppCols + " FROM opportunities"
	if !includeTerminal {
		query += " WHERE stage NOT IN ('completed', 'rejected')"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+oppCols+" FROM opportunities WHERE id = $1", id)
	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("failed to load opportunity: %w", err)
	}
	return o, nil
}

// PromoteOpportunity saves a scan result into the tracked pipeline. Re-promoting
// the same source refreshes its scoring fields but keeps the stage the user
// already moved it to.
func (s *Store) PromoteOpportunity(ctx context.Context, o models.Opportunity) (models.Opportunity, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Stage == "" {
		o.Stage = models.StageResearching
	}
	if o.RequiredDocIDs == nil {
		o.RequiredDocIDs = []uuid.UUID{}
	}

	matchesRaw, err := json.Marshal(o.Matches)
	if err != nil {
		return o, fmt.Errorf("failed to encode match evidence: %w", err)
	}
	gapsRaw, err := json.Marshal(o.Gaps)
	if err != nil {
		return o, fmt.Errorf("failed to encode gap evidence: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO opportunities (
			id, dedup_key, source_id, provider, title, agency_name, category, external_url,
			amount_raw, open_date, close_date, forecasted,
			fit_score, fit_label, matches, gaps, stage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (dedup_key) DO UPDATE SET
			title = EXCLUDED.title,
			agency_name = EXCLUDED.agency_name,
			category = EXCLUDED.category,
			external_url = EXCLUDED.external_url,
			amount_raw = EXCLUDED.amount_raw,
			open_date = EXCLUDED.open_date,
			close_date = EXCLUDED.close_date,
			forecasted = EXCLUDED.forecasted,
			fit_score = EXCLUDED.fit_score,
			fit_label = EXCLUDED.fit_label,
			matches = EXCLUDED.matches,
			gaps = EXCLUDED.gaps,
			updated_at = NOW()
		RETURNING `+oppCols,
		o.ID, o.DedupKey(), o.SourceID, o.Provider, o.Title, o.AgencyName, o.Category, o.ExternalURL,
		o.AmountRaw, o.OpenDate, o.CloseDate, o.Forecasted,
		o.FitScore, o.FitLabel, matchesRaw, gapsRaw, string(o.Stage),
	)

	saved, err := scanOpportunity(row.Scan)
	if err != nil {
		return o, fmt.Errorf("failed to promote opportunity: %w", err)
	}
	return saved, nil
}

// allowedTransitions encodes the pipeline lifecycle. Rejection is reachable
// from any live stage; completion only after submission.
var allowedTransitions = map[models.Stage][]models.Stage{
	models.StageResearching: {models.StageQualifying, models.StageRejected},
	models.StageQualifying:  {models.StagePreparing, models.StageRejected},
	models.StagePreparing:   {models.StageDrafting, models.StageRejected},
	models.StageDrafting:    {models.StageSubmitted, models.StageRejected},
	models.StageSubmitted:   {models.StageCompleted, models.StageRejected},
}

func transitionAllowed(from, to models.Stage) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStage advances an opportunity through the lifecycle, rejecting
// moves the stage machine does not permit.
func (s *Store) UpdateStage(ctx context.Context, id uuid.UUID, to models.Stage) (models.Opportunity, error) {
	current, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return current, err
	}
	if !transitionAllowed(current.Stage, to) {
		return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Stage, to)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE opportunities
		SET stage = $2, stage_updated_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING `+oppCols, id, string(to))
	updated, err := scanOpportunity(row.Scan)
	if err != nil {
		return updated, fmt.Errorf("failed to update stage: %w", err)
	}
	return updated, nil
}

// SetRequiredDocs replaces the requirement linkage on a tracked opportunity.
func (s *Store) SetRequiredDocs(ctx context.Context, id uuid.UUID, docIDs []uuid.UUID) error {
	if docIDs == nil {
		docIDs = []uuid.UUID{}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE opportunities SET required_doc_ids = $2, updated_at = NOW() WHERE id = $1
	`, id, docIDs)
	if err != nil {
		return fmt.Errorf("failed to set required docs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// KnownKeys returns the dedup keys of every tracked opportunity so scans
// can skip what the user already follows.
func (s *Store) KnownKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT dedup_key FROM opportunities")
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan dedup key: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}

// ---- documents ----

func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, status, is_template, linked_opportunity_ids, created_at, updated_at
		FROM documents ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var status string
		if err := rows.Scan(&d.ID, &d.Name, &status, &d.IsTemplate, &d.LinkedOpportunityIDs, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Status = models.DocStatus(status)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) SaveDocument(ctx context.Context, d models.Document) (models.Document, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DocNeeded
	}
	if d.LinkedOpportunityIDs == nil {
		d.LinkedOpportunityIDs = []uuid.UUID{}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, name, status, is_template, linked_opportunity_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			is_template = EXCLUDED.is_template,
			linked_opportunity_ids = EXCLUDED.linked_opportunity_ids,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, d.ID, d.Name, string(d.Status), d.IsTemplate, d.LinkedOpportunityIDs).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, fmt.Errorf("failed to save document: %w", err)
	}
	return d, nil
}

// ---- contacts ----

func (s *Store) ListContacts(ctx context.Context) ([]models.Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, organization, role, email, created_at
		FROM contacts ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Organization, &c.Role, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) SaveContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (id, name, organization, role, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			organization = EXCLUDED.organization,
			role = EXCLUDED.role,
			email = EXCLUDED.email
		RETURNING created_at
	`, c.ID, c.Name, c.Organization, c.Role, c.Email).Scan(&c.CreatedAt)
	if err != nil {
		return c, fmt.Errorf("failed to save contact: %w", err)
	}
	return c, nil
}
