// Package storage holds the PostgreSQL and Redis adapters behind the
// monitoring pipeline: website records, append-only check history and
// the external-link probe cache.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
)

// PostgresStore handles interactions with the PostgreSQL database.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// InitSchema creates the tables and indexes if they do not exist yet.
// Structured fields (baseline map, diffs, crawl results) live in JSONB
// columns; history rows cascade away with their website.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS websites (
    id                    TEXT PRIMARY KEY,
    name                  TEXT NOT NULL,
    root_url              TEXT NOT NULL,
    active                BOOLEAN NOT NULL DEFAULT TRUE,
    interval_minutes      INTEGER NOT NULL DEFAULT 1440,
    auto_crawl            BOOLEAN NOT NULL DEFAULT TRUE,
    auto_visual           BOOLEAN NOT NULL DEFAULT TRUE,
    auto_blur             BOOLEAN NOT NULL DEFAULT FALSE,
    auto_performance      BOOLEAN NOT NULL DEFAULT FALSE,
    auto_full             BOOLEAN NOT NULL DEFAULT FALSE,
    max_crawl_depth       INTEGER NOT NULL DEFAULT 2,
    visual_diff_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
    exclude_keywords      JSONB NOT NULL DEFAULT '[]',
    ignore_regions        JSONB NOT NULL DEFAULT '[]',
    baselines             JSONB NOT NULL DEFAULT '{}',
    primary_baseline_url  TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS check_history (
    id            TEXT PRIMARY KEY,
    website_id    TEXT NOT NULL REFERENCES websites(id) ON DELETE CASCADE,
    check_type    TEXT NOT NULL,
    status        TEXT NOT NULL,
    significant   BOOLEAN NOT NULL DEFAULT FALSE,
    reasons       JSONB NOT NULL DEFAULT '[]',
    new_baselines JSONB NOT NULL DEFAULT '[]',
    error         TEXT NOT NULL DEFAULT '',
    crawl         JSONB,
    comparisons   JSONB,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_history_website
    ON check_history (website_id, started_at DESC);
`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

const websiteColumns = `id, name, root_url, active, interval_minutes,
	auto_crawl, auto_visual, auto_blur, auto_performance, auto_full,
	max_crawl_depth, visual_diff_threshold, exclude_keywords,
	ignore_regions, baselines, primary_baseline_url, created_at, updated_at`

// siteJSONParams substitutes empty collections for nil ones. The jsonb
// columns are NOT NULL, and pgx encodes a nil slice or map as SQL NULL.
func siteJSONParams(site *domain.Website) ([]string, []domain.IgnoreRegion, map[string]domain.BaselineEntry) {
	keywords := site.ExcludeKeywords
	if keywords == nil {
		keywords = []string{}
	}
	regions := site.IgnoreRegions
	if regions == nil {
		regions = []domain.IgnoreRegion{}
	}
	baselines := site.Baselines
	if baselines == nil {
		baselines = map[string]domain.BaselineEntry{}
	}
	return keywords, regions, baselines
}

func (s *PostgresStore) CreateWebsite(ctx context.Context, site *domain.Website) error {
	keywords, regions, baselines := siteJSONParams(site)
	_, err := s.db.Exec(ctx,
		`INSERT INTO websites (`+websiteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		site.ID, site.Name, site.RootURL, site.Active, site.IntervalMinutes,
		site.AutoCrawl, site.AutoVisual, site.AutoBlur, site.AutoPerformance, site.AutoFull,
		site.MaxCrawlDepth, site.VisualDiffThreshold, keywords,
		regions, baselines, site.PrimaryBaselineURL,
		site.CreatedAt, site.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert website: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWebsite(ctx context.Context, id string) (*domain.Website, error) {
	row := s.db.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = $1`, id)
	site, err := scanWebsite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrWebsiteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select website: %w", err)
	}
	return site, nil
}

func (s *PostgresStore) ListWebsites(ctx context.Context, activeOnly bool) ([]domain.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + websiteColumns + ` FROM websites WHERE active ORDER BY created_at`
	}
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()

	var sites []domain.Website
	for rows.Next() {
		site, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// ListActive feeds the scheduler's job table.
func (s *PostgresStore) ListActive(ctx context.Context) ([]domain.Website, error) {
	return s.ListWebsites(ctx, true)
}

func (s *PostgresStore) UpdateWebsite(ctx context.Context, site *domain.Website) error {
	keywords, regions, baselines := siteJSONParams(site)
	tag, err := s.db.Exec(ctx,
		`UPDATE websites SET
		    name = $2, root_url = $3, active = $4, interval_minutes = $5,
		    auto_crawl = $6, auto_visual = $7, auto_blur = $8,
		    auto_performance = $9, auto_full = $10, max_crawl_depth = $11,
		    visual_diff_threshold = $12, exclude_keywords = $13,
		    ignore_regions = $14, baselines = $15,
		    primary_baseline_url = $16, updated_at = NOW()
		 WHERE id = $1`,
		site.ID, site.Name, site.RootURL, site.Active, site.IntervalMinutes,
		site.AutoCrawl, site.AutoVisual, site.AutoBlur, site.AutoPerformance,
		site.AutoFull, site.MaxCrawlDepth, site.VisualDiffThreshold,
		keywords, regions, baselines,
		site.PrimaryBaselineURL)
	if err != nil {
		return fmt.Errorf("update website: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrWebsiteNotFound, site.ID)
	}
	return nil
}

// DeleteWebsite removes the record; its check history follows through
// the foreign key cascade.
func (s *PostgresStore) DeleteWebsite(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM websites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete website: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrWebsiteNotFound, id)
	}
	return nil
}

func scanWebsite(row pgx.Row) (*domain.Website, error) {
	var site domain.Website
	err := row.Scan(
		&site.ID, &site.Name, &site.RootURL, &site.Active, &site.IntervalMinutes,
		&site.AutoCrawl, &site.AutoVisual, &site.AutoBlur, &site.AutoPerformance, &site.AutoFull,
		&site.MaxCrawlDepth, &site.VisualDiffThreshold, &site.ExcludeKeywords,
		&site.IgnoreRegions, &site.Baselines, &site.PrimaryBaselineURL,
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if site.Baselines == nil {
		site.Baselines = make(map[string]domain.BaselineEntry)
	}
	return &site, nil
}

const checkColumns = `id, website_id, check_type, status, significant,
	reasons, new_baselines, error, crawl, comparisons, started_at, finished_at`

// SaveCheck appends one completed check. History rows are never
// updated.
func (s *PostgresStore) SaveCheck(ctx context.Context, record *domain.CheckRecord) error {
	reasons := record.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	newBaselines := record.NewBaselines
	if newBaselines == nil {
		newBaselines = []string{}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO check_history (`+checkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.WebsiteID, string(record.CheckType), string(record.Status),
		record.Significant, reasons, newBaselines, record.Error,
		record.Crawl, record.Comparisons, record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert check record: %w", err)
	}
	return nil
}

// ListChecks returns a website's most recent checks, newest first.
func (s *PostgresStore) ListChecks(ctx context.Context, websiteID string, limit int) ([]domain.CheckRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+checkColumns+`
		 FROM check_history WHERE website_id = $1
		 ORDER BY started_at DESC LIMIT $2`,
		websiteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var records []domain.CheckRecord
	for rows.Next() {
		var rec domain.CheckRecord
		if err := rows.Scan(
			&rec.ID, &rec.WebsiteID, &rec.CheckType, &rec.Status, &rec.Significant,
			&rec.Reasons, &rec.NewBaselines, &rec.Error, &rec.Crawl, &rec.Comparisons,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan check record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastCheckTime anchors scheduling across restarts. The zero time with
// a nil error means the website has never been checked.
func (s *PostgresStore) LastCheckTime(ctx context.Context, websiteID string) (time.Time, error) {
	var last *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT MAX(started_at) FROM check_history WHERE website_id = $1`,
		websiteID).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("last check time: %w", err)
	}
	if last == nil {
		return time.Time{}, nil
	}
	return last.UTC(), nil
}

// StatsSummary is the roll-up served by the stats endpoint.
type StatsSummary struct {
	Websites          int            `json:"websites"`
	ActiveWebsites    int            `json:"active_websites"`
	ChecksTotal       int            `json:"checks_total"`
	SignificantChecks int            `json:"significant_checks"`
	ChecksByStatus    map[string]int `json:"checks_by_status"`
}

func (s *PostgresStore) Stats(ctx context.Context) (*StatsSummary, error) {
	stats := &StatsSummary{ChecksByStatus: make(map[string]int)}

	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE active) FROM websites`,
	).Scan(&stats.Websites, &stats.ActiveWebsites)
	if err != nil {
		return nil, fmt.Errorf("website stats: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT status, COUNT(*), COUNT(*) FILTER (WHERE significant)
		 FROM check_history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("check stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count, significant int
		if err := rows.Scan(&status, &count, &significant); err != nil {
			return nil, fmt.Errorf("scan check stats: %w", err)
		}
		stats.ChecksByStatus[status] = count
		stats.ChecksTotal += count
		stats.SignificantChecks += significant
	}
	return stats, rows.Err()
}
