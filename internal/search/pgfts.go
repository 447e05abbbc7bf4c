package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the content table using plainto_tsquery and ts_rank,
// with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	where := "c.fts @@ " + tsQuery
	if q.FilterFamily != "" {
		where += fmt.Sprintf(" AND ct.family = $%d", argN)
		args = append(args, q.FilterFamily)
		argN++
	}
	if q.FilterTenantID != 0 {
		where += fmt.Sprintf(" AND c.tenant_id = $%d", argN)
		args = append(args, q.FilterTenantID)
		argN++
	}
	if q.PublicOnly {
		where += " AND c.access_type = 'public'"
	}

	base := fmt.Sprintf(`
		FROM content c
		JOIN content_types ct ON ct.id = c.content_type_id
		WHERE %s`, where)

	countSQL := "SELECT count(*) " + base

	dataSQL := fmt.Sprintf(`
		SELECT c.id::text, c.title,
			ts_headline('english', c.title, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			ct.family, coalesce(c.metadata->>'kind', ''), c.tenant_id, c.access_type
		%s
		ORDER BY ts_rank(c.fts, %s) DESC
		LIMIT %d OFFSET %d`, tsQuery, base, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.Family, &r.Kind, &r.TenantID, &r.AccessType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all indexable content for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ContentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id::text, c.title, ct.family, coalesce(c.metadata->>'kind', ''), c.tenant_id, c.access_type
		FROM content c
		JOIN content_types ct ON ct.id = c.content_type_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	defer rows.Close()

	records := make([]ContentRecord, 0)
	for rows.Next() {
		var rec ContentRecord
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Family, &rec.Kind, &rec.TenantID, &rec.AccessType); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content: %w", err)
	}

	return records, nil
}
