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

const docTSV = "to_tsvector('english', d.title || ' ' || d.content)"
const discTSV = "to_tsvector('english', c.content)"

// Search executes a UNION ALL query across documents and discussions using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Both legs are
// scoped to what the querying user may read.
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
	args := []any{q.Text, q.UserID}
	argN := 3

	accessWhere := `(d.owner_id = $2
		OR d.access_mode = 'public'
		OR EXISTS(SELECT 1 FROM document_access a WHERE a.document_id = d.id AND a.user_id = $2))`

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultDocument {
		docWhere := docTSV + " @@ " + tsQuery + " AND " + accessWhere
		if q.FilterDocType != "" {
			docWhere += fmt.Sprintf(" AND d.document_type = $%d", argN)
			args = append(args, q.FilterDocType)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'document'::text AS type, d.id, d.title,
				ts_headline('english', d.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.id AS document_id, d.document_type,
				ts_rank(%s, %s) AS rank
			FROM documents d
			WHERE %s`, tsQuery, docTSV, tsQuery, docWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultDiscussion {
		discWhere := discTSV + " @@ " + tsQuery + " AND " + accessWhere
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'discussion'::text AS type, c.id, u.name AS title,
				ts_headline('english', c.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.document_id, d.document_type,
				ts_rank(%s, %s) AS rank
			FROM discussions c
			JOIN documents d ON d.id = c.document_id
			JOIN users u ON u.id = c.author_id
			WHERE %s`, tsQuery, discTSV, tsQuery, discWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, document_id, document_type
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

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
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.DocumentID, &r.DocumentType); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, []DiscussionRecord, error) {
	docRows, err := p.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.content, d.document_type, d.access_mode, d.owner_id,
			COALESCE(ARRAY_AGG(a.user_id) FILTER (WHERE a.user_id IS NOT NULL), '{}')
		FROM documents d
		LEFT JOIN document_access a ON a.document_id = d.id
		GROUP BY d.id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()

	documents := make([]DocumentRecord, 0)
	for docRows.Next() {
		var d DocumentRecord
		var allowed []byte
		if err := docRows.Scan(&d.ID, &d.Title, &d.Content, &d.DocumentType, &d.AccessMode, &d.OwnerID, &allowed); err != nil {
			return nil, nil, fmt.Errorf("scan document: %w", err)
		}
		d.AllowedUserIDs = parseTextArray(string(allowed))
		documents = append(documents, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate documents: %w", err)
	}

	discRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.content, u.name, c.document_id, d.access_mode, d.owner_id,
			COALESCE(ARRAY_AGG(a.user_id) FILTER (WHERE a.user_id IS NOT NULL), '{}')
		FROM discussions c
		JOIN documents d ON d.id = c.document_id
		JOIN users u ON u.id = c.author_id
		LEFT JOIN document_access a ON a.document_id = d.id
		GROUP BY c.id, u.name, d.id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load discussions: %w", err)
	}
	defer discRows.Close()

	discussions := make([]DiscussionRecord, 0)
	for discRows.Next() {
		var d DiscussionRecord
		var allowed []byte
		if err := discRows.Scan(&d.ID, &d.Content, &d.AuthorName, &d.DocumentID, &d.AccessMode, &d.OwnerID, &allowed); err != nil {
			return nil, nil, fmt.Errorf("scan discussion: %w", err)
		}
		d.AllowedUserIDs = parseTextArray(string(allowed))
		discussions = append(discussions, d)
	}
	if err := discRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate discussions: %w", err)
	}

	return documents, discussions, nil
}

// parseTextArray decodes the {a,b,c} wire form of a Postgres text array. The
// values are random hex IDs, so quoting and escapes never appear.
func parseTextArray(raw string) []string {
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
