package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/adarchive-ingest/internal/entity"
)

// TermRepoImpl provides the PostgreSQL-backed implementation of the
// TermRepository interface.
type TermRepoImpl struct {
	db *pgxpool.Pool
}

// NewTermRepo creates a new instance of TermRepoImpl.
func NewTermRepo(db *pgxpool.Pool) *TermRepoImpl {
	return &TermRepoImpl{db: db}
}

// ClaimPending moves up to limit claimable terms to processing and returns
// them. The select-and-mark pair runs in one transaction so a concurrent
// claimer can never double-process a term.
func (r *TermRepoImpl) ClaimPending(ctx context.Context, limit int) ([]entity.SearchTerm, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, search_term, country, min_ad_creation_time
		FROM search_terms
		WHERE status IN ('pending', 'error')
		ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	query += ` FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var terms []entity.SearchTerm
	ids := []int64{}
	for rows.Next() {
		var t entity.SearchTerm
		if err := rows.Scan(&t.ID, &t.Text, &t.Country, &t.MinAdCreationTime); err != nil {
			rows.Close()
			return nil, err
		}
		t.Status = entity.TermProcessing
		terms = append(terms, t)
		ids = append(ids, t.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE search_terms SET status = 'processing' WHERE id = ANY($1)`, ids)
		if err != nil {
			return nil, err
		}
	}
	return terms, tx.Commit(ctx)
}

// MarkStatus advances a single term's status.
func (r *TermRepoImpl) MarkStatus(ctx context.Context, id int64, status entity.TermStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE search_terms SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

// ResetStuck returns terms abandoned mid-flight by a crashed run to pending.
func (r *TermRepoImpl) ResetStuck(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE search_terms SET status = 'pending' WHERE status = 'processing'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
