package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/adarchive-ingest/internal/entity"
)

// PageRepoImpl provides the PostgreSQL-backed implementation of the
// PageRepository interface. The ads_status and media_status columns are the
// durable work queues of the enrichment and media stages.
type PageRepoImpl struct {
	db *pgxpool.Pool
}

// NewPageRepo creates a new instance of PageRepoImpl.
func NewPageRepo(db *pgxpool.Pool) *PageRepoImpl {
	return &PageRepoImpl{db: db}
}

// UpsertPages inserts-or-merges pages by page_id. Statuses are only set on
// insert; re-discovering an existing page must never regress its state
// machines.
func (r *PageRepoImpl) UpsertPages(ctx context.Context, pages []entity.Page) error {
	if len(pages) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pages {
		batch.Queue(`
			INSERT INTO pages (page_id, name, country, total_reach, active_total_reach, ads_status, media_status, media_retry_count)
			VALUES ($1, $2, $3, $4, $5, 'pending', 'pending', 0)
			ON CONFLICT (page_id) DO UPDATE SET
				name = EXCLUDED.name,
				country = EXCLUDED.country`,
			p.PageID, p.Name, p.Country, p.TotalReach, p.ActiveTotalReach)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// KnownPageIDs returns every stored page_id as a set.
func (r *PageRepoImpl) KnownPageIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT page_id FROM pages`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// ClaimAdsPending claims pages awaiting ad enrichment. Errored pages are
// not claimable here; RequeueErroredAds returns them to pending at the next
// run start, so a page that keeps failing cannot pin the polling loop.
func (r *PageRepoImpl) ClaimAdsPending(ctx context.Context, limit int) ([]entity.Page, error) {
	return r.claim(ctx, "ads_status", `ads_status = 'pending'`, limit)
}

// ClaimMediaPending claims pages awaiting media extraction. Only enriched
// pages qualify: completed enrichment is the sole gate into this stage.
// Crashed pages are excluded; they need an operator reset.
func (r *PageRepoImpl) ClaimMediaPending(ctx context.Context, limit int) ([]entity.Page, error) {
	return r.claim(ctx, "media_status",
		`media_status IN ('pending', 'error') AND ads_status = 'completed'`, limit)
}

func (r *PageRepoImpl) claim(ctx context.Context, column, where string, limit int) ([]entity.Page, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT page_id, name, country, total_reach, active_total_reach, ads_status, media_status, media_retry_count
		FROM pages
		WHERE %s
		ORDER BY page_id`, where)
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

	var pages []entity.Page
	ids := []string{}
	for rows.Next() {
		var p entity.Page
		if err := rows.Scan(&p.PageID, &p.Name, &p.Country, &p.TotalReach,
			&p.ActiveTotalReach, &p.AdsStatus, &p.MediaStatus, &p.MediaRetryCount); err != nil {
			rows.Close()
			return nil, err
		}
		pages = append(pages, p)
		ids = append(ids, p.PageID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf(
			`UPDATE pages SET %s = 'processing' WHERE page_id = ANY($1)`, column), ids)
		if err != nil {
			return nil, err
		}
	}
	return pages, tx.Commit(ctx)
}

// MarkAdsStatus advances a page's enrichment state machine.
func (r *PageRepoImpl) MarkAdsStatus(ctx context.Context, pageID string, status entity.PageStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE pages SET ads_status = $2 WHERE page_id = $1`, pageID, string(status))
	return err
}

// MarkMediaStatus advances a page's media state machine.
func (r *PageRepoImpl) MarkMediaStatus(ctx context.Context, pageID string, status entity.PageStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE pages SET media_status = $2 WHERE page_id = $1`, pageID, string(status))
	return err
}

// SetReach stores the recomputed reach aggregates for a page.
func (r *PageRepoImpl) SetReach(ctx context.Context, pageID string, total, active int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE pages SET total_reach = $2, active_total_reach = $3 WHERE page_id = $1`,
		pageID, total, active)
	return err
}

// IncrementMediaRetry bumps the retry counter and escalates media_status to
// crashed once the counter reaches the ceiling. One statement, so racing
// workers cannot lose an increment.
func (r *PageRepoImpl) IncrementMediaRetry(ctx context.Context, pageID string) (entity.PageStatus, error) {
	var status entity.PageStatus
	err := r.db.QueryRow(ctx, `
		UPDATE pages
		SET media_retry_count = media_retry_count + 1,
		    media_status = CASE WHEN media_retry_count + 1 >= $2 THEN 'crashed' ELSE 'error' END
		WHERE page_id = $1
		RETURNING media_status`,
		pageID, entity.MediaRetryCeiling,
	).Scan(&status)
	return status, err
}

// RequeueErroredAds returns pages whose enrichment failed to pending so the
// new run retries them. Failures within a run stay parked on error.
func (r *PageRepoImpl) RequeueErroredAds(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE pages SET ads_status = 'pending' WHERE ads_status = 'error'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResetStuck returns pages left in processing by a crashed run to pending,
// for both state machines.
func (r *PageRepoImpl) ResetStuck(ctx context.Context) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var total int64
	tag, err := tx.Exec(ctx,
		`UPDATE pages SET ads_status = 'pending' WHERE ads_status = 'processing'`)
	if err != nil {
		return 0, err
	}
	total += tag.RowsAffected()

	tag, err = tx.Exec(ctx,
		`UPDATE pages SET media_status = 'pending' WHERE media_status = 'processing'`)
	if err != nil {
		return 0, err
	}
	total += tag.RowsAffected()

	return total, tx.Commit(ctx)
}
