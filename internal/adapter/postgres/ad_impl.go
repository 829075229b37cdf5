package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/adarchive-ingest/internal/entity"
)

// AdRepoImpl provides the PostgreSQL-backed implementation of the
// AdRepository interface.
type AdRepoImpl struct {
	db *pgxpool.Pool
}

// NewAdRepo creates a new instance of AdRepoImpl.
func NewAdRepo(db *pgxpool.Pool) *AdRepoImpl {
	return &AdRepoImpl{db: db}
}

// UpsertAds inserts-or-merges a batch of ads by ad_id.
func (r *AdRepoImpl) UpsertAds(ctx context.Context, ads []entity.Ad) error {
	if len(ads) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range ads {
		batch.Queue(`
			INSERT INTO ads (ad_id, page_id, creation_time, delivery_start, delivery_stop, snapshot_url, reach, is_active, beneficiary, search_term_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (ad_id) DO UPDATE SET
				page_id = EXCLUDED.page_id,
				creation_time = EXCLUDED.creation_time,
				delivery_start = EXCLUDED.delivery_start,
				delivery_stop = EXCLUDED.delivery_stop,
				snapshot_url = EXCLUDED.snapshot_url,
				reach = EXCLUDED.reach,
				is_active = EXCLUDED.is_active,
				beneficiary = EXCLUDED.beneficiary,
				search_term_id = EXCLUDED.search_term_id`,
			a.AdID, a.PageID, a.CreationTime, a.DeliveryStart, a.DeliveryStop,
			a.SnapshotURL, a.Reach, a.IsActive, a.Beneficiary, a.SearchTermID)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// TopBySnapshotReach returns up to n ads of a page carrying a snapshot URL,
// highest reach first, ad_id ascending as a deterministic tiebreak.
func (r *AdRepoImpl) TopBySnapshotReach(ctx context.Context, pageID string, n int) ([]entity.Ad, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ad_id, page_id, snapshot_url, reach
		FROM ads
		WHERE page_id = $1 AND snapshot_url <> ''
		ORDER BY reach DESC, ad_id ASC
		LIMIT $2`,
		pageID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ads []entity.Ad
	for rows.Next() {
		var a entity.Ad
		if err := rows.Scan(&a.AdID, &a.PageID, &a.SnapshotURL, &a.Reach); err != nil {
			return nil, err
		}
		ads = append(ads, a)
	}
	return ads, rows.Err()
}
