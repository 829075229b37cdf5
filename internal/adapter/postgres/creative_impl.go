package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/adarchive-ingest/internal/entity"
)

// CreativeRepoImpl provides the PostgreSQL-backed implementation of the
// CreativeRepository interface.
type CreativeRepoImpl struct {
	db *pgxpool.Pool
}

// NewCreativeRepo creates a new instance of CreativeRepoImpl.
func NewCreativeRepo(db *pgxpool.Pool) *CreativeRepoImpl {
	return &CreativeRepoImpl{db: db}
}

// Upsert writes the representative creative for a page, one row per page.
func (r *CreativeRepoImpl) Upsert(ctx context.Context, c *entity.Creative) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO page_top_creatives (page_id, ad_id, media_type, media_url, reach, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (page_id) DO UPDATE SET
			ad_id = EXCLUDED.ad_id,
			media_type = EXCLUDED.media_type,
			media_url = EXCLUDED.media_url,
			reach = EXCLUDED.reach,
			updated_at = NOW()`,
		c.PageID, c.AdID, string(c.Kind), c.URL, c.Reach)
	return err
}

// Get returns the stored creative for a page, or nil when none exists.
func (r *CreativeRepoImpl) Get(ctx context.Context, pageID string) (*entity.Creative, error) {
	var c entity.Creative
	err := r.db.QueryRow(ctx, `
		SELECT page_id, ad_id, media_type, media_url, reach, updated_at
		FROM page_top_creatives
		WHERE page_id = $1`,
		pageID,
	).Scan(&c.PageID, &c.AdID, &c.Kind, &c.URL, &c.Reach, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
