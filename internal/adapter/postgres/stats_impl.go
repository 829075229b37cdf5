package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/adarchive-ingest/internal/entity"
)

// StatsRepoImpl provides the PostgreSQL-backed implementation of the
// StatsRepository interface.
type StatsRepoImpl struct {
	db *pgxpool.Pool
}

// NewStatsRepo creates a new instance of StatsRepoImpl.
func NewStatsRepo(db *pgxpool.Pool) *StatsRepoImpl {
	return &StatsRepoImpl{db: db}
}

// Snapshot gathers per-status counts for every queue. The counts come from
// separate statements, so a snapshot is only approximately consistent; good
// enough for an operational readout.
func (r *StatsRepoImpl) Snapshot(ctx context.Context) (*entity.PipelineStats, error) {
	stats := &entity.PipelineStats{
		Terms:      make(map[string]int64),
		PagesAds:   make(map[string]int64),
		PagesMedia: make(map[string]int64),
	}

	if err := r.countByStatus(ctx,
		`SELECT status, COUNT(*) FROM search_terms GROUP BY status`, stats.Terms); err != nil {
		return nil, err
	}
	if err := r.countByStatus(ctx,
		`SELECT ads_status, COUNT(*) FROM pages GROUP BY ads_status`, stats.PagesAds); err != nil {
		return nil, err
	}
	if err := r.countByStatus(ctx,
		`SELECT media_status, COUNT(*) FROM pages GROUP BY media_status`, stats.PagesMedia); err != nil {
		return nil, err
	}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_tokens WHERE `+leasableWhere,
	).Scan(&stats.LeasableTokens)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *StatsRepoImpl) countByStatus(ctx context.Context, query string, into map[string]int64) error {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		into[status] = n
	}
	return rows.Err()
}
