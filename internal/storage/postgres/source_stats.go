package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"trend_reposter/internal/domain"
)

type SourceStatsStore struct {
	db *sqlx.DB
}

func NewSourceStatsStore(db *sqlx.DB) *SourceStatsStore {
	return &SourceStatsStore{db: db}
}

func (s *SourceStatsStore) Get(ctx context.Context, sourceID string) (*domain.SourceStats, error) {
	var stats domain.SourceStats
	query := `
		SELECT id, source_id, last_published_at, last_asset_name, total_published
		FROM source_stats
		WHERE source_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &stats, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		// Sources that never published start from zero.
		return &domain.SourceStats{SourceID: sourceID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *SourceStatsStore) Update(ctx context.Context, stats *domain.SourceStats) error {
	query := `
		INSERT INTO source_stats (source_id, last_published_at, last_asset_name, total_published)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id) DO UPDATE SET
			last_published_at = EXCLUDED.last_published_at,
			last_asset_name = EXCLUDED.last_asset_name,
			total_published = EXCLUDED.total_published`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		stats.SourceID,
		stats.LastPublishedAt,
		stats.LastAssetName,
		stats.TotalPublished,
	)
	return err
}
