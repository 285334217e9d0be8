package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"trend_reposter/internal/domain"
)

type PublicationStore struct {
	db *sqlx.DB
}

func NewPublicationStore(db *sqlx.DB) *PublicationStore {
	return &PublicationStore{db: db}
}

// Insert records a publication. A second publication of the same asset name
// refreshes the existing row and returns its id.
func (s *PublicationStore) Insert(ctx context.Context, pub *domain.Publication) (int64, error) {
	query := `
		INSERT INTO publications (
			source_id, external_id, asset_name, source_url, title,
			receipt_id, published_at, next_post_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (asset_name) DO UPDATE SET
			receipt_id = EXCLUDED.receipt_id,
			published_at = EXCLUDED.published_at,
			next_post_at = EXCLUDED.next_post_at
		RETURNING id`

	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id, query,
		pub.SourceID,
		pub.ExternalID,
		pub.AssetName,
		pub.SourceURL,
		pub.Title,
		pub.ReceiptID,
		pub.PublishedAt,
		pub.NextPostAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert publication %q: %w", pub.AssetName, err)
	}
	return id, nil
}
