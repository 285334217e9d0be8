package domain

import "time"

type Publication struct {
	ID          int64     `db:"id" json:"id,omitempty"`
	SourceID    string    `db:"source_id" json:"source_id"`
	ExternalID  string    `db:"external_id" json:"external_id"`
	AssetName   string    `db:"asset_name" json:"asset_name"`
	SourceURL   string    `db:"source_url" json:"source_url"`
	Title       string    `db:"title" json:"title"`
	ReceiptID   string    `db:"receipt_id" json:"receipt_id"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	NextPostAt  time.Time `db:"next_post_at" json:"next_post_at"`
}

// Receipt is what a publishing sink returns for an accepted post.
type Receipt struct {
	ID string
}

type SourceStats struct {
	ID              int64     `db:"id"`
	SourceID        string    `db:"source_id"`
	LastPublishedAt time.Time `db:"last_published_at"`
	LastAssetName   string    `db:"last_asset_name"`
	TotalPublished  int64     `db:"total_published"`
}
