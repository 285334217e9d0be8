package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"trend_reposter/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	FetchTopCandidates(ctx context.Context, limit int) ([]domain.Candidate, error)
}

type ScheduleStore interface {
	Init(now time.Time, delay time.Duration) (bool, error)
	Read() (domain.ScheduleState, error)
	Write(state domain.ScheduleState) error
}

type AssetStore interface {
	EnsureDir() error
	Exists(name string) (bool, error)
	Download(ctx context.Context, rawURL, name string) (*domain.Asset, error)
}

type Poster interface {
	Post(ctx context.Context, caption, mediaPath string) (*domain.Receipt, error)
}

type PublicationStore interface {
	Insert(ctx context.Context, pub *domain.Publication) (int64, error)
}

type SourceStatsStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SourceStats, error)
	Update(ctx context.Context, stats *domain.SourceStats) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, pub *domain.Publication) error
	Close() error
}
