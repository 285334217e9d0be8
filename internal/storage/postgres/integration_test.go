//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"trend_reposter/internal/domain"
	"trend_reposter/migrations"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(migrations.Run(db.DB))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM publications")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM source_stats")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) newPublication(name string) *domain.Publication {
	now := time.Now().Truncate(time.Microsecond)
	return &domain.Publication{
		SourceID:    "reddit",
		ExternalID:  "t3_" + name,
		AssetName:   name,
		SourceURL:   "https://i.example.com/" + name,
		Title:       "hmmm",
		ReceiptID:   "42",
		PublishedAt: now,
		NextPostAt:  now.Add(5 * time.Hour),
	}
}

func (s *PostgresIntegrationSuite) TestPublicationStore_Insert() {
	store := NewPublicationStore(s.db)

	id, err := store.Insert(s.ctx, s.newPublication("abc.jpg"))
	s.NoError(err)
	s.Greater(id, int64(0))

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM publications WHERE asset_name = $1", "abc.jpg")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestPublicationStore_InsertSameAssetKeepsOneRow() {
	store := NewPublicationStore(s.db)

	pub := s.newPublication("abc.jpg")
	id1, err := store.Insert(s.ctx, pub)
	s.NoError(err)

	pub.ReceiptID = "43"
	id2, err := store.Insert(s.ctx, pub)
	s.NoError(err)
	s.Equal(id1, id2)

	var receipt string
	err = s.db.GetContext(s.ctx, &receipt, "SELECT receipt_id FROM publications WHERE id = $1", id1)
	s.NoError(err)
	s.Equal("43", receipt)
}

func (s *PostgresIntegrationSuite) TestSourceStatsStore_GetNew() {
	store := NewSourceStatsStore(s.db)

	stats, err := store.Get(s.ctx, "new-source")
	s.NoError(err)
	s.NotNil(stats)
	s.Equal("new-source", stats.SourceID)
	s.True(stats.LastPublishedAt.IsZero())
	s.Equal(int64(0), stats.TotalPublished)
}

func (s *PostgresIntegrationSuite) TestSourceStatsStore_UpdateAndGet() {
	store := NewSourceStatsStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	err := store.Update(s.ctx, &domain.SourceStats{
		SourceID:        "reddit",
		LastPublishedAt: now,
		LastAssetName:   "abc.jpg",
		TotalPublished:  3,
	})
	s.NoError(err)

	got, err := store.Get(s.ctx, "reddit")
	s.NoError(err)
	s.Equal("abc.jpg", got.LastAssetName)
	s.Equal(int64(3), got.TotalPublished)
	s.WithinDuration(now, got.LastPublishedAt, time.Second)

	got.TotalPublished++
	got.LastAssetName = "def.png"
	s.NoError(store.Update(s.ctx, got))

	got, err = store.Get(s.ctx, "reddit")
	s.NoError(err)
	s.Equal("def.png", got.LastAssetName)
	s.Equal(int64(4), got.TotalPublished)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	pubs := NewPublicationStore(s.db)
	stats := NewSourceStatsStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		pub := s.newPublication("tx.jpg")
		if _, err := pubs.Insert(ctx, pub); err != nil {
			return err
		}
		return stats.Update(ctx, &domain.SourceStats{
			SourceID:        pub.SourceID,
			LastPublishedAt: pub.PublishedAt,
			LastAssetName:   pub.AssetName,
			TotalPublished:  1,
		})
	})
	s.NoError(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM publications WHERE asset_name = $1", "tx.jpg")
	s.NoError(err)
	s.Equal(1, count)

	err = s.db.GetContext(s.ctx, &count, "SELECT total_published FROM source_stats WHERE source_id = $1", "reddit")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	pubs := NewPublicationStore(s.db)

	_, err := pubs.Insert(s.ctx, s.newPublication("kept.jpg"))
	s.NoError(err)

	errAbort := errors.New("abort")
	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := pubs.Insert(ctx, s.newPublication("rolled.jpg")); err != nil {
			return err
		}
		return errAbort
	})
	s.ErrorIs(err, errAbort)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM publications WHERE asset_name = $1", "rolled.jpg")
	s.NoError(err)
	s.Equal(0, count)

	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM publications WHERE asset_name = $1", "kept.jpg")
	s.NoError(err)
	s.Equal(1, count)
}
