package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trend_reposter/internal/assets"
	"trend_reposter/internal/clock"
	"trend_reposter/internal/config"
	"trend_reposter/internal/domain"
)

// ErrNoFreshCandidates means every fetched candidate was already published
// or unusable. The schedule is left as is so the next check tries again.
var ErrNoFreshCandidates = errors.New("no fresh candidates")

// Ledger groups the stores that keep publication history. It is optional.
type Ledger struct {
	Publications PublicationStore
	Stats        SourceStatsStore
	TxManager    TransactionManager
}

type RepostService struct {
	source   Source
	schedule ScheduleStore
	assets   AssetStore
	poster   Poster
	ledger   *Ledger
	events   EventPublisher
	clock    clock.Clock
	rand     Rand
	logger   *slog.Logger
	config   config.PostConfig
}

func NewRepostService(
	source Source,
	schedule ScheduleStore,
	assetStore AssetStore,
	poster Poster,
	ledger *Ledger,
	events EventPublisher,
	clk clock.Clock,
	rnd Rand,
	logger *slog.Logger,
	cfg config.PostConfig,
) *RepostService {
	return &RepostService{
		source:   source,
		schedule: schedule,
		assets:   assetStore,
		poster:   poster,
		ledger:   ledger,
		events:   events,
		clock:    clk,
		rand:     rnd,
		logger:   logger.With("source", source.ID()),
		config:   cfg,
	}
}

// PublishNext fetches the current top candidates and tries them in random
// order until one is published. Each candidate is tried at most once.
func (s *RepostService) PublishNext(ctx context.Context) (*domain.CycleStats, error) {
	startTime := s.clock.Now()
	s.logger.Info("starting publish cycle",
		"source_name", s.source.Name(),
		"limit", s.config.Limit,
	)

	candidates, err := s.source.FetchTopCandidates(ctx, s.config.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	s.logger.Info("fetched candidates", "count", len(candidates))

	stats := &domain.CycleStats{
		SourceID: s.source.ID(),
		Fetched:  len(candidates),
	}

	for _, i := range s.rand.Perm(len(candidates)) {
		stats.Attempts++

		pub, err := s.publish(ctx, candidates[i], stats)
		if err != nil {
			return stats, err
		}
		if pub == nil {
			stats.Skipped++
			continue
		}

		stats.Published = true
		stats.AssetName = pub.AssetName
		stats.NextPostAt = pub.NextPostAt
		stats.Duration = s.clock.Now().Sub(startTime)

		s.logger.Info("publish cycle completed",
			"asset", stats.AssetName,
			"attempts", stats.Attempts,
			"skipped", stats.Skipped,
			"errors", stats.Errors,
			"next_post_at", stats.NextPostAt,
			"duration", stats.Duration,
		)
		return stats, nil
	}

	stats.Duration = s.clock.Now().Sub(startTime)
	s.logger.Warn("no fresh candidates", "fetched", stats.Fetched, "skipped", stats.Skipped)

	return stats, ErrNoFreshCandidates
}

// Publish downloads and posts one candidate. It returns false without side
// effects when the candidate's asset is already on disk.
func (s *RepostService) Publish(ctx context.Context, c domain.Candidate) (bool, error) {
	pub, err := s.publish(ctx, c, &domain.CycleStats{})
	if err != nil {
		return false, err
	}
	return pub != nil, nil
}

func (s *RepostService) publish(ctx context.Context, c domain.Candidate, stats *domain.CycleStats) (*domain.Publication, error) {
	name, err := assets.NameFromURL(c.URL)
	if err != nil {
		s.logger.Warn("skipping candidate", "external_id", c.ExternalID, "error", err)
		return nil, nil
	}

	exists, err := s.assets.Exists(name)
	if err != nil {
		return nil, fmt.Errorf("check asset: %w", err)
	}
	if exists {
		s.logger.Debug("asset already exists", "asset", name, "external_id", c.ExternalID)
		return nil, nil
	}

	asset, err := s.assets.Download(ctx, c.URL, name)
	if err != nil {
		return nil, fmt.Errorf("download asset: %w", err)
	}

	s.logger.Info("posting asset", "asset", asset.Name, "path", asset.Path, "title", c.Title)

	receipt, err := s.poster.Post(ctx, s.config.Caption, asset.Path)
	if err != nil {
		return nil, fmt.Errorf("post asset: %w", err)
	}

	now := s.clock.Now()
	next := now.Add(randomDelay(s.rand, s.config.MinDelay, s.config.MaxDelay))
	if err := s.schedule.Write(domain.ScheduleState{NextPostTime: next}); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}

	s.logger.Info("posted asset", "asset", asset.Name, "receipt_id", receipt.ID, "next_post_at", next)

	pub := &domain.Publication{
		SourceID:    c.SourceID,
		ExternalID:  c.ExternalID,
		AssetName:   asset.Name,
		SourceURL:   c.URL,
		Title:       c.Title,
		ReceiptID:   receipt.ID,
		PublishedAt: now,
		NextPostAt:  next,
	}

	stats.Errors += s.record(ctx, pub)

	return pub, nil
}

// record writes the publication to the ledger and announces it. Failures
// are logged and counted; the post itself already happened.
func (s *RepostService) record(ctx context.Context, pub *domain.Publication) int {
	errs := 0

	if s.ledger != nil {
		if err := s.saveToLedger(ctx, pub); err != nil {
			s.logger.Error("record publication", "asset", pub.AssetName, "error", err)
			errs++
		}
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, pub); err != nil {
			s.logger.Error("publish event", "asset", pub.AssetName, "error", err)
			errs++
		}
	}

	return errs
}

func (s *RepostService) saveToLedger(ctx context.Context, pub *domain.Publication) error {
	return s.ledger.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		id, err := s.ledger.Publications.Insert(txCtx, pub)
		if err != nil {
			return fmt.Errorf("insert publication: %w", err)
		}
		pub.ID = id

		stats, err := s.ledger.Stats.Get(txCtx, pub.SourceID)
		if err != nil {
			return fmt.Errorf("get source stats: %w", err)
		}

		stats.SourceID = pub.SourceID
		stats.LastPublishedAt = pub.PublishedAt
		stats.LastAssetName = pub.AssetName
		stats.TotalPublished++

		if err := s.ledger.Stats.Update(txCtx, stats); err != nil {
			return fmt.Errorf("update source stats: %w", err)
		}
		return nil
	})
}
