// Package feed turns image items of an RSS or Atom feed into candidates.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"trend_reposter/internal/domain"
)

const (
	SourceID   = "feed"
	SourceName = "Feed"

	maxBodySize = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	URL       string
	UserAgent string
}

// Source reads one feed. Item order is taken as rank.
type Source struct {
	client    HTTPClient
	url       string
	userAgent string
	logger    *slog.Logger
}

func New(client HTTPClient, cfg Config, logger *slog.Logger) *Source {
	return &Source{
		client:    client,
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		logger:    logger.With("source", SourceID),
	}
}

func (s *Source) ID() string {
	return SourceID
}

func (s *Source) Name() string {
	return SourceName + " " + s.url
}

// FetchTopCandidates returns the image items among the first limit feed
// items, skipping items marked nsfw or rated adult.
func (s *Source) FetchTopCandidates(ctx context.Context, limit int) ([]domain.Candidate, error) {
	feed, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	candidates := make([]domain.Candidate, 0, len(items))
	for _, item := range items {
		if isFlagged(item) {
			continue
		}
		imageURL := ImageURL(item)
		if imageURL == "" {
			s.logger.Debug("skipping item without image", "guid", item.GUID)
			continue
		}
		candidates = append(candidates, domain.Candidate{
			SourceID:   SourceID,
			ExternalID: itemID(item),
			Title:      item.Title,
			URL:        imageURL,
			Permalink:  item.Link,
		})
	}

	return candidates, nil
}

func (s *Source) fetch(ctx context.Context) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ImageURL picks the item's image: the first image enclosure, then a
// media:content with an image medium, then the item image.
func ImageURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") {
				if u := content.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}

func isFlagged(item *gofeed.Item) bool {
	for _, c := range item.Categories {
		if strings.EqualFold(strings.TrimSpace(c), "nsfw") {
			return true
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, rating := range media["rating"] {
			if strings.EqualFold(strings.TrimSpace(rating.Value), "adult") {
				return true
			}
		}
	}
	return false
}

func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}
