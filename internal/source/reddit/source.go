package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"trend_reposter/internal/domain"
)

const (
	SourceID   = "reddit"
	SourceName = "Reddit"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Config holds Reddit source configuration.
type Config struct {
	BaseURL     string
	Subreddit   string
	TimeWindow  string
	AccessToken string
	UserAgent   string
	ImageOnly   bool
	Timeout     time.Duration
}

// Source reads the ranked "top" listing of one subreddit.
type Source struct {
	httpClient  *http.Client
	baseURL     string
	subreddit   string
	timeWindow  string
	accessToken string
	userAgent   string
	imageOnly   bool
	logger      *slog.Logger
}

// New creates a new Reddit source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		subreddit:   cfg.Subreddit,
		timeWindow:  cfg.TimeWindow,
		accessToken: cfg.AccessToken,
		userAgent:   cfg.UserAgent,
		imageOnly:   cfg.ImageOnly,
		logger:      logger.With("source", SourceID, "subreddit", cfg.Subreddit),
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName + " r/" + s.subreddit
}

// FetchTopCandidates returns up to limit top posts of the configured time
// window, in listing order, without over-18 posts.
func (s *Source) FetchTopCandidates(ctx context.Context, limit int) ([]domain.Candidate, error) {
	listing, err := s.doRequest(ctx, s.listingURL(limit))
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetched listing", "posts", len(listing.Data.Children))

	return s.transform(listing.Data.Children, limit), nil
}

func (s *Source) listingURL(limit int) string {
	q := url.Values{}
	q.Set("t", s.timeWindow)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("raw_json", "1")
	return fmt.Sprintf("%s/r/%s/top.json?%s", s.baseURL, url.PathEscape(s.subreddit), q.Encode())
}

func (s *Source) doRequest(ctx context.Context, rawURL string) (*Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &listing, nil
}

func (s *Source) transform(things []Thing, limit int) []domain.Candidate {
	if len(things) > limit {
		things = things[:limit]
	}

	candidates := make([]domain.Candidate, 0, len(things))
	for _, t := range things {
		p := t.Data
		if p.Over18 {
			continue
		}
		if p.URL == "" {
			continue
		}
		if s.imageOnly && !isImage(p) {
			s.logger.Debug("skipping non-image post", "external_id", p.ID, "url", p.URL)
			continue
		}

		candidates = append(candidates, domain.Candidate{
			SourceID:   SourceID,
			ExternalID: p.ID,
			Title:      p.Title,
			URL:        p.URL,
			Permalink:  p.Permalink,
			Score:      p.Score,
		})
	}

	return candidates
}

func isImage(p Post) bool {
	if p.IsVideo {
		return false
	}
	if p.PostHint == "image" {
		return true
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(u.Path))]
}
