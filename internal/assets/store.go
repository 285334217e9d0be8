// Package assets downloads media files into a flat local directory. A file's
// name doubles as the de-duplication key: an asset already on disk has
// already been published.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/afero"

	"trend_reposter/internal/domain"
)

var (
	ErrInvalidURL = errors.New("invalid asset url")
	ErrTooLarge   = errors.New("asset exceeds size limit")
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Dir       string
	UserAgent string
	MaxSize   int64
}

type Store struct {
	fs        afero.Fs
	client    HTTPClient
	dir       string
	userAgent string
	maxSize   int64
	logger    *slog.Logger
}

func NewStore(fs afero.Fs, client HTTPClient, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		fs:        fs,
		client:    client,
		dir:       cfg.Dir,
		userAgent: cfg.UserAgent,
		maxSize:   cfg.MaxSize,
		logger:    logger,
	}
}

// NameFromURL returns the last path segment of rawURL
// ("https://cdn.example.com/uploads/2024/abc.jpg" gives "abc.jpg").
// Query strings and fragments are dropped.
func NameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == ".." || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return name, nil
}

// EnsureDir creates the asset directory if it is missing.
func (s *Store) EnsureDir() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}
	return nil
}

// Path returns where an asset with the given name lives.
func (s *Store) Path(name string) string {
	return path.Join(s.dir, name)
}

func (s *Store) Exists(name string) (bool, error) {
	return afero.Exists(s.fs, s.Path(name))
}

// Download fetches rawURL and stores the body as name. The file only appears
// under its final name once the whole body has been written.
func (s *Store) Download(ctx context.Context, rawURL, name string) (*domain.Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
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
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if s.maxSize > 0 {
		body = io.LimitReader(resp.Body, s.maxSize+1)
	}

	final := s.Path(name)
	tmp := final + ".part"
	size, err := s.writeFile(tmp, body)
	if err != nil {
		_ = s.fs.Remove(tmp)
		return nil, err
	}
	if s.maxSize > 0 && size > s.maxSize {
		_ = s.fs.Remove(tmp)
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxSize)
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return nil, fmt.Errorf("rename asset: %w", err)
	}

	s.logger.Debug("downloaded asset", "name", name, "bytes", size)

	return &domain.Asset{
		Name:      name,
		Path:      final,
		SourceURL: rawURL,
		Size:      size,
	}, nil
}

func (s *Store) writeFile(name string, r io.Reader) (int64, error) {
	f, err := s.fs.Create(name)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	return n, nil
}
