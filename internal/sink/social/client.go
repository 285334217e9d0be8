// Package social posts media to an HTTP publishing API as a multipart form
// with a caption field and a media file part.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"trend_reposter/internal/domain"
)

type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	httpClient *http.Client
	fs         afero.Fs
	baseURL    string
	token      string
	userAgent  string
	logger     *slog.Logger
}

type postResponse struct {
	ID string `json:"id"`
}

func New(fs afero.Fs, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		fs:        fs,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		logger:    logger.With("sink", "social"),
	}
}

// Post uploads the file at mediaPath with the given caption.
func (c *Client) Post(ctx context.Context, caption, mediaPath string) (*domain.Receipt, error) {
	f, err := c.fs.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := writeForm(form, caption, path.Base(mediaPath), f); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body postResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("posted media", "path", mediaPath, "receipt_id", body.ID)

	return &domain.Receipt{ID: body.ID}, nil
}

func writeForm(form *multipart.Writer, caption, filename string, media io.Reader) error {
	if err := form.WriteField("content", caption); err != nil {
		return fmt.Errorf("write caption: %w", err)
	}
	part, err := form.CreateFormFile("media", filename)
	if err != nil {
		return fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, media); err != nil {
		return fmt.Errorf("copy media: %w", err)
	}
	return form.Close()
}
