// Package telegram publishes media to a Telegram chat through the Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/afero"

	"trend_reposter/internal/domain"
)

type Config struct {
	BotToken string
	ChatID   int64
	// Endpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	Endpoint string
}

type Client struct {
	bot    *tgbotapi.BotAPI
	fs     afero.Fs
	chatID int64
	logger *slog.Logger
}

// New connects to the Bot API. It fails if the token is rejected.
func New(fs afero.Fs, httpClient tgbotapi.HTTPClient, cfg Config, logger *slog.Logger) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger = logger.With("sink", "telegram", "chat_id", cfg.ChatID)
	logger.Info("authorized telegram bot", "username", bot.Self.UserName)

	return &Client{
		bot:    bot,
		fs:     fs,
		chatID: cfg.ChatID,
		logger: logger,
	}, nil
}

// Post sends the file as a photo, or as an animation for GIFs. A blank
// caption is sent as no caption.
//
// The bot API client takes no context: ctx is only checked before the
// upload starts, and the upload itself is bounded by the HTTP client timeout.
func (c *Client) Post(ctx context.Context, caption, mediaPath string) (*domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("send media: %w", err)
	}

	f, err := c.fs.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	file := tgbotapi.FileReader{Name: path.Base(mediaPath), Reader: f}
	caption = strings.TrimSpace(caption)

	var msg tgbotapi.Chattable
	if strings.EqualFold(path.Ext(mediaPath), ".gif") {
		anim := tgbotapi.NewAnimation(c.chatID, file)
		anim.Caption = caption
		msg = anim
	} else {
		photo := tgbotapi.NewPhoto(c.chatID, file)
		photo.Caption = caption
		msg = photo
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return nil, fmt.Errorf("send media: %w", err)
	}

	c.logger.Debug("posted media", "path", mediaPath, "message_id", sent.MessageID)

	return &domain.Receipt{ID: strconv.Itoa(sent.MessageID)}, nil
}
