// Package telegram adapts the transport.Sender interface onto the Telegram
// Bot API via telebot.
package telegram

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/rentsearchrs/lviv-pject/internal/transport"
	logx "github.com/rentsearchrs/lviv-pject/pkg/logx"
)

type Config struct {
	Token string
	// AdminChatID receives operational notifications (relevance sweep etc.).
	AdminChatID string
	// HTTPTimeout bounds one API call. 0 means 30s.
	HTTPTimeout time.Duration
}

type Adapter struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, bot: b, log: log}, nil
}

// AdminChatID returns the configured operator chat (may be empty).
func (a *Adapter) AdminChatID() string { return a.cfg.AdminChatID }

// recipient lets raw chat ids and "@username" handles be used directly:
// the Bot API accepts both in the chat_id field.
type recipient string

func (r recipient) Recipient() string { return string(r) }

func (a *Adapter) SendMediaGroup(ctx context.Context, chatID string, items []transport.MediaItem) error {
	if err := ctx.Err(); err != nil {
		return &transport.TimeoutError{Cause: err}
	}

	album := make(tele.Album, 0, len(items))
	for _, it := range items {
		switch it.ContentType {
		case "video":
			album = append(album, &tele.Video{File: tele.FromURL(it.URL), Caption: it.Caption})
		default:
			album = append(album, &tele.Photo{File: tele.FromURL(it.URL), Caption: it.Caption})
		}
	}
	if len(album) == 0 {
		return errors.New("empty media group")
	}

	_, err := a.bot.SendAlbum(recipient(chatID), album)
	return a.mapError(err)
}

func (a *Adapter) SendText(ctx context.Context, chatID string, text string) error {
	if err := ctx.Err(); err != nil {
		return &transport.TimeoutError{Cause: err}
	}
	_, err := a.bot.Send(recipient(chatID), text)
	return a.mapError(err)
}

// mapError converts telebot failures into the transport taxonomy.
func (a *Adapter) mapError(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &transport.RateLimitedError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &transport.TimeoutError{Cause: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &transport.TimeoutError{Cause: err}
	}

	return err
}
