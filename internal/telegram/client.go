// Package telegram adapts the Bot API to the chat package: it decodes
// incoming updates, renders replies and runs polling or webhook intake.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/config"
	svcErr "github.com/oggyb/matchbot/internal/errors"
)

// API is the subset of *tgbotapi.BotAPI the client uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Client implements chat.Sender on top of the Bot API.
type Client struct {
	api         API
	log         *slog.Logger
	pollTimeout int
}

// NewClient authorizes against the Bot API with a bounded HTTP client.
func NewClient(cfg *config.Config, log *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.Bot.APITimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Bot.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, svcErr.Transport("telegram authorization failed", err)
	}
	log.Info("authorized on telegram", "bot", bot.Self.UserName)
	return NewWithAPI(bot, log, cfg.Bot.APITimeout), nil
}

// NewWithAPI wraps an existing API, e.g. a fake in tests. The long-poll
// wait stays below timeout so requests never hit the client deadline.
func NewWithAPI(api API, log *slog.Logger, timeout time.Duration) *Client {
	return &Client{
		api:         api,
		log:         log,
		pollTimeout: max(int(timeout.Seconds())-5, 1),
	}
}

func (c *Client) Send(_ context.Context, r chat.Reply) error {
	if _, err := c.api.Send(Render(r)); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks every API failure as a transport error, with a dedicated
// message when the user blocked the bot.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusForbidden || strings.Contains(strings.ToLower(apiErr.Message), "blocked") {
			return svcErr.Transport("bot was blocked by the user", err)
		}
		return svcErr.Transport(fmt.Sprintf("telegram api error %d", apiErr.Code), err)
	}
	return svcErr.Transport("telegram request failed", err)
}

// Poll receives updates by long polling until ctx is done. Any webhook is
// removed first since the two modes exclude each other.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, chat.Update)) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return classify(err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.api.GetUpdatesChan(u)
	c.log.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}
			if upd, ok := Decode(raw); ok {
				handle(ctx, upd)
			}
		}
	}
}

// SetWebhook registers url with the Bot API.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return svcErr.Configuration(fmt.Sprintf("invalid webhook url: %v", err))
	}
	if _, err := c.api.Request(wh); err != nil {
		return classify(err)
	}
	c.log.Info("webhook registered", "url", url)
	return nil
}

// WebhookHandler decodes webhook posts and hands them to handle. It always
// acknowledges decodable posts so the platform does not redeliver.
func (c *Client) WebhookHandler(handle func(context.Context, chat.Update)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := c.api.HandleUpdate(r)
		if err != nil {
			c.log.Warn("bad webhook request", "err", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if upd, ok := Decode(*raw); ok {
			handle(r.Context(), upd)
		}
		w.WriteHeader(http.StatusOK)
	})
}
