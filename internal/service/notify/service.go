// Package notify sends the direct messages triggered by likes, matches,
// admin contact, broadcasts and background jobs.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/metrics"
	"github.com/oggyb/matchbot/internal/repository"
)

// Tally is the outcome of a fan-out.
type Tally struct {
	Success int
	Failure int
}

// Service delivers notifications through the app's chat.Sender. Delivery
// failures are logged and counted, never retried.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	stats  *repository.StatsRepository
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		stats:  repository.NewStatsRepository(appCtx.DB),
		delay:  appCtx.Config.Limits.BroadcastDelay,
		sleep:  sleepCtx,
	}
}

// DisplayName is the name shown to other users.
func DisplayName(u db.User) string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("User %d", u.ID)
}

// ContactLink returns a link that opens a private chat with u: the public
// handle when there is one, the id-based deep link otherwise.
func ContactLink(u db.User) string {
	if u.Username != "" {
		return "https://t.me/" + u.Username
	}
	return fmt.Sprintf("tg://user?id=%d", u.ID)
}

// NewLike tells the recipient who liked them and their current rating.
func (s *Service) NewLike(ctx context.Context, recipient, liker db.User) error {
	text := fmt.Sprintf(
		"💌 <b>%s</b> liked your profile!\n⭐ Your rating: %.1f\n\nOpen “who liked me” to take a look.",
		html.EscapeString(DisplayName(liker)), recipient.Rating,
	)
	return s.send(ctx, "new_like", chat.Reply{ChatID: recipient.ID, Text: text, ParseMode: chat.ParseHTML})
}

// NewMatch messages both parties once, each with a way to reach the other.
// Both sends are attempted; the first error is returned.
func (s *Service) NewMatch(ctx context.Context, a, b db.User) error {
	errA := s.send(ctx, "new_match", matchReply(a, b))
	errB := s.send(ctx, "new_match", matchReply(b, a))
	if errA != nil {
		return errA
	}
	return errB
}

func matchReply(to, other db.User) chat.Reply {
	name := html.EscapeString(DisplayName(other))
	text := fmt.Sprintf("🎉 It's a match! You and <b>%s</b> liked each other.", name)
	if other.Username != "" {
		text += fmt.Sprintf("\n\nSay hi: @%s", html.EscapeString(other.Username))
	} else {
		text += fmt.Sprintf("\n\n<a href=\"%s\">Open chat</a>", ContactLink(other))
	}
	r := chat.Reply{ChatID: to.ID, Text: text, ParseMode: chat.ParseHTML}
	// tg://user buttons are rejected for users with strict privacy settings,
	// which would drop the whole message; the text link covers them
	if other.Username != "" {
		r.Inline = [][]chat.Button{{{Text: "💬 Write to " + DisplayName(other), URL: ContactLink(other)}}}
	}
	return r
}

// ContactAdmin forwards a user's message to the admin with sender details.
func (s *Service) ContactAdmin(ctx context.Context, from db.User, message string) error {
	handle := "no handle"
	if from.Username != "" {
		handle = "@" + from.Username
	}
	text := fmt.Sprintf(
		"📨 Message from <b>%s</b> (%s, id <code>%d</code>):\n\n%s",
		html.EscapeString(DisplayName(from)), html.EscapeString(handle), from.ID, html.EscapeString(message),
	)
	return s.send(ctx, "contact_admin", chat.Reply{
		ChatID:    s.appCtx.Config.Bot.AdminID,
		Text:      text,
		ParseMode: chat.ParseHTML,
	})
}

// Broadcast sends text to every non-banned user, pausing between messages
// to stay under platform rate limits.
func (s *Service) Broadcast(ctx context.Context, text string) (Tally, error) {
	ids, err := s.users.ActiveIDs(ctx)
	if err != nil {
		return Tally{}, err
	}

	log := s.appCtx.Logger.With("broadcast_id", uuid.NewString())
	log.Info("broadcast started", "recipients", len(ids))

	body := "📢 " + text
	tally, err := s.fanOut(ctx, log, "broadcast", ids, func(id int64) (chat.Reply, bool) {
		return chat.Reply{ChatID: id, Text: body}, true
	})
	log.Info("broadcast finished", "success", tally.Success, "failure", tally.Failure)
	return tally, err
}

// ProfileReminders nudges users who signed up over a day ago but never
// finished their profile.
func (s *Service) ProfileReminders(ctx context.Context, now time.Time) (Tally, error) {
	users, err := s.users.Incomplete(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Tally{}, err
	}
	byID := make(map[int64]db.User, len(users))
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	return s.fanOut(ctx, s.appCtx.Logger, "reminder", ids, func(id int64) (chat.Reply, bool) {
		u := byID[id]
		text := "👋 Your profile is almost ready! Finish it to start meeting people."
		if u.ProfileFilled() && !u.HasPhoto {
			text = "📸 Add a photo to your profile so others can find you."
		}
		return chat.Reply{ChatID: id, Text: text}, true
	})
}

// DailySummaries sends each searchable user the counts of likes, matches
// and profile views received since local midnight. Users with nothing new
// are skipped.
func (s *Service) DailySummaries(ctx context.Context, now time.Time) (Tally, error) {
	ids, err := s.users.CompleteIDs(ctx)
	if err != nil {
		return Tally{}, err
	}
	since := repository.StartOfDay(now)

	return s.fanOut(ctx, s.appCtx.Logger, "daily_summary", ids, func(id int64) (chat.Reply, bool) {
		sum, err := s.stats.Summary(ctx, id, since)
		if err != nil || sum.Empty() {
			return chat.Reply{}, false
		}
		text := fmt.Sprintf(
			"📊 Today so far:\n💌 New likes: %d\n🎉 New matches: %d\n👀 Profile views: %d",
			sum.Likes, sum.Matches, sum.Views,
		)
		return chat.Reply{ChatID: id, Text: text}, true
	})
}

// fanOut sends one message per id, sleeping between sends. build may skip
// an id by returning false. Context cancellation stops the loop.
func (s *Service) fanOut(
	ctx context.Context,
	log *slog.Logger,
	purpose string,
	ids []int64,
	build func(id int64) (chat.Reply, bool),
) (Tally, error) {
	var tally Tally
	sent := 0
	for _, id := range ids {
		reply, ok := build(id)
		if !ok {
			continue
		}
		if sent > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return tally, err
			}
		}
		sent++
		if err := s.send(ctx, purpose, reply); err != nil {
			log.Warn("delivery failed", "purpose", purpose, "user", id, "err", err)
			tally.Failure++
			continue
		}
		tally.Success++
	}
	return tally, nil
}

func (s *Service) send(ctx context.Context, purpose string, r chat.Reply) error {
	err := s.appCtx.Sender.Send(ctx, r)
	metrics.RecordSend(purpose, err)
	if err != nil {
		s.appCtx.Logger.Debug("send failed", "purpose", purpose, "chat", r.ChatID, "err", err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
