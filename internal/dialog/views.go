package dialog

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/service/notify"
	"github.com/oggyb/matchbot/internal/session"
)

func (e *Engine) myProfile(t *turn) error {
	u := t.user
	if !u.ProfileFilled() {
		t.say("You don't have a profile yet. Press “create profile” to make one.", e.menuFor(t))
		return nil
	}
	count, err := e.photos.Count(t.ctx, u.ID)
	if err != nil {
		return err
	}
	main, err := e.photos.Main(t.ctx, u.ID)
	if err != nil {
		return err
	}

	text := renderCard(*u) + fmt.Sprintf(
		"\n\n📸 Photos: %d/%d\n❤️ Likes received: %d\n💌 Likes left today: %d/%d",
		count, e.photos.Max(), u.LikesReceived, e.explore.Remaining(*u), e.explore.Quota(),
	)
	if !u.HasPhoto {
		text += "\n\n⚠️ Add a photo so others can find you."
	}
	t.send(chat.Reply{Text: text, PhotoID: main, ParseMode: chat.ParseHTML, Keyboard: e.menuFor(t)})
	return nil
}

func (e *Engine) whoLikedMe(t *turn) error {
	likers, err := e.explore.LikedYou(t.ctx, t.user.ID, false)
	if err != nil {
		return err
	}
	if len(likers) == 0 {
		t.say("Nobody has liked you yet. A good photo and bio help!", e.menuFor(t))
		return nil
	}
	fresh, err := e.explore.LikedYou(t.ctx, t.user.ID, true)
	if err != nil {
		return err
	}
	pending := make(map[int64]bool, len(fresh))
	for _, u := range fresh {
		pending[u.ID] = true
	}

	var b strings.Builder
	var buttons [][]chat.Button
	b.WriteString("💌 <b>They liked you:</b>\n\n")
	for i, u := range likers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, listLine(u))
		if pending[u.ID] {
			id := strconv.FormatInt(u.ID, 10)
			buttons = append(buttons, []chat.Button{
				{Text: "❤️ " + notify.DisplayName(u), Data: CbLike + id},
				{Text: "🖼", Data: CbGallery + id},
			})
		} else {
			b.WriteString("   ✅ mutual\n")
		}
	}
	t.send(chat.Reply{Text: b.String(), ParseMode: chat.ParseHTML, Inline: buttons})
	return nil
}

func (e *Engine) myMatches(t *turn) error {
	matches, err := e.explore.Matches(t.ctx, t.user.ID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		t.say("No matches yet. Keep liking!", e.menuFor(t))
		return nil
	}

	var b strings.Builder
	var buttons [][]chat.Button
	b.WriteString("🎉 <b>Your matches:</b>\n\n")
	for i, u := range matches {
		fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>, %d, %s\n",
			i+1, notify.ContactLink(u), html.EscapeString(notify.DisplayName(u)), u.Age, html.EscapeString(u.City))
		if u.Username != "" {
			buttons = append(buttons, []chat.Button{{Text: "💬 " + notify.DisplayName(u), URL: notify.ContactLink(u)}})
		}
	}
	t.send(chat.Reply{Text: b.String(), ParseMode: chat.ParseHTML, Inline: buttons})
	return nil
}

func (e *Engine) top(t *turn) error {
	return e.showTop(t, "")
}

// showTop renders the leaderboard, optionally for one gender.
func (e *Engine) showTop(t *turn, gender string) error {
	switch gender {
	case "", db.GenderMale, db.GenderFemale, db.SeekingAny:
	default:
		gender = ""
	}
	users, err := e.matching.Top(t.ctx, t.user.ID, gender)
	if err != nil {
		return err
	}

	var b strings.Builder
	switch gender {
	case db.GenderMale:
		b.WriteString("🏆 <b>Top men</b>\n\n")
	case db.GenderFemale:
		b.WriteString("🏆 <b>Top women</b>\n\n")
	default:
		b.WriteString("🏆 <b>Top profiles</b>\n\n")
	}
	if len(users) == 0 {
		b.WriteString("Nobody here yet.")
	}
	for i, u := range users {
		fmt.Fprintf(&b, "%d. %s · ⭐ %.1f · ❤️ %d\n", i+1, listLine(u), u.Rating, u.LikesReceived)
	}
	t.send(chat.Reply{
		Text:      b.String(),
		ParseMode: chat.ParseHTML,
		Inline: [][]chat.Button{{
			{Text: "👨 Men", Data: CbTop + db.GenderMale},
			{Text: "👩 Women", Data: CbTop + db.GenderFemale},
			{Text: "👥 All", Data: CbTop + db.SeekingAny},
		}},
	})
	return nil
}

func listLine(u db.User) string {
	return fmt.Sprintf("<b>%s</b>, %d, %s", html.EscapeString(notify.DisplayName(u)), u.Age, html.EscapeString(u.City))
}

func (e *Engine) startContactAdmin(t *turn) error {
	t.sess.Reset()
	t.sess.State = session.StateContactAdmin
	t.say("✍️ Write your message for the admin.", cancelOnly())
	return nil
}

func (e *Engine) contactAdminText(t *turn) error {
	if t.upd.Kind != chat.KindText || t.text == "" {
		return svcErr.Validation("Please send your message as text.")
	}
	if err := e.notifier.ContactAdmin(t.ctx, *t.user, t.text); err != nil {
		t.log.Warn("contact admin failed", "err", err)
		t.sess.Reset()
		t.say("The admin can't be reached right now. Please try again later.", e.menuFor(t))
		return nil
	}
	t.sess.Reset()
	t.say("✅ Your message was sent to the admin.", e.menuFor(t))
	return nil
}
