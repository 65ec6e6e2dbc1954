package dialog

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/notify"
	"github.com/oggyb/matchbot/internal/session"
)

// Admin handlers are only routed for the admin; callbacks re-check with
// Authorize since their payloads can be replayed by anyone.

func (e *Engine) adminPanel(t *turn) error {
	t.sess.Reset()
	t.say("🛠 Admin panel", adminMenu())
	return nil
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func (e *Engine) adminStats(t *turn) error {
	s, err := e.admin.Stats(t.ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Statistics</b>\n\n")
	fmt.Fprintf(&b, "Users: %d\n", s.Total)
	fmt.Fprintf(&b, "Complete profiles: %d (%.0f%%)\n", s.Complete, percent(s.Complete, s.Total))
	fmt.Fprintf(&b, "Banned: %d\n", s.Banned)
	fmt.Fprintf(&b, "Men: %d (%.0f%%)\n", s.Male, percent(s.Male, s.Total))
	fmt.Fprintf(&b, "Women: %d (%.0f%%)\n", s.Female, percent(s.Female, s.Total))
	var withGoal int64
	for _, n := range s.Goals {
		withGoal += n
	}
	b.WriteString("\nGoals:\n")
	for _, g := range db.Goals {
		fmt.Fprintf(&b, "  %s: %d (%.0f%%)\n", g, s.Goals[g], percent(s.Goals[g], withGoal))
	}
	t.sayHTML(b.String(), adminMenu())
	return nil
}

func (e *Engine) adminDetailedStats(t *turn) error {
	d, err := e.admin.DetailedStats(t.ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>Detailed statistics</b>\n\n")
	fmt.Fprintf(&b, "Users: %d, complete %d, banned %d\n", d.Total, d.Complete, d.Banned)
	fmt.Fprintf(&b, "New today: %d\nActive today: %d\n\n", d.NewToday, d.ActiveToday)
	fmt.Fprintf(&b, "Likes: %d (today %d)\n", d.Likes, d.LikesToday)
	fmt.Fprintf(&b, "Matches: %d\n", d.Matches)
	fmt.Fprintf(&b, "Photos: %d\n", d.Photos)
	fmt.Fprintf(&b, "Profile views: %d\n", d.Views)
	fmt.Fprintf(&b, "Average rating: %.2f\n", d.AvgRating)
	if d.Likes > 0 {
		fmt.Fprintf(&b, "Likes per match: %.1f\n", float64(d.Likes)/float64(max(d.Matches, 1)))
	}
	t.sayHTML(b.String(), adminMenu())
	return nil
}

func (e *Engine) adminUsers(t *turn) error {
	return e.adminUsersPage(t, "")
}

func (e *Engine) adminUsersPage(t *turn, token string) error {
	users, next, err := e.admin.ListUsers(t.ctx, token)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		t.say("No users.", adminMenu())
		return nil
	}
	var inline [][]chat.Button
	if next != nil {
		inline = [][]chat.Button{{{Text: "Next ▶", Data: CbUsers + *next}}}
	}
	t.send(chat.Reply{Text: "👥 <b>Users</b>\n\n" + adminLines(users), ParseMode: chat.ParseHTML, Inline: inline})
	return nil
}

func adminLines(users []db.User) string {
	var b strings.Builder
	for _, u := range users {
		handle := "-"
		if u.Username != "" {
			handle = "@" + u.Username
		}
		status := "incomplete"
		switch {
		case u.Banned:
			status = "🚫 banned"
		case u.Complete():
			status = fmt.Sprintf("⭐ %.1f", u.Rating)
		}
		fmt.Fprintf(&b, "<code>%d</code> %s %s · %s\n",
			u.ID, html.EscapeString(notify.DisplayName(u)), html.EscapeString(handle), status)
	}
	return b.String()
}

func (e *Engine) adminFind(t *turn) error {
	q := strings.TrimSpace(strings.TrimPrefix(t.text, CmdFind))
	if q == "" {
		return svcErr.Validation("Usage: /find <id, name or @handle>")
	}
	users, err := e.admin.Search(t.ctx, q)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		t.say("Nobody found.", adminMenu())
		return nil
	}
	t.sayHTML("🔎 <b>Found</b>\n\n"+adminLines(users), adminMenu())
	return nil
}

func (e *Engine) adminBans(t *turn) error {
	users, err := e.admin.Banned(t.ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		t.say("No banned users.", adminMenu())
		return nil
	}
	buttons := make([][]chat.Button, 0, len(users))
	for _, u := range users {
		buttons = append(buttons, []chat.Button{{
			Text: "Unban " + notify.DisplayName(u),
			Data: CbUnban + strconv.FormatInt(u.ID, 10),
		}})
	}
	t.send(chat.Reply{Text: "🚫 <b>Banned users</b>\n\n" + adminLines(users), ParseMode: chat.ParseHTML, Inline: buttons})
	return nil
}

func (e *Engine) cbUnban(t *turn, arg string) error {
	id, err := admin.ParseUserID(arg)
	if err != nil {
		return err
	}
	changed, err := e.admin.Unban(t.ctx, id)
	if err != nil {
		return err
	}
	if changed {
		t.answer = fmt.Sprintf("User %d unbanned.", id)
	} else {
		t.answer = fmt.Sprintf("User %d is not banned.", id)
	}
	return nil
}

func (e *Engine) adminStartBroadcast(t *turn) error {
	t.sess.Reset()
	t.sess.State = session.StateAdminBroadcast
	t.say("📣 Send the text to broadcast to every user.", cancelOnly())
	return nil
}

func (e *Engine) adminBroadcastText(t *turn) error {
	tally, err := e.admin.Broadcast(t.ctx, t.text)
	if err != nil {
		return err
	}
	t.sess.Reset()
	t.say(fmt.Sprintf("📣 Broadcast finished: %d delivered, %d failed.", tally.Success, tally.Failure), adminMenu())
	return nil
}

func (e *Engine) adminCleanup(t *turn) error {
	res, err := e.admin.Cleanup(t.ctx)
	if err != nil {
		return err
	}
	t.say(fmt.Sprintf("🧹 Cleanup done: %d abandoned profiles and %d stale likes removed.", res.Users, res.Likes), adminMenu())
	return nil
}

func (e *Engine) adminStartBan(t *turn) error {
	t.sess.Reset()
	t.sess.State = session.StateAdminBanID
	t.say("Send the id of the user to ban.", cancelOnly())
	return nil
}

func (e *Engine) adminBanID(t *turn) error {
	id, err := admin.ParseUserID(t.text)
	if err != nil {
		return err
	}
	changed, err := e.admin.Ban(t.ctx, id)
	if svcErr.Is(err, svcErr.KindNotFound) {
		return svcErr.Validation(fmt.Sprintf("No user with id %d. Send another id or press “cancel”.", id))
	}
	if err != nil {
		return err
	}
	t.sess.Reset()
	if changed {
		t.say(fmt.Sprintf("🚫 User %d banned.", id), adminMenu())
	} else {
		t.say(fmt.Sprintf("User %d was already banned.", id), adminMenu())
	}
	return nil
}

func (e *Engine) adminStartUnban(t *turn) error {
	t.sess.Reset()
	t.sess.State = session.StateAdminUnbanID
	t.say("Send the id of the user to unban.", cancelOnly())
	return nil
}

func (e *Engine) adminUnbanID(t *turn) error {
	id, err := admin.ParseUserID(t.text)
	if err != nil {
		return err
	}
	changed, err := e.admin.Unban(t.ctx, id)
	if svcErr.Is(err, svcErr.KindNotFound) {
		return svcErr.Validation(fmt.Sprintf("No user with id %d. Send another id or press “cancel”.", id))
	}
	if err != nil {
		return err
	}
	t.sess.Reset()
	if changed {
		t.say(fmt.Sprintf("✅ User %d unbanned.", id), adminMenu())
	} else {
		t.say(fmt.Sprintf("User %d was not banned.", id), adminMenu())
	}
	return nil
}

func (e *Engine) adminUnbanAll(t *turn) error {
	n, err := e.admin.UnbanAll(t.ctx)
	if err != nil {
		return err
	}
	t.say(fmt.Sprintf("✅ %d bans lifted.", n), adminMenu())
	return nil
}
