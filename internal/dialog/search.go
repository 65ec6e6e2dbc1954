package dialog

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/profile"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/notify"
	"github.com/oggyb/matchbot/internal/session"
)

func requireComplete(t *turn) error {
	if !t.user.Complete() {
		return svcErr.Validation("Finish your profile with at least one photo first: press “create profile”.")
	}
	return nil
}

func (e *Engine) search(t *turn) error {
	if err := requireComplete(t); err != nil {
		return err
	}
	t.sess.Reset()
	t.sess.Search.Type = session.SearchRandom
	return e.showRandom(t)
}

func (e *Engine) showRandom(t *turn) error {
	cand, err := e.matching.FilteredRandom(t.ctx, t.user, "")
	if err != nil {
		return err
	}
	if cand == nil {
		t.say("No new profiles right now. Try again later.", e.menuFor(t))
		return nil
	}
	return e.showCard(t, cand)
}

func (e *Engine) searchByCity(t *turn) error {
	if err := requireComplete(t); err != nil {
		return err
	}
	t.sess.Reset()
	t.sess.State = session.StateAwaitingCityQuery
	t.say("Which city? Pick one or type a name.", cityKeyboard(e.popularCities(t), nil, LabelBack))
	return nil
}

func (e *Engine) handleCityQuery(t *turn) error {
	city, err := profile.ParseCity(t.text)
	if err != nil {
		return err
	}
	ids, err := e.matching.CitySearch(t.ctx, t.user, city)
	if err != nil {
		return err
	}
	t.sess.Reset()
	if len(ids) == 0 {
		t.say(fmt.Sprintf("No one found in %s yet.", city), e.menuFor(t))
		return nil
	}
	t.sess.Search = session.SearchContext{Type: session.SearchCity, IDs: ids, City: city}
	t.say(fmt.Sprintf("Found %d in %s.", len(ids), city), e.menuFor(t))
	return e.showNext(t)
}

func (e *Engine) startAdvancedSearch(t *turn) error {
	if err := requireComplete(t); err != nil {
		return err
	}
	t.sess.Reset()
	t.sess.Search.Type = session.SearchAdvanced
	t.sess.State = session.StateAdvancedSearchGender
	t.say("Whom are you looking for?", genderKeyboard(true))
	return nil
}

func (e *Engine) advancedGender(t *turn) error {
	gender, err := profile.ParseSeeking(t.text)
	if err != nil {
		return err
	}
	t.sess.Search.Gender = gender
	t.sess.State = session.StateAdvancedSearchCity
	t.say("In which city?", cityKeyboard(e.popularCities(t), []string{LabelAnyCity, LabelOtherCity}, LabelCancel))
	return nil
}

func (e *Engine) advancedCity(t *turn) error {
	switch t.text {
	case LabelAnyCity:
		t.sess.Search.City = ""
	case LabelOtherCity:
		t.sess.State = session.StateAdvancedSearchCityFree
		t.say("Type the city name.", cancelOnly())
		return nil
	default:
		city, err := profile.ParseCity(t.text)
		if err != nil {
			return err
		}
		t.sess.Search.City = city
	}
	return e.askAdvancedGoal(t)
}

func (e *Engine) advancedCityFree(t *turn) error {
	city, err := profile.ParseCity(t.text)
	if err != nil {
		return err
	}
	t.sess.Search.City = city
	return e.askAdvancedGoal(t)
}

func (e *Engine) askAdvancedGoal(t *turn) error {
	t.sess.State = session.StateAdvancedSearchGoal
	t.say("With which goal?", goalKeyboard(LabelAnyGoal))
	return nil
}

func (e *Engine) advancedGoal(t *turn) error {
	goal := ""
	if t.text != LabelAnyGoal {
		g, err := profile.ParseGoal(t.text)
		if err != nil {
			return err
		}
		goal = g
	}

	criteria := matching.Criteria{Gender: t.sess.Search.Gender, City: t.sess.Search.City, Goal: goal}
	ids, err := e.matching.AdvancedSearch(t.ctx, t.user, criteria)
	if err != nil {
		return err
	}
	t.log.Debug("advanced search", "gender", criteria.Gender, "city", criteria.City, "goal", goal, "found", len(ids))

	t.sess.Reset()
	if len(ids) == 0 {
		t.say("Nobody matches these filters. Try widening them.", e.menuFor(t))
		return nil
	}
	t.sess.Search = session.SearchContext{
		Type:   session.SearchAdvanced,
		IDs:    ids,
		Gender: criteria.Gender,
		City:   criteria.City,
		Goal:   goal,
	}
	t.say(fmt.Sprintf("Found %d profiles.", len(ids)), e.menuFor(t))
	return e.showNext(t)
}

// showNext advances the current candidate list, skipping users who stopped
// being searchable. Random searches draw a fresh pick instead.
func (e *Engine) showNext(t *turn) error {
	s := &t.sess.Search
	if s.Type == session.SearchRandom {
		return e.showRandom(t)
	}
	for {
		id, ok := s.Next()
		if !ok {
			break
		}
		cand, err := e.matching.Candidate(t.ctx, id)
		if err != nil {
			return err
		}
		if cand != nil {
			return e.showCard(t, cand)
		}
	}
	t.sess.Search = session.SearchContext{}
	t.say("That's everyone for now. Start a new search from the menu.", e.menuFor(t))
	return nil
}

// showCard sends a candidate's main photo with the profile as caption and
// logs the view.
func (e *Engine) showCard(t *turn, u *db.User) error {
	photo, err := e.photos.Main(t.ctx, u.ID)
	if err != nil {
		return err
	}
	t.send(chat.Reply{
		Text:      renderCard(*u),
		PhotoID:   photo,
		ParseMode: chat.ParseHTML,
		Inline: [][]chat.Button{
			{
				{Text: "❤️ Like", Data: CbLike + strconv.FormatInt(u.ID, 10)},
				{Text: "➡️ Next", Data: CbNextProfile},
			},
			{{Text: "🖼 Photos", Data: CbGallery + strconv.FormatInt(u.ID, 10)}},
		},
	})
	if err := e.stats.RecordView(t.ctx, t.user.ID, u.ID); err != nil {
		t.log.Warn("record view failed", "viewed", u.ID, "err", err)
	}
	return nil
}

func renderCard(u db.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>, %d\n", html.EscapeString(notify.DisplayName(u)), u.Age)
	fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(u.City))
	fmt.Fprintf(&b, "🎯 %s\n", u.Goal)
	fmt.Fprintf(&b, "⭐ %.1f\n\n", u.Rating)
	b.WriteString(html.EscapeString(u.Bio))
	return b.String()
}

func (e *Engine) handleCallback(t *turn) error {
	data := t.upd.CallbackData
	switch {
	case strings.HasPrefix(data, CbLike):
		return e.cbLike(t, strings.TrimPrefix(data, CbLike))
	case data == CbNextProfile:
		return e.cbNext(t)
	case strings.HasPrefix(data, CbGallery):
		return e.cbGallery(t, strings.TrimPrefix(data, CbGallery))
	case strings.HasPrefix(data, CbTop):
		return e.showTop(t, strings.TrimPrefix(data, CbTop))
	case strings.HasPrefix(data, CbUsers):
		if err := e.admin.Authorize(t.user.ID); err != nil {
			return err
		}
		return e.adminUsersPage(t, strings.TrimPrefix(data, CbUsers))
	case strings.HasPrefix(data, CbUnban):
		if err := e.admin.Authorize(t.user.ID); err != nil {
			return err
		}
		return e.cbUnban(t, strings.TrimPrefix(data, CbUnban))
	}
	t.log.Warn("unknown callback", "data", data)
	t.answer = "This button is no longer active."
	return nil
}

func parseTarget(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, svcErr.NotFound("This profile is no longer available.")
	}
	return id, nil
}

func (e *Engine) cbLike(t *turn, arg string) error {
	if err := requireComplete(t); err != nil {
		return err
	}
	to, err := parseTarget(arg)
	if err != nil {
		return err
	}
	out, err := e.explore.Like(t.ctx, t.user.ID, to)
	if err != nil {
		return err
	}

	switch {
	case out.Duplicate:
		t.answer = "You already liked this profile."
		return nil
	case out.Matched:
		t.answer = "🎉 It's a match!"
	default:
		t.answer = fmt.Sprintf("❤️ Liked! %d likes left today.", out.Remaining)
	}
	if t.sess.Search.Type == "" {
		return nil
	}
	return e.showNext(t)
}

func (e *Engine) cbNext(t *turn) error {
	if err := requireComplete(t); err != nil {
		return err
	}
	if t.sess.Search.Type == "" {
		t.answer = "Start a search from the menu."
		return nil
	}
	return e.showNext(t)
}

func (e *Engine) cbGallery(t *turn, arg string) error {
	id, err := parseTarget(arg)
	if err != nil {
		return err
	}
	cand, err := e.matching.Candidate(t.ctx, id)
	if err != nil {
		return err
	}
	if cand == nil {
		return svcErr.NotFound("This profile is no longer available.")
	}
	t.sess.State = session.StateViewUserGallery
	t.sess.Flags = session.Flags{GalleryUser: id, GalleryIndex: 0}
	return e.showGalleryPhoto(t)
}

func (e *Engine) handleGalleryNext(t *turn) error {
	t.sess.Flags.GalleryIndex++
	return e.showGalleryPhoto(t)
}

func (e *Engine) showGalleryPhoto(t *turn) error {
	photos, err := e.photos.List(t.ctx, t.sess.Flags.GalleryUser)
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		t.sess.ResetKeepSearch()
		return svcErr.NotFound("This profile has no photos.")
	}
	i := t.sess.Flags.GalleryIndex % len(photos)
	t.sess.Flags.GalleryIndex = i
	t.send(chat.Reply{
		Text:     fmt.Sprintf("Photo %d of %d", i+1, len(photos)),
		PhotoID:  photos[i].MediaID,
		Keyboard: galleryKeyboard(),
	})
	return nil
}
