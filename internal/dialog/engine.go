// Package dialog is the conversational state machine: it routes each
// incoming update by the sender's session state and input, runs the
// matching handler and renders replies.
package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/metrics"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/explore"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/notify"
	"github.com/oggyb/matchbot/internal/session"
)

const (
	touchInterval   = 10 * time.Minute
	popularCityKeys = 6
	genericApology  = "Something went wrong on our side. Please try again."
)

// Engine handles updates one user at a time. It owns the session store;
// storage is reached only through the services.
type Engine struct {
	appCtx   *app.AppContext
	sessions session.Store
	locker   *session.Locker

	users  *repository.UserRepository
	photos *repository.PhotoRepository
	stats  *repository.StatsRepository

	explore  *explore.Service
	matching *matching.Service
	notifier *notify.Service
	admin    *admin.Service

	now func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithMatching replaces the matching service, e.g. with a seeded one.
func WithMatching(m *matching.Service) Option {
	return func(e *Engine) { e.matching = m }
}

// NewEngine wires the engine and its services from appCtx.
func NewEngine(appCtx *app.AppContext, sessions session.Store, opts ...Option) *Engine {
	notifier := notify.NewService(appCtx)
	e := &Engine{
		appCtx:   appCtx,
		sessions: sessions,
		locker:   session.NewLocker(),
		users:    repository.NewUserRepository(appCtx.DB),
		photos:   repository.NewPhotoRepository(appCtx.DB, appCtx.Config.Limits.MaxPhotos),
		stats:    repository.NewStatsRepository(appCtx.DB),
		explore:  explore.NewExploreService(appCtx, notifier),
		matching: matching.NewService(appCtx),
		notifier: notifier,
		admin:    admin.NewService(appCtx, notifier),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Notifier exposes the notification service for background jobs.
func (e *Engine) Notifier() *notify.Service { return e.notifier }

// Admin exposes the admin service for background jobs.
func (e *Engine) Admin() *admin.Service { return e.admin }

// turn is the state of handling one update.
type turn struct {
	ctx     context.Context
	upd     chat.Update
	text    string
	log     *slog.Logger
	user    *db.User
	sess    *session.Session
	isAdmin bool

	replies  []chat.Reply
	answer   string
	answered bool
}

func (t *turn) say(text string, kb *chat.Keyboard) {
	t.replies = append(t.replies, chat.Reply{ChatID: t.upd.SenderID, Text: text, Keyboard: kb})
}

func (t *turn) sayHTML(text string, kb *chat.Keyboard) {
	t.replies = append(t.replies, chat.Reply{ChatID: t.upd.SenderID, Text: text, Keyboard: kb, ParseMode: chat.ParseHTML})
}

func (t *turn) send(r chat.Reply) {
	r.ChatID = t.upd.SenderID
	t.replies = append(t.replies, r)
}

// Handle processes one update to completion. Updates of the same user are
// serialized; a failing handler never escapes as a panic or error to the
// transport, the user gets a prompt instead. The returned error only
// reports delivery problems.
func (e *Engine) Handle(ctx context.Context, upd chat.Update) (err error) {
	unlock := e.locker.Lock(upd.SenderID)
	defer unlock()

	start := e.now()
	t := &turn{
		ctx:  ctx,
		upd:  upd,
		text: strings.TrimSpace(upd.Text),
		log: e.appCtx.Logger.With(
			"update_id", uuid.NewString(),
			"user", upd.SenderID,
			"kind", upd.Kind.String(),
		),
		isAdmin: e.admin.IsAdmin(upd.SenderID),
	}
	outcome := "ok"

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
			outcome = "panic"
			t.replies = nil
			t.say(genericApology, e.menuFor(t))
			if t.sess != nil {
				t.sess.Reset()
				e.saveSession(t)
			}
			err = e.flush(t)
		}
		metrics.RecordUpdate(upd.Kind.String(), outcome, e.now().Sub(start))
	}()

	sess, lerr := e.sessions.Load(ctx, upd.SenderID)
	if lerr != nil {
		t.log.Error("session load failed, starting over", "err", lerr)
		sess = session.New()
	}
	t.sess = sess
	t.log = t.log.With("state", string(sess.State))

	user, uerr := e.users.GetOrCreate(ctx, upd.SenderID, upd.Username, upd.DisplayName)
	if uerr != nil {
		t.log.Error("user lookup failed", "err", uerr)
		t.say(genericApology, nil)
		return e.flush(t)
	}
	t.user = user
	e.touch(t)

	if herr := e.route(t); herr != nil {
		outcome = svcErr.KindOf(herr).String()
		e.handleError(t, herr)
	}

	e.saveSession(t)
	return e.flush(t)
}

func (e *Engine) route(t *turn) error {
	if t.user.Banned && !t.isAdmin {
		return e.handleBanned(t)
	}
	if t.upd.Kind == chat.KindCallback {
		return e.handleCallback(t)
	}

	// Reset tokens win everywhere except "finish" on the photo step.
	switch {
	case t.text == CmdStart:
		return e.handleStart(t)
	case isCancel(t.text) && !(t.sess.State == session.StateAddMainPhoto && t.text == LabelFinish):
		return e.handleCancel(t)
	}

	// Wizard steps own every other input.
	if t.sess.State.Wizard() {
		return e.handleWizard(t)
	}

	switch t.sess.State {
	case session.StateAwaitingCityQuery:
		if t.upd.Kind == chat.KindText && !isMenuLabel(t.text, t.isAdmin) {
			return e.handleCityQuery(t)
		}
		t.sess.ResetKeepSearch()
	case session.StateViewUserGallery:
		if t.text == LabelNextPhoto {
			return e.handleGalleryNext(t)
		}
		t.sess.ResetKeepSearch()
	}

	if t.upd.Kind == chat.KindPhoto {
		t.say("Photos can only be added while creating or editing your profile.", e.menuFor(t))
		return nil
	}

	if h := e.menuHandler(t); h != nil {
		return h(t)
	}

	t.say("Sorry, I didn't understand that. Please use the menu below.", e.menuFor(t))
	return nil
}

func (e *Engine) handleWizard(t *turn) error {
	switch t.sess.State {
	case session.StateProfileAge:
		return e.profileAge(t)
	case session.StateProfileGender:
		return e.profileGender(t)
	case session.StateProfileCity:
		return e.profileCity(t)
	case session.StateProfileSeeking:
		return e.profileSeeking(t)
	case session.StateProfileGoal:
		return e.profileGoal(t)
	case session.StateProfileBio:
		return e.profileBio(t)
	case session.StateAddMainPhoto:
		return e.addPhoto(t)
	case session.StateAdvancedSearchGender:
		return e.advancedGender(t)
	case session.StateAdvancedSearchCity:
		return e.advancedCity(t)
	case session.StateAdvancedSearchCityFree:
		return e.advancedCityFree(t)
	case session.StateAdvancedSearchGoal:
		return e.advancedGoal(t)
	case session.StateContactAdmin:
		return e.contactAdminText(t)
	case session.StateAdminBroadcast:
		return e.adminBroadcastText(t)
	case session.StateAdminBanID:
		return e.adminBanID(t)
	case session.StateAdminUnbanID:
		return e.adminUnbanID(t)
	}
	t.log.Warn("no handler for state")
	t.sess.Reset()
	t.say("Let's start over.", e.menuFor(t))
	return nil
}

func (e *Engine) menuHandler(t *turn) func(*turn) error {
	switch t.text {
	case LabelCreateProfile, LabelEditProfile:
		return e.startProfile
	case LabelSearch:
		return e.search
	case LabelSearchByCity:
		return e.searchByCity
	case LabelAdvancedSearch:
		return e.startAdvancedSearch
	case LabelMyProfile:
		return e.myProfile
	case LabelWhoLikedMe:
		return e.whoLikedMe
	case LabelMyMatches:
		return e.myMatches
	case LabelTop:
		return e.top
	case LabelContactAdmin:
		return e.startContactAdmin
	}
	if !t.isAdmin {
		return nil
	}
	switch t.text {
	case LabelAdminPanel:
		return e.adminPanel
	case LabelStats:
		return e.adminStats
	case LabelDetailedStats:
		return e.adminDetailedStats
	case LabelUsers:
		return e.adminUsers
	case LabelBans:
		return e.adminBans
	case LabelBroadcast:
		return e.adminStartBroadcast
	case LabelRefreshDB:
		return e.adminCleanup
	case LabelBanUser:
		return e.adminStartBan
	case LabelUnbanUser:
		return e.adminStartUnban
	case LabelUnbanAll:
		return e.adminUnbanAll
	}
	if t.text == CmdFind || strings.HasPrefix(t.text, CmdFind+" ") {
		return e.adminFind
	}
	return nil
}

func isMenuLabel(text string, isAdmin bool) bool {
	switch text {
	case LabelCreateProfile, LabelEditProfile, LabelSearch, LabelSearchByCity, LabelAdvancedSearch,
		LabelMyProfile, LabelWhoLikedMe, LabelMyMatches, LabelTop, LabelContactAdmin:
		return true
	case LabelAdminPanel:
		return isAdmin
	}
	return false
}

func (e *Engine) handleStart(t *turn) error {
	t.sess.Reset()
	name := t.user.DisplayName
	if name == "" {
		name = "there"
	}
	if !t.user.Complete() {
		t.say(fmt.Sprintf("Hi, %s! 👋\nCreate your profile to start meeting people.", name), e.menuFor(t))
		return nil
	}
	t.say(fmt.Sprintf("Welcome back, %s! 👋", name), e.menuFor(t))
	return nil
}

func (e *Engine) handleCancel(t *turn) error {
	wasAdminFlow := strings.HasPrefix(string(t.sess.State), "ADMIN_")
	switch t.sess.State {
	case session.StateViewUserGallery, session.StateAwaitingCityQuery:
		t.sess.ResetKeepSearch()
	default:
		t.sess.Reset()
	}
	if wasAdminFlow && t.isAdmin {
		t.say("Cancelled.", adminMenu())
		return nil
	}
	t.say("Main menu", e.menuFor(t))
	return nil
}

// handleBanned is the only path for banned users: /start explains the ban,
// contacting the admin stays possible, everything else is refused.
func (e *Engine) handleBanned(t *turn) error {
	const notice = "🚫 Your account has been blocked. You can still write to the admin."

	if t.upd.Kind == chat.KindCallback {
		t.answer = "Your account is blocked."
		return nil
	}
	switch {
	case t.sess.State == session.StateContactAdmin && !isCancel(t.text) && t.text != CmdStart:
		return e.contactAdminText(t)
	case t.text == LabelContactAdmin:
		return e.startContactAdmin(t)
	}
	t.sess.Reset()
	t.say(notice, e.menuFor(t))
	return nil
}

// handleError turns a handler error into a prompt. Validation keeps the
// user on the current step with its keyboard.
func (e *Engine) handleError(t *turn, err error) {
	msg := svcErr.Message(err)
	switch svcErr.KindOf(err) {
	case svcErr.KindValidation:
		t.say(msg, e.stepKeyboard(t))
	case svcErr.KindNotFound:
		if msg == "" {
			msg = "Not found."
		}
		if t.sess.State.Wizard() {
			t.sess.ResetKeepSearch()
		}
		t.say(msg, e.menuFor(t))
	case svcErr.KindQuotaExceeded:
		left := ratelimit.ResetsIn(e.now()).Round(time.Minute)
		t.say(fmt.Sprintf("⏳ You have 0 likes left today. New likes in %s.", formatDuration(left)), e.menuFor(t))
	case svcErr.KindConflict:
		t.say(msg, e.menuFor(t))
	default:
		t.log.Error("handler failed", "err", err)
		t.sess.Reset()
		t.say(genericApology, e.menuFor(t))
	}
	if t.upd.Kind == chat.KindCallback && t.answer == "" {
		t.answer = msg
	}
}

// stepKeyboard re-renders the keyboard of the current state.
func (e *Engine) stepKeyboard(t *turn) *chat.Keyboard {
	switch t.sess.State {
	case session.StateProfileGender:
		return genderKeyboard(false)
	case session.StateProfileCity:
		return cityKeyboard(e.popularCities(t), nil, LabelCancel)
	case session.StateProfileSeeking, session.StateAdvancedSearchGender:
		return genderKeyboard(true)
	case session.StateProfileGoal:
		return goalKeyboard()
	case session.StateAdvancedSearchGoal:
		return goalKeyboard(LabelAnyGoal)
	case session.StateAddMainPhoto:
		return photoKeyboard()
	case session.StateAdvancedSearchCity:
		return cityKeyboard(e.popularCities(t), []string{LabelAnyCity, LabelOtherCity}, LabelCancel)
	case session.StateAwaitingCityQuery:
		return cityKeyboard(e.popularCities(t), nil, LabelBack)
	case session.StateViewUserGallery:
		return galleryKeyboard()
	case session.StateIdle:
		return e.menuFor(t)
	}
	return cancelOnly()
}

func (e *Engine) menuFor(t *turn) *chat.Keyboard {
	if t.user == nil {
		return nil
	}
	if t.user.Banned && !t.isAdmin {
		return chat.Rows(chat.Row(LabelContactAdmin))
	}
	return mainMenu(t.user, t.isAdmin)
}

func (e *Engine) popularCities(t *turn) []string {
	cities, err := e.users.PopularCities(t.ctx, popularCityKeys)
	if err != nil {
		t.log.Warn("popular cities failed", "err", err)
		return nil
	}
	return cities
}

func (e *Engine) touch(t *turn) {
	if e.now().Sub(t.user.LastActive) < touchInterval {
		return
	}
	if err := e.users.Touch(t.ctx, t.user.ID); err != nil {
		t.log.Warn("touch failed", "err", err)
		return
	}
	t.user.LastActive = e.now()
}

func (e *Engine) saveSession(t *turn) {
	if err := e.sessions.Save(t.ctx, t.upd.SenderID, t.sess); err != nil {
		t.log.Error("session save failed", "err", err)
	}
}

// flush delivers queued replies in order and answers the callback query.
func (e *Engine) flush(t *turn) error {
	var firstErr error
	if t.upd.Kind == chat.KindCallback && !t.answered {
		t.answered = true
		if err := e.appCtx.Sender.AnswerCallback(t.ctx, t.upd.CallbackID, t.answer); err != nil {
			t.log.Warn("answer callback failed", "err", err)
		}
	}
	for _, r := range t.replies {
		err := e.appCtx.Sender.Send(t.ctx, r)
		metrics.RecordSend("reply", err)
		if err != nil {
			t.log.Warn("reply delivery failed", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	t.replies = nil
	return firstErr
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%d h %d min", h, m)
}
