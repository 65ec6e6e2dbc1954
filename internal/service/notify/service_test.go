package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app/apptest"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/repository"
)

func TestBroadcast_TallyCountsBlockedUsers(t *testing.T) {
	ctx := context.Background()
	appCtx, rec := apptest.New(t)
	gdb := appCtx.DB

	dbtest.CompleteUser(t, gdb, 1, db.GenderMale, db.GenderFemale, "Kyiv")
	dbtest.BareUser(t, gdb, 2)
	dbtest.CompleteUser(t, gdb, 3, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 4, db.GenderFemale, db.GenderMale, "Kyiv", dbtest.Banned())
	rec.Block(3)

	svc := NewService(appCtx)
	var pauses []time.Duration
	svc.delay = 100 * time.Millisecond
	svc.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	tally, err := svc.Broadcast(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, Tally{Success: 2, Failure: 1}, tally)

	assert.Len(t, rec.All(), 2)
	assert.Empty(t, rec.To(4))
	last, ok := rec.Last(1)
	require.True(t, ok)
	assert.Contains(t, last.Text, "hello")

	// one pause between each pair of sends, none before the first
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, pauses)
}

func TestBroadcast_StopsOnCancel(t *testing.T) {
	appCtx, rec := apptest.New(t)
	for id := int64(1); id <= 3; id++ {
		dbtest.BareUser(t, appCtx.DB, id)
	}

	svc := NewService(appCtx)
	svc.delay = time.Hour
	svc.sleep = func(context.Context, time.Duration) error { return context.Canceled }
	ctx := context.Background()

	tally, err := svc.Broadcast(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tally.Success)
	assert.Len(t, rec.All(), 1)
}

func TestNewMatch_BothPartiesWithLinks(t *testing.T) {
	ctx := context.Background()
	appCtx, rec := apptest.New(t)
	svc := NewService(appCtx)

	a := db.User{ID: 1, DisplayName: "Anna", Username: "anna_k"}
	b := db.User{ID: 2, DisplayName: "Bo <b>"}

	require.NoError(t, svc.NewMatch(ctx, a, b))

	toA, ok := rec.Last(1)
	require.True(t, ok)
	assert.Contains(t, toA.Text, "Bo &lt;b&gt;")
	assert.Contains(t, toA.Text, "tg://user?id=2")
	assert.Empty(t, toA.Inline, "no url button without a handle")

	toB, ok := rec.Last(2)
	require.True(t, ok)
	assert.Contains(t, toB.Text, "@anna_k")
	assert.Equal(t, "https://t.me/anna_k", toB.Inline[0][0].URL)
}

func TestNewLike_IncludesNameAndRating(t *testing.T) {
	appCtx, rec := apptest.New(t)
	svc := NewService(appCtx)

	require.NoError(t, svc.NewLike(context.Background(),
		db.User{ID: 2, Rating: 7.5}, db.User{ID: 1, DisplayName: "Anna"}))

	msg, ok := rec.Last(2)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Anna")
	assert.Contains(t, msg.Text, "7.5")
}

func TestContactAdmin(t *testing.T) {
	appCtx, rec := apptest.New(t)
	svc := NewService(appCtx)

	require.NoError(t, svc.ContactAdmin(context.Background(), db.User{ID: 5, Username: "ivan"}, "help <pls>"))

	msg, ok := rec.Last(apptest.AdminID)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "@ivan")
	assert.Contains(t, msg.Text, "<code>5</code>")
	assert.Contains(t, msg.Text, "help &lt;pls&gt;")
}

func TestDailySummaries_SkipQuietUsers(t *testing.T) {
	ctx := context.Background()
	appCtx, rec := apptest.New(t)
	gdb := appCtx.DB

	dbtest.CompleteUser(t, gdb, 1, db.GenderMale, db.GenderFemale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 2, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 3, db.GenderFemale, db.GenderMale, "Kyiv")

	likes := repository.NewLikeRepository(gdb, ratelimit.New(50))
	_, err := likes.AddLike(ctx, 2, 1)
	require.NoError(t, err)

	tally, err := NewService(appCtx).DailySummaries(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, Tally{Success: 1}, tally)

	msg, ok := rec.Last(1)
	require.True(t, ok)
	assert.True(t, strings.Contains(msg.Text, "New likes: 1"))
}

func TestProfileReminders(t *testing.T) {
	appCtx, rec := apptest.New(t)
	gdb := appCtx.DB
	old := time.Now().AddDate(0, 0, -2)

	dbtest.BareUser(t, gdb, 1, dbtest.WithCreated(old))
	dbtest.CompleteUser(t, gdb, 2, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithCreated(old),
		func(u *db.User) { u.HasPhoto = false })
	dbtest.BareUser(t, gdb, 3)

	tally, err := NewService(appCtx).ProfileReminders(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, Tally{Success: 2}, tally)

	photo, ok := rec.Last(2)
	require.True(t, ok)
	assert.Contains(t, photo.Text, "photo")
	assert.Empty(t, rec.To(3))
}
