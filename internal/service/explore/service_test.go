package explore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/app/apptest"
	"github.com/oggyb/matchbot/internal/chat/chattest"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/service/explore"
	"github.com/oggyb/matchbot/internal/service/notify"
)

//
// Test helpers
//

// setupService wires an Explore service over a fresh in-memory database.
//
// Dataset:
//   - user 1: female seeking male, handle "anna"
//   - user 2: male seeking female, handle "bohdan"
//   - user 3: male seeking female, no handle
func setupService(t *testing.T) (*explore.Service, *app.AppContext, *chattest.Recorder) {
	t.Helper()

	appCtx, rec := apptest.New(t)
	dbtest.CompleteUser(t, appCtx.DB, 1, db.GenderFemale, db.GenderMale, "Kyiv", dbtest.WithUsername("anna"))
	dbtest.CompleteUser(t, appCtx.DB, 2, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithUsername("bohdan"))
	dbtest.CompleteUser(t, appCtx.DB, 3, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithUsername(""))

	return explore.NewExploreService(appCtx, notify.NewService(appCtx)), appCtx, rec
}

//
// Tests
//

// TestLike_MutualMatchNotifiesBoth walks through a mutual like: the first
// like notifies the recipient, the second forms exactly one match and both
// parties get a match message with a contact link.
func TestLike_MutualMatchNotifiesBoth(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, rec := setupService(t)

	out, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, out.Matched)
	assert.Equal(t, 49, out.Remaining)

	likeMsg, ok := rec.Last(2)
	require.True(t, ok)
	assert.Contains(t, likeMsg.Text, "liked your profile")
	assert.Empty(t, rec.To(1))

	rec.Reset()
	out, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, out.Matched)

	var matches int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&matches).Error)
	assert.Equal(t, int64(1), matches)

	toA := rec.To(1)
	require.Len(t, toA, 2) // like + match
	assert.Contains(t, toA[1].Text, "match")
	assert.Contains(t, toA[1].Text, "@bohdan")

	toB := rec.To(2)
	require.Len(t, toB, 1)
	assert.Contains(t, toB[0].Text, "@anna")

	mine, err := svc.Matches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(2), mine[0].ID)
}

// TestLike_DuplicateIsIdempotent checks that liking twice changes nothing
// and sends no second notification.
func TestLike_DuplicateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, rec := setupService(t)

	_, err := svc.Like(ctx, 1, 3)
	require.NoError(t, err)
	out, err := svc.Like(ctx, 1, 3)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	assert.Len(t, rec.To(3), 1)

	var u db.User
	require.NoError(t, appCtx.DB.First(&u, 3).Error)
	assert.Equal(t, 1, u.LikesReceived)
}

// TestLike_QuotaExceeded leaves storage untouched and sends nothing.
func TestLike_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, rec := setupService(t)
	require.NoError(t, appCtx.DB.Model(&db.User{}).Where("id = ?", 1).Updates(map[string]any{
		"daily_likes_sent": 50,
		"last_like_day":    ratelimit.Day(time.Now()),
	}).Error)

	_, err := svc.Like(ctx, 1, 2)
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindQuotaExceeded))
	assert.Empty(t, rec.All())

	var u db.User
	require.NoError(t, appCtx.DB.First(&u, 1).Error)
	assert.Zero(t, svc.Remaining(u))
}

// TestLike_BlockedRecipientStillCommits shows that notification failures do
// not undo the like.
func TestLike_BlockedRecipientStillCommits(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := setupService(t)
	rec.Block(2)

	out, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)

	liked, err := svc.HasLiked(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, liked)
}

// TestLikedYou lists likers, optionally only those not liked back.
func TestLikedYou(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, err := svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	_, err = svc.Like(ctx, 3, 1)
	require.NoError(t, err)
	_, err = svc.Like(ctx, 1, 2)
	require.NoError(t, err)

	all, err := svc.LikedYou(ctx, 1, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	fresh, err := svc.LikedYou(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, int64(3), fresh[0].ID)
}
