package admin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app/apptest"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/notify"
)

func TestAuthorize(t *testing.T) {
	appCtx, _ := apptest.New(t)
	svc := admin.NewService(appCtx, notify.NewService(appCtx))

	assert.NoError(t, svc.Authorize(apptest.AdminID))
	assert.True(t, svcErr.Is(svc.Authorize(5), svcErr.KindNotFound))
	assert.False(t, svc.IsAdmin(0))
}

// TestBan_HidesUserAndIsIdempotent covers banning twice and the banned user
// vanishing from every candidate query.
func TestBan_HidesUserAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := apptest.New(t)
	svc := admin.NewService(appCtx, notify.NewService(appCtx))
	match := matching.NewService(appCtx)

	dbtest.CompleteUser(t, appCtx.DB, 1, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, appCtx.DB, 2, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, appCtx.DB, 4, db.GenderMale, db.GenderFemale, "Kyiv")

	changed, err := svc.Ban(ctx, 4)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = svc.Ban(ctx, 4)
	require.NoError(t, err)
	assert.False(t, changed)

	var caller db.User
	require.NoError(t, appCtx.DB.First(&caller, 1).Error)

	u, err := match.FilteredRandom(ctx, &caller, "")
	require.NoError(t, err)
	assert.Nil(t, u)
	ids, err := match.CitySearch(ctx, &caller, "Kyiv")
	require.NoError(t, err)
	assert.Empty(t, ids)
	top, err := match.Top(ctx, 1, "")
	require.NoError(t, err)
	for _, u := range top {
		assert.NotEqual(t, int64(4), u.ID)
	}

	banned, err := svc.Banned(ctx)
	require.NoError(t, err)
	require.Len(t, banned, 1)

	changed, err = svc.Unban(ctx, 4)
	require.NoError(t, err)
	assert.True(t, changed)
	u, err = match.FilteredRandom(ctx, &caller, "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(4), u.ID)
}

func TestBan_Rejections(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := apptest.New(t)
	svc := admin.NewService(appCtx, notify.NewService(appCtx))

	_, err := svc.Ban(ctx, apptest.AdminID)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = svc.Ban(ctx, 12345)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}

func TestStats_GoalHistogram(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := apptest.New(t)
	svc := admin.NewService(appCtx, notify.NewService(appCtx))

	dbtest.CompleteUser(t, appCtx.DB, 1, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, appCtx.DB, 2, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithGoal(db.GoalActive))
	dbtest.BareUser(t, appCtx.DB, 3)

	s, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, int64(2), s.Complete)
	assert.Equal(t, int64(1), s.Goals[db.GoalActive])

	d, err := svc.DetailedStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Total, d.Total)
}

func TestListUsers_Pages(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := apptest.New(t)
	svc := admin.NewService(appCtx, notify.NewService(appCtx))
	for id := int64(1); id <= 12; id++ {
		dbtest.BareUser(t, appCtx.DB, id)
	}

	first, next, err := svc.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, first, admin.PageSize)
	require.NotNil(t, next)

	second, next, err := svc.ListUsers(ctx, *next)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Nil(t, next)
}

func TestBroadcast_EmptyText(t *testing.T) {
	appCtx, rec := apptest.New(t)
	svc := admin.NewService(appCtx, notify.NewService(appCtx))

	_, err := svc.Broadcast(context.Background(), "   ")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
	assert.Empty(t, rec.All())
}

func TestParseUserID(t *testing.T) {
	id, err := admin.ParseUserID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, in := range []string{"", "abc", "-1", "0"} {
		_, err := admin.ParseUserID(in)
		assert.True(t, svcErr.Is(err, svcErr.KindValidation), in)
	}
}
