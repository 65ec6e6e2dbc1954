package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/profile"
	"github.com/oggyb/matchbot/internal/repository"
)

func TestGetOrCreate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	u, err := repo.GetOrCreate(ctx, 42, "anna", "Anna")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.False(t, u.ProfileFilled())

	_, err = repo.UpdateProfile(ctx, 42, profile.Profile{
		Age: 30, Gender: db.GenderFemale, City: "Lviv",
		SeekingGender: db.GenderMale, Goal: db.GoalFriendship, Bio: "Coffee and mountains",
	})
	require.NoError(t, err)

	again, err := repo.GetOrCreate(ctx, 42, "anna_new", "Anna K")
	require.NoError(t, err)
	assert.Equal(t, 30, again.Age)
	assert.Equal(t, "Lviv", again.City)
	assert.Equal(t, "anna_new", again.Username)
	assert.Equal(t, "Anna K", again.DisplayName)

	var n int64
	require.NoError(t, gdb.Model(&db.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGet_NotFound(t *testing.T) {
	repo := repository.NewUserRepository(dbtest.New(t))
	_, err := repo.Get(context.Background(), 7)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	valid := profile.Profile{
		Age: 25, Gender: db.GenderFemale, City: "🏙 Kyiv",
		SeekingGender: db.GenderMale, Goal: db.GoalSerious, Bio: "I love hiking and books",
	}

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.UpdateProfile(ctx, 1, valid)
		assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	})

	dbtest.BareUser(t, gdb, 1)

	t.Run("out of range", func(t *testing.T) {
		bad := valid
		bad.Age = 17
		_, err := repo.UpdateProfile(ctx, 1, bad)
		assert.True(t, svcErr.Is(err, svcErr.KindValidation))
		assert.Zero(t, reload(t, gdb, 1).Age)
	})

	t.Run("writes all fields", func(t *testing.T) {
		u, err := repo.UpdateProfile(ctx, 1, valid)
		require.NoError(t, err)
		assert.Equal(t, "Kyiv", u.City)
		assert.Equal(t, "kyiv", u.CityKey)

		stored := reload(t, gdb, 1)
		assert.Equal(t, 25, stored.Age)
		assert.Equal(t, db.GenderFemale, stored.Gender)
		assert.Equal(t, db.GenderMale, stored.SeekingGender)
		assert.Equal(t, db.GoalSerious, stored.Goal)
		assert.Equal(t, "I love hiking and books", stored.Bio)
		// bio > 20 runes and recent activity, no photo yet
		assert.InDelta(t, 6.5, stored.Rating, 0.001)
	})
}

func TestSetBanned_Idempotent(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)
	dbtest.CompleteUser(t, gdb, 5, db.GenderMale, db.GenderFemale, "Kyiv")

	changed, err := repo.SetBanned(ctx, 5, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetBanned(ctx, 5, true)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, reload(t, gdb, 5).Banned)

	banned, err := repo.Banned(ctx, 10)
	require.NoError(t, err)
	require.Len(t, banned, 1)

	_, err = repo.SetBanned(ctx, 99, true)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	n, err := repo.UnbanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, reload(t, gdb, 5).Banned)
}

func TestList_Pagination(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	for i := int64(1); i <= 5; i++ {
		dbtest.BareUser(t, gdb, i, dbtest.WithCreated(base.Add(time.Duration(i)*time.Minute)))
	}

	page, next, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []int64{5, 4}, []int64{page[0].ID, page[1].ID})
	require.NotNil(t, next)

	page, next, err = repo.List(ctx, *next, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, []int64{page[0].ID, page[1].ID})
	require.NotNil(t, next)

	page, next, err = repo.List(ctx, *next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].ID)
	assert.Nil(t, next)

	_, _, err = repo.List(ctx, "%%%", 2)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	dbtest.CompleteUser(t, gdb, 11, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithUsername("oleg_k"))
	dbtest.CompleteUser(t, gdb, 12, db.GenderFemale, db.GenderMale, "Kyiv", dbtest.WithUsername("olena"))
	dbtest.CompleteUser(t, gdb, 13, db.GenderFemale, db.GenderMale, "Kyiv", dbtest.WithUsername("maria"))

	byID, err := repo.Search(ctx, "12", 10)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, int64(12), byID[0].ID)

	byName, err := repo.Search(ctx, "@OLE", 10)
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	literal, err := repo.Search(ctx, "_", 10)
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, int64(11), literal[0].ID)

	_, err = repo.Search(ctx, "  ", 10)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)
	likes := newLikeRepo(gdb)
	now := time.Now()

	dbtest.BareUser(t, gdb, 1, dbtest.WithCreated(now.AddDate(0, 0, -40)))
	dbtest.BareUser(t, gdb, 2, dbtest.WithCreated(now.AddDate(0, 0, -5)))
	dbtest.CompleteUser(t, gdb, 3, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithCreated(now.AddDate(0, 0, -200)))
	dbtest.CompleteUser(t, gdb, 4, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 5, db.GenderFemale, db.GenderMale, "Kyiv")

	// 3<->4 is a match, 3->5 is one-way; both old
	for _, p := range [][2]int64{{3, 4}, {4, 3}, {3, 5}} {
		_, err := likes.AddLike(ctx, p[0], p[1])
		require.NoError(t, err)
	}
	require.NoError(t, gdb.Model(&db.Like{}).Where("1 = 1").Update("created_at", now.AddDate(0, 0, -100)).Error)
	// a fresh one-way like stays
	_, err := likes.AddLike(ctx, 5, 4)
	require.NoError(t, err)

	res, err := repo.Cleanup(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Users)
	assert.Equal(t, int64(1), res.Likes)

	_, err = repo.Get(ctx, 1)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	_, err = repo.Get(ctx, 2)
	assert.NoError(t, err)

	ok, err := likes.HasLiked(ctx, 3, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	for _, p := range [][2]int64{{3, 4}, {4, 3}, {5, 4}} {
		ok, err := likes.HasLiked(ctx, p[0], p[1])
		require.NoError(t, err)
		assert.True(t, ok, "like %d->%d", p[0], p[1])
	}
	matched, err := likes.IsMatch(ctx, 3, 4)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestPopularCities(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)

	dbtest.CompleteUser(t, gdb, 1, db.GenderMale, db.GenderFemale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 2, db.GenderMale, db.GenderFemale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 3, db.GenderMale, db.GenderFemale, "Lviv")
	dbtest.CompleteUser(t, gdb, 4, db.GenderMale, db.GenderFemale, "Odesa", dbtest.Banned())

	cities, err := repo.PopularCities(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kyiv", "Lviv"}, cities)
}

func TestIncomplete(t *testing.T) {
	ctx := context.Background()
	gdb := dbtest.New(t)
	repo := repository.NewUserRepository(gdb)
	now := time.Now()

	dbtest.BareUser(t, gdb, 1, dbtest.WithCreated(now.AddDate(0, 0, -3)))
	dbtest.BareUser(t, gdb, 2)
	dbtest.CompleteUser(t, gdb, 3, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithCreated(now.AddDate(0, 0, -3)))

	users, err := repo.Incomplete(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(1), users[0].ID)
}
