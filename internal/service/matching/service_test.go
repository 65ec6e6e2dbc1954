package matching_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app/apptest"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/matching"
)

func newService(t *testing.T) (*matching.Service, func(id int64) *db.User, *repository.LikeRepository) {
	t.Helper()
	appCtx, _ := apptest.New(t)
	gdb := appCtx.DB

	// population: caller 1 (female seeking male)
	dbtest.CompleteUser(t, gdb, 1, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 2, db.GenderMale, db.GenderFemale, "Kyiv")
	dbtest.CompleteUser(t, gdb, 3, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.WithGoal(db.GoalCasual))
	dbtest.CompleteUser(t, gdb, 4, db.GenderMale, db.GenderFemale, "Lviv")
	dbtest.CompleteUser(t, gdb, 5, db.GenderMale, db.GenderFemale, "Kyiv", dbtest.Banned())
	dbtest.CompleteUser(t, gdb, 6, db.GenderFemale, db.GenderMale, "Kyiv")
	dbtest.BareUser(t, gdb, 7, func(u *db.User) { u.Gender = db.GenderMale; u.City = "Kyiv" })
	dbtest.CompleteUser(t, gdb, 8, db.GenderMale, db.GenderFemale, "Kyiv", func(u *db.User) { u.HasPhoto = false })

	users := repository.NewUserRepository(gdb)
	load := func(id int64) *db.User {
		u, err := users.Get(context.Background(), id)
		require.NoError(t, err)
		return u
	}
	return matching.NewServiceWithRand(appCtx, rand.New(rand.NewPCG(1, 2))),
		load,
		repository.NewLikeRepository(gdb, ratelimit.New(50))
}

func TestFilteredRandom_OnlyEligible(t *testing.T) {
	ctx := context.Background()
	svc, load, _ := newService(t)
	caller := load(1)

	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		u, err := svc.FilteredRandom(ctx, caller, "")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.NotEqual(t, caller.ID, u.ID)
		assert.False(t, u.Banned)
		assert.True(t, u.Complete())
		assert.Equal(t, db.GenderMale, u.Gender)
		seen[u.ID] = true
	}
	assert.Equal(t, map[int64]bool{2: true, 3: true, 4: true}, seen)

	u, err := svc.FilteredRandom(ctx, caller, "lviv")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(4), u.ID)

	none, err := svc.FilteredRandom(ctx, caller, "Odesa")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFilteredRandom_SkipsLiked(t *testing.T) {
	ctx := context.Background()
	svc, load, likes := newService(t)

	for _, to := range []int64{2, 3} {
		_, err := likes.AddLike(ctx, 1, to)
		require.NoError(t, err)
	}
	for i := 0; i < 20; i++ {
		u, err := svc.FilteredRandom(ctx, load(1), "")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, int64(4), u.ID)
	}
}

func TestCitySearch(t *testing.T) {
	ctx := context.Background()
	svc, load, _ := newService(t)

	ids, err := svc.CitySearch(ctx, load(1), "📍 KYIV")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3}, ids)

	ids, err = svc.CitySearch(ctx, load(1), "!!")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAdvancedSearch(t *testing.T) {
	ctx := context.Background()
	svc, load, _ := newService(t)
	caller := load(1)

	ids, err := svc.AdvancedSearch(ctx, caller, matching.Criteria{Gender: db.GenderMale, City: "Kyiv", Goal: db.GoalCasual})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	ids, err = svc.AdvancedSearch(ctx, caller, matching.Criteria{Gender: db.SeekingAny})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3, 4}, ids)

	// a female-only search contradicts the caller seeking men
	ids, err = svc.AdvancedSearch(ctx, caller, matching.Criteria{Gender: db.GenderFemale})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTop(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	top, err := svc.Top(ctx, 1, "")
	require.NoError(t, err)
	for _, u := range top {
		assert.NotEqual(t, int64(1), u.ID)
		assert.True(t, u.Searchable())
	}
	assert.Len(t, top, 4)

	men, err := svc.Top(ctx, 1, db.GenderMale)
	require.NoError(t, err)
	assert.Len(t, men, 3)
}

// Every result of every query respects the caller's filter and excludes
// banned, incomplete and self.
func TestCandidateQueries_ExcludeSelfBannedAndIncomplete(t *testing.T) {
	ctx := context.Background()
	svc, load, _ := newService(t)

	for _, callerID := range []int64{1, 2, 6} {
		caller := load(callerID)
		genders := matching.SeekingGenders(caller.SeekingGender)

		var ids []int64
		city, err := svc.CitySearch(ctx, caller, "kyiv")
		require.NoError(t, err)
		ids = append(ids, city...)
		adv, err := svc.AdvancedSearch(ctx, caller, matching.Criteria{})
		require.NoError(t, err)
		ids = append(ids, adv...)

		for _, id := range ids {
			u := load(id)
			assert.NotEqual(t, callerID, id)
			assert.True(t, u.Searchable(), "user %d", id)
			if genders != nil {
				assert.Contains(t, genders, u.Gender)
			}
		}
	}
}
