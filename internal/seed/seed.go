// Package seed fills a database with demo users, photos and likes for local
// development. Everything goes through the repositories, so counters,
// ratings and matches come out exactly as live traffic would produce them.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"
	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/profile"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/repository"
)

// FirstID is the id of the first demo user. Real platform ids of test
// accounts are far above it.
const FirstID int64 = 100_000

var cities = []string{"Kyiv", "Lviv", "Odesa", "Kharkiv", "Dnipro", "Vinnytsia", "Warsaw", "Berlin"}

// Options control the generated data set.
type Options struct {
	Users        int
	LikesPerUser int
	MaxPhotos    int
	// BannedEvery bans every n-th user; 0 bans nobody.
	BannedEvery int
	// Seed makes the data set reproducible.
	Seed uint64
	// Reset deletes all existing rows first.
	Reset bool
}

// DefaultOptions is a small lively data set.
func DefaultOptions() Options {
	return Options{Users: 40, LikesPerUser: 8, MaxPhotos: 3, BannedEvery: 15, Seed: 42, Reset: true}
}

// Result counts what was written.
type Result struct {
	Users   int
	Photos  int
	Likes   int
	Matches int
	Banned  int
}

// Run seeds gdb according to opts.
//
// Behavior:
//   - Users get ids FirstID+1 .. FirstID+Users and a complete profile.
//   - Each user likes up to LikesPerUser users of the gender they seek;
//     repeated picks are skipped.
//   - Bans are applied after likes so banned users still show up in history.
func Run(ctx context.Context, gdb *gorm.DB, log *slog.Logger, opts Options) (*Result, error) {
	f := gofakeit.New(opts.Seed)
	users := repository.NewUserRepository(gdb)
	photos := repository.NewPhotoRepository(gdb, max(opts.MaxPhotos, 1))
	likes := repository.NewLikeRepository(gdb, ratelimit.New(max(opts.LikesPerUser, 1)))

	if opts.Reset {
		if err := reset(ctx, gdb); err != nil {
			return nil, err
		}
		log.Info("cleared existing data")
	}

	res := &Result{}
	seeded := make([]db.User, 0, opts.Users)
	for i := 1; i <= opts.Users; i++ {
		id := FirstID + int64(i)
		first := f.FirstName()
		if _, err := users.GetOrCreate(ctx, id, f.Username(), first+" "+f.LastName()); err != nil {
			return nil, fmt.Errorf("create user %d: %w", id, err)
		}

		p := fakeProfile(f, i)
		u, err := users.UpdateProfile(ctx, id, p)
		if err != nil {
			return nil, fmt.Errorf("profile of user %d: %w", id, err)
		}

		n := f.Number(1, max(opts.MaxPhotos, 1))
		for j := 0; j < n; j++ {
			if _, err := photos.Add(ctx, id, "seed-"+f.UUID()); err != nil {
				return nil, fmt.Errorf("photo of user %d: %w", id, err)
			}
			res.Photos++
		}
		seeded = append(seeded, *u)
		res.Users++
	}
	log.Info("seeded users", "count", res.Users, "photos", res.Photos)

	for _, u := range seeded {
		pool := candidates(seeded, u)
		for j := 0; j < opts.LikesPerUser && len(pool) > 0; j++ {
			target := pool[f.Number(0, len(pool)-1)]
			out, err := likes.AddLike(ctx, u.ID, target)
			switch {
			case svcErr.Is(err, svcErr.KindConflict):
				continue
			case err != nil:
				return nil, fmt.Errorf("like %d -> %d: %w", u.ID, target, err)
			}
			res.Likes++
			if out.Matched {
				res.Matches++
			}
		}
	}
	log.Info("seeded likes", "likes", res.Likes, "matches", res.Matches)

	if opts.BannedEvery > 0 {
		for i := opts.BannedEvery; i <= opts.Users; i += opts.BannedEvery {
			if _, err := users.SetBanned(ctx, FirstID+int64(i), true); err != nil {
				return nil, err
			}
			res.Banned++
		}
	}
	return res, nil
}

func fakeProfile(f *gofakeit.Faker, i int) profile.Profile {
	gender, seeking := db.GenderMale, db.GenderFemale
	if i%2 == 0 {
		gender, seeking = db.GenderFemale, db.GenderMale
	}
	if i%7 == 0 {
		seeking = db.SeekingAny
	}
	return profile.Profile{
		Age:           f.Number(profile.MinAge, 45),
		Gender:        gender,
		City:          f.RandomString(cities),
		SeekingGender: seeking,
		Goal:          f.RandomString(db.Goals),
		Bio:           f.Sentence(12),
	}
}

// candidates lists the ids u would be shown in search.
func candidates(all []db.User, u db.User) []int64 {
	var out []int64
	for _, c := range all {
		if c.ID == u.ID {
			continue
		}
		if u.SeekingGender != db.SeekingAny && c.Gender != u.SeekingGender {
			continue
		}
		out = append(out, c.ID)
	}
	return out
}

func reset(ctx context.Context, gdb *gorm.DB) error {
	tx := gdb.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{&db.ProfileView{}, &db.Match{}, &db.Like{}, &db.Photo{}, &db.User{}} {
		if err := tx.Delete(m).Error; err != nil {
			return svcErr.Storage("reset failed", err)
		}
	}
	return nil
}
