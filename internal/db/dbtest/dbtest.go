// Package dbtest spins up isolated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/matchbot/internal/db"
)

var seq atomic.Int64

// New opens a fresh shared-cache in-memory database with the full schema.
// The connection pool is pinned to one connection so every query, including
// those inside transactions, sees the same database.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, seq.Add(1))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().Truncate(time.Millisecond) },
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// UserOpt tweaks a seeded user.
type UserOpt func(*db.User)

// CompleteUser inserts a searchable user with one photo.
func CompleteUser(t *testing.T, gdb *gorm.DB, id int64, gender, seeking, city string, opts ...UserOpt) db.User {
	t.Helper()

	u := db.User{
		ID:            id,
		Username:      fmt.Sprintf("user%d", id),
		DisplayName:   fmt.Sprintf("User %d", id),
		Age:           25,
		Gender:        gender,
		City:          city,
		CityKey:       strings.ToLower(city),
		SeekingGender: seeking,
		Goal:          db.GoalSerious,
		Bio:           "I enjoy long walks and good coffee",
		HasPhoto:      true,
		Rating:        5,
		LastActive:    time.Now(),
	}
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, gdb.Create(&u).Error)
	require.NoError(t, gdb.Create(&db.Photo{UserID: id, MediaID: fmt.Sprintf("photo-%d", id)}).Error)
	return u
}

// BareUser inserts a user who has not filled a profile.
func BareUser(t *testing.T, gdb *gorm.DB, id int64, opts ...UserOpt) db.User {
	t.Helper()

	u := db.User{ID: id, DisplayName: fmt.Sprintf("User %d", id), Rating: 5, LastActive: time.Now()}
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

func Banned() UserOpt                  { return func(u *db.User) { u.Banned = true } }
func WithGoal(goal string) UserOpt     { return func(u *db.User) { u.Goal = goal } }
func WithRating(r float64) UserOpt     { return func(u *db.User) { u.Rating = r } }
func WithLikes(n int) UserOpt          { return func(u *db.User) { u.LikesReceived = n } }
func WithUsername(name string) UserOpt { return func(u *db.User) { u.Username = name } }
func WithCreated(t time.Time) UserOpt  { return func(u *db.User) { u.CreatedAt = t } }
func WithDailyLikes(n int, day string) UserOpt {
	return func(u *db.User) { u.DailyLikesSent = n; u.LastLikeDay = day }
}
