package db_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/repository"
)

func TestDialector(t *testing.T) {
	cases := map[string]string{
		"":                               "sqlite",
		"sqlite:///tmp/bot.db":           "sqlite",
		"file:bot.db":                    "sqlite",
		"postgres://u:p@localhost/bot":   "postgres",
		"postgresql://u:p@localhost/bot": "postgres",
		"mysql://u:p@tcp(localhost)/bot": "mysql",
	}
	for url, want := range cases {
		d, err := db.Dialector(url, "bot.db")
		require.NoError(t, err, url)
		assert.Equal(t, want, d.Name(), url)
	}

	_, err := db.Dialector("redis://localhost", "")
	assert.Error(t, err)
}

// TestNewDB_ConcurrentLikesOnFile runs likes from distinct users at once
// against the default file-backed SQLite database.
func TestNewDB_ConcurrentLikesOnFile(t *testing.T) {
	cfg := config.New()
	cfg.DB.URL = ""
	cfg.DB.SQLitePath = filepath.Join(t.TempDir(), "bot.db")
	cfg.Log.Level = "error"

	gdb, err := db.NewDB(cfg)
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	const n = 20
	for i := int64(1); i <= n; i++ {
		dbtest.CompleteUser(t, gdb, i, db.GenderMale, db.SeekingAny, "Kyiv")
	}
	likes := repository.NewLikeRepository(gdb, ratelimit.New(50))

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := int64(1); i <= n; i++ {
		wg.Add(1)
		go func(from int64) {
			defer wg.Done()
			if _, err := likes.AddLike(context.Background(), from, from%n+1); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	var count int64
	require.NoError(t, gdb.Model(&db.Like{}).Count(&count).Error)
	assert.Equal(t, int64(n), count)
}
