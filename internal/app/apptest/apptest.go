// Package apptest wires an AppContext for service tests: in-memory SQLite,
// discarded logs and a recording sender.
package apptest

import (
	"testing"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/chat/chattest"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/logger"
)

const AdminID int64 = 1000

// New returns a ready AppContext and the recorder behind its Sender.
func New(t *testing.T) (*app.AppContext, *chattest.Recorder) {
	t.Helper()

	cfg := config.New()
	cfg.Bot.Token = "test-token"
	cfg.Bot.AdminID = AdminID
	cfg.Limits.DailyLikes = 50
	cfg.Limits.MaxPhotos = 3
	cfg.Limits.SearchResults = 20
	cfg.Limits.TopResults = 10
	cfg.Limits.BroadcastDelay = 0

	rec := chattest.New()
	return app.New(cfg, dbtest.New(t), nil, logger.Discard(), rec), rec
}
