package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/cache"
	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/config"
)

// AppContext holds shared dependencies (Config, DB, Redis, Logger, outbound chat).
// RedisCache is nil when sessions are kept in memory.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Sender     chat.Sender
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, sender chat.Sender) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Sender:     sender,
	}
}
