// Package admin implements the operator features available to the single
// configured admin user.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/notify"
)

const (
	PageSize    = 10
	searchLimit = 20
	bannedLimit = 50
)

// Service exposes admin operations. Callers gate access with Authorize.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	stats    *repository.StatsRepository
	notifier *notify.Service
}

func NewService(appCtx *app.AppContext, notifier *notify.Service) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		stats:    repository.NewStatsRepository(appCtx.DB),
		notifier: notifier,
	}
}

// IsAdmin reports whether userID is the configured admin.
func (s *Service) IsAdmin(userID int64) bool {
	return userID != 0 && userID == s.appCtx.Config.Bot.AdminID
}

// Authorize fails with NotFound for everyone but the admin, so admin
// features look nonexistent to regular users.
func (s *Service) Authorize(userID int64) error {
	if !s.IsAdmin(userID) {
		s.appCtx.Logger.Warn("admin access denied", "user", userID)
		return svcErr.NotFound("unknown command")
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (*repository.Stats, error) {
	return s.stats.Stats(ctx)
}

func (s *Service) DetailedStats(ctx context.Context) (*repository.DetailedStats, error) {
	return s.stats.Detailed(ctx, time.Now())
}

// ListUsers returns one page of users, newest first, and the token of the
// next page if any.
func (s *Service) ListUsers(ctx context.Context, token string) ([]db.User, *string, error) {
	return s.users.List(ctx, token, PageSize)
}

// Search finds users by id or by name/handle substring.
func (s *Service) Search(ctx context.Context, query string) ([]db.User, error) {
	return s.users.Search(ctx, query, searchLimit)
}

// Ban soft-bans a user. Banning twice is a no-op; changed tells which.
func (s *Service) Ban(ctx context.Context, userID int64) (changed bool, err error) {
	if s.IsAdmin(userID) {
		return false, svcErr.Validation("The admin cannot be banned.")
	}
	changed, err = s.users.SetBanned(ctx, userID, true)
	if err == nil && changed {
		s.appCtx.Logger.Info("user banned", "user", userID)
	}
	return changed, err
}

// Unban lifts a ban. Unbanning a user who is not banned is a no-op.
func (s *Service) Unban(ctx context.Context, userID int64) (changed bool, err error) {
	changed, err = s.users.SetBanned(ctx, userID, false)
	if err == nil && changed {
		s.appCtx.Logger.Info("user unbanned", "user", userID)
	}
	return changed, err
}

func (s *Service) UnbanAll(ctx context.Context) (int64, error) {
	n, err := s.users.UnbanAll(ctx)
	if err == nil {
		s.appCtx.Logger.Info("all bans lifted", "count", n)
	}
	return n, err
}

func (s *Service) Banned(ctx context.Context) ([]db.User, error) {
	return s.users.Banned(ctx, bannedLimit)
}

// Cleanup removes abandoned sign-ups and stale one-sided likes.
func (s *Service) Cleanup(ctx context.Context) (repository.CleanupResult, error) {
	res, err := s.users.Cleanup(ctx, time.Now())
	if err == nil {
		s.appCtx.Logger.Info("cleanup finished", "users", res.Users, "likes", res.Likes)
	}
	return res, err
}

// Broadcast sends text to every non-banned user.
func (s *Service) Broadcast(ctx context.Context, text string) (notify.Tally, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return notify.Tally{}, svcErr.Validation("The message is empty, send some text.")
	}
	return s.notifier.Broadcast(ctx, text)
}

// ParseUserID parses a platform user id typed by the admin.
func ParseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, svcErr.Validation(fmt.Sprintf("%q is not a user id, send digits only.", strings.TrimSpace(s)))
	}
	return id, nil
}
