package explore

import (
	"context"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/metrics"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/repository"
	"github.com/oggyb/matchbot/internal/service/notify"
)

const listLimit = 20

// Service implements liking and the "who liked me" / "my matches" views.
// It contains the business logic on top of the repository layer and emits
// notifications once the like transaction has committed.
type Service struct {
	appCtx   *app.AppContext
	likeRepo *repository.LikeRepository
	limiter  *ratelimit.Limiter
	notifier *notify.Service
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via LikeRepository)
//   - the daily like quota from Config
//   - the notifier used for like and match messages
func NewExploreService(appCtx *app.AppContext, notifier *notify.Service) *Service {
	limiter := ratelimit.New(appCtx.Config.Limits.DailyLikes)
	return &Service{
		appCtx:   appCtx,
		likeRepo: repository.NewLikeRepository(appCtx.DB, limiter),
		limiter:  limiter,
		notifier: notifier,
	}
}

// LikeOutcome is what the caller shows after a like.
type LikeOutcome struct {
	Matched   bool
	Duplicate bool
	Remaining int
	Recipient db.User
}

// Like records fromID liking toID.
//
// Behavior:
//   - A repeated like is an idempotent success with Duplicate set.
//   - Quota, self-like and missing-user errors are returned unchanged.
//   - After commit the recipient gets NewLike; on a new match both parties
//     get NewMatch. Delivery failures are logged only.
//
// Example:
//
//	out, err := svc.Like(ctx, 1, 2)
func (s *Service) Like(ctx context.Context, fromID, toID int64) (*LikeOutcome, error) {
	s.appCtx.Logger.Debug("Like called", "from", fromID, "to", toID)

	res, err := s.likeRepo.AddLike(ctx, fromID, toID)
	if svcErr.Is(err, svcErr.KindConflict) {
		metrics.RecordLike(svcErr.KindConflict.String())
		return &LikeOutcome{Duplicate: true}, nil
	}
	if err != nil {
		metrics.RecordLike(svcErr.KindOf(err).String())
		return nil, err
	}

	if err := s.notifier.NewLike(ctx, res.Recipient, res.Liker); err != nil {
		s.appCtx.Logger.Warn("new like notification failed", "to", toID, "err", err)
	}
	if res.Matched {
		metrics.RecordLike("match")
		s.appCtx.Logger.Info("new match", "a", fromID, "b", toID)
		if err := s.notifier.NewMatch(ctx, res.Liker, res.Recipient); err != nil {
			s.appCtx.Logger.Warn("match notification failed", "a", fromID, "b", toID, "err", err)
		}
	} else {
		metrics.RecordLike("like")
	}

	return &LikeOutcome{
		Matched:   res.Matched,
		Remaining: res.Remaining,
		Recipient: res.Recipient,
	}, nil
}

// LikedYou returns users who liked userID; onlyNew hides those already
// liked back.
func (s *Service) LikedYou(ctx context.Context, userID int64, onlyNew bool) ([]db.User, error) {
	users, err := s.likeRepo.Likers(ctx, userID, onlyNew, listLimit)
	if err != nil {
		s.appCtx.Logger.Error("Likers failed", "user", userID, "err", err)
		return nil, err
	}
	return users, nil
}

// Matches returns everyone userID matched with, newest first.
func (s *Service) Matches(ctx context.Context, userID int64) ([]db.User, error) {
	users, err := s.likeRepo.MatchesOf(ctx, userID, listLimit)
	if err != nil {
		s.appCtx.Logger.Error("MatchesOf failed", "user", userID, "err", err)
		return nil, err
	}
	return users, nil
}

// HasLiked reports whether fromID already liked toID.
func (s *Service) HasLiked(ctx context.Context, fromID, toID int64) (bool, error) {
	return s.likeRepo.HasLiked(ctx, fromID, toID)
}

// Remaining returns today's unused likes of u.
func (s *Service) Remaining(u db.User) int {
	return s.limiter.Remaining(u.DailyLikesSent, u.LastLikeDay, time.Now())
}

// Quota is the configured daily like limit.
func (s *Service) Quota() int { return s.limiter.Quota }
