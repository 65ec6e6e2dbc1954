package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/ratelimit"
	"github.com/oggyb/matchbot/internal/rating"
)

// LikeRepository provides data access methods for the Like and Match models.
// It owns the only write path that creates matches.
type LikeRepository struct {
	db      *gorm.DB
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewLikeRepository creates a new repository bound to the given DB connection.
// limiter enforces the daily quota inside the like transaction.
func NewLikeRepository(database *gorm.DB, limiter *ratelimit.Limiter) *LikeRepository {
	return &LikeRepository{db: database, limiter: limiter, now: time.Now}
}

// LikeResult describes a committed like. Liker and Recipient are the rows
// as written by the transaction.
type LikeResult struct {
	Matched   bool
	Remaining int
	Liker     db.User
	Recipient db.User
}

// AddLike records that from likes to, all-or-nothing.
//
// Behavior:
//   - Self-likes fail with Validation.
//   - A missing or banned recipient fails with NotFound.
//   - A repeated like fails with Conflict and changes nothing.
//   - The daily quota is checked and consumed in the same transaction;
//     when exhausted the call fails with QuotaExceeded and changes nothing.
//   - The recipient's likes_received and rating are updated.
//   - If the reverse like exists the match row is inserted; Matched is true
//     only for the call that created it.
//
// Example:
//
//	res, err := repo.AddLike(ctx, 1, 2) // user 1 likes user 2
func (r *LikeRepository) AddLike(ctx context.Context, from, to int64) (*LikeResult, error) {
	if from == to {
		return nil, svcErr.Validation("you cannot like yourself")
	}

	now := r.now()
	var res LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock both rows in id order so concurrent mutual likes cannot deadlock
		lo, hi := db.CanonicalPair(from, to)
		first, err := lockUser(tx, lo)
		if err != nil {
			return err
		}
		second, err := lockUser(tx, hi)
		if err != nil {
			return err
		}
		liker, recipient := first, second
		if liker.ID != from {
			liker, recipient = second, first
		}
		if recipient.Banned {
			return svcErr.NotFound("user not found")
		}

		var dup int64
		if err := tx.Model(&db.Like{}).
			Where("from_user_id = ? AND to_user_id = ?", from, to).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return svcErr.Conflict("you already liked this user")
		}

		decision, err := r.limiter.Check(liker.DailyLikesSent, liker.LastLikeDay, now)
		if err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(&db.Like{FromUserID: from, ToUserID: to}).Error; err != nil {
			return err
		}

		liker.DailyLikesSent = decision.Sent
		liker.LastLikeDay = decision.Day
		liker.LastActive = now
		liker.Rating = rating.Compute(*liker, now)
		if err := tx.Model(&db.User{}).Where("id = ?", from).Updates(map[string]any{
			"daily_likes_sent": liker.DailyLikesSent,
			"last_like_day":    liker.LastLikeDay,
			"last_active":      liker.LastActive,
			"rating":           liker.Rating,
		}).Error; err != nil {
			return err
		}

		recipient.LikesReceived++
		recipient.Rating = rating.Compute(*recipient, now)
		if err := tx.Model(&db.User{}).Where("id = ?", to).Updates(map[string]any{
			"likes_received": recipient.LikesReceived,
			"rating":         recipient.Rating,
		}).Error; err != nil {
			return err
		}

		var reverse int64
		if err := tx.Model(&db.Like{}).
			Where("from_user_id = ? AND to_user_id = ?", to, from).
			Count(&reverse).Error; err != nil {
			return err
		}
		if reverse > 0 {
			m := db.Match{UserAID: lo, UserBID: hi}
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&m)
			if ins.Error != nil {
				return ins.Error
			}
			res.Matched = ins.RowsAffected == 1
		}

		res.Remaining = decision.Remaining
		res.Liker = *liker
		res.Recipient = *recipient
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

// HasLiked checks whether from has liked to.
func (r *LikeRepository) HasLiked(ctx context.Context, from, to int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		Count(&count).Error
	return count > 0, svcErr.Map(err)
}

// Likers returns users who liked the given user, newest like first.
//
// Behavior:
//   - onlyNew drops likers the user has already liked back (i.e. matches).
//   - Banned likers are hidden.
//
// Example:
//
//	repo.Likers(ctx, 42, true, 20) // first 20 one-way likes for user 42
func (r *LikeRepository) Likers(ctx context.Context, userID int64, onlyNew bool, limit int) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN likes l ON l.from_user_id = users.id").
		Where("l.to_user_id = ? AND users.banned = ?", userID, false).
		Order("l.created_at DESC, users.id DESC").
		Limit(limit)
	if onlyNew {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM likes back
				WHERE back.from_user_id = ?
				  AND back.to_user_id = users.id
			)`, userID)
	}

	var users []db.User
	err := query.Find(&users).Error
	return users, svcErr.Map(err)
}

// CountLikers returns how many users liked the given user.
func (r *LikeRepository) CountLikers(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("to_user_id = ?", userID).
		Count(&count).Error
	return count, svcErr.Map(err)
}

// MatchesOf returns the counterparts of every match of userID, newest first.
func (r *LikeRepository) MatchesOf(ctx context.Context, userID int64, limit int) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins(`JOIN matches m ON (m.user_a_id = ? AND m.user_b_id = users.id)
			OR (m.user_b_id = ? AND m.user_a_id = users.id)`, userID, userID).
		Order("m.created_at DESC, users.id DESC").
		Limit(limit).
		Find(&users).Error
	return users, svcErr.Map(err)
}

// IsMatch reports whether a and b are matched.
func (r *LikeRepository) IsMatch(ctx context.Context, a, b int64) (bool, error) {
	lo, hi := db.CanonicalPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("user_a_id = ? AND user_b_id = ?", lo, hi).
		Count(&count).Error
	return count > 0, svcErr.Map(err)
}
