package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/profile"
	"github.com/oggyb/matchbot/internal/rating"
	"github.com/oggyb/matchbot/internal/utils/pagination"
)

const (
	staleProfileAge = 30 * 24 * time.Hour
	staleLikeAge    = 90 * 24 * time.Hour
)

// UserRepository provides data access methods for the User model:
// identity, profile edits, moderation and housekeeping.
type UserRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database, now: time.Now}
}

// GetOrCreate returns the user with the given platform id, creating it on
// first contact.
//
// Behavior:
//   - Existing users keep every profile field untouched.
//   - Handle and display name are refreshed when the platform reports new ones,
//     so match contact links stay current.
//   - Concurrent first contacts resolve to a single row.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, username, displayName string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	switch {
	case err == nil:
		if u.Username != username || (displayName != "" && u.DisplayName != displayName) {
			updates := map[string]any{"username": username}
			if displayName != "" {
				updates["display_name"] = displayName
				u.DisplayName = displayName
			}
			if err := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return nil, svcErr.Map(err)
			}
			u.Username = username
		}
		return &u, nil
	case !isNotFound(err):
		return nil, svcErr.Map(err)
	}

	now := r.now()
	u = db.User{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		LastActive:  now,
	}
	u.Rating = rating.Compute(u, now)

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&u)
	if res.Error != nil {
		return nil, svcErr.Map(res.Error)
	}
	if res.RowsAffected == 0 {
		// lost the race to another first contact
		return r.Get(ctx, id)
	}
	return &u, nil
}

// Get loads a user or returns a NotFound error.
func (r *UserRepository) Get(ctx context.Context, id int64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if isNotFound(err) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, svcErr.Map(err)
	}
	return &u, nil
}

// Touch refreshes last_active and the rating that depends on it.
func (r *UserRepository) Touch(ctx context.Context, id int64) error {
	now := r.now()
	return svcErr.Map(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, id)
		if err != nil {
			return err
		}
		u.LastActive = now
		return tx.Model(&db.User{}).Where("id = ?", id).Updates(map[string]any{
			"last_active": now,
			"rating":      rating.Compute(*u, now),
		}).Error
	}))
}

// UpdateProfile writes all six profile fields atomically.
//
// Behavior:
//   - Fails with NotFound if the user does not exist.
//   - Fails with Validation if any field is out of range.
//   - Refreshes last_active and recomputes the rating in the same transaction.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, p profile.Profile) (*db.User, error) {
	p.City = profile.NormalizeCity(p.City)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := r.now()
	var out db.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, id)
		if err != nil {
			return err
		}
		u.Age = p.Age
		u.Gender = p.Gender
		u.City = p.City
		u.CityKey = profile.CityKey(p.City)
		u.SeekingGender = p.SeekingGender
		u.Goal = p.Goal
		u.Bio = p.Bio
		u.LastActive = now
		u.Rating = rating.Compute(*u, now)

		if err := tx.Model(&db.User{}).Where("id = ?", id).Updates(map[string]any{
			"age":            u.Age,
			"gender":         u.Gender,
			"city":           u.City,
			"city_key":       u.CityKey,
			"seeking_gender": u.SeekingGender,
			"goal":           u.Goal,
			"bio":            u.Bio,
			"last_active":    u.LastActive,
			"rating":         u.Rating,
		}).Error; err != nil {
			return err
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &out, nil
}

// SetBanned flips the soft-ban flag. changed is false when the user was
// already in the requested state, which makes ban/unban idempotent.
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) (changed bool, err error) {
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Model(&db.User{}).
		Where("id = ? AND banned = ?", id, !banned).
		Update("banned", banned)
	if res.Error != nil {
		return false, svcErr.Map(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UnbanAll lifts every ban and returns how many users were affected.
func (r *UserRepository) UnbanAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("banned = ?", true).Update("banned", false)
	return res.RowsAffected, svcErr.Map(res.Error)
}

// Banned lists banned users, most recently created first.
func (r *UserRepository) Banned(ctx context.Context, limit int) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("banned = ?", true).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&users).Error
	return users, svcErr.Map(err)
}

// List returns users newest first with cursor-based pagination.
//
// Example:
//
//	users, next, _ := repo.List(ctx, "", 10) // first page
//	users, next, _ = repo.List(ctx, *next, 10)
func (r *UserRepository) List(ctx context.Context, token string, limit int) ([]db.User, *string, error) {
	cursor, err := pagination.Decode(token)
	if err != nil {
		return nil, nil, svcErr.Validation(err.Error())
	}

	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	if !cursor.Empty() {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.UserID)
	}

	var users []db.User
	if err := query.Find(&users).Error; err != nil {
		return nil, nil, svcErr.Map(err)
	}

	var nextToken *string
	if len(users) > limit {
		last := users[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:      last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		users = users[:limit]
	}
	return users, nextToken, nil
}

// Search finds users by exact id when the query is numeric, otherwise by
// case-insensitive substring of display name or handle.
func (r *UserRepository) Search(ctx context.Context, query string, limit int) ([]db.User, error) {
	query = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	if query == "" {
		return nil, svcErr.Validation("empty search query")
	}

	var users []db.User
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&users).Error
		return users, svcErr.Map(err)
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(display_name) LIKE ? ESCAPE '!' OR LOWER(username) LIKE ? ESCAPE '!'", pattern, pattern).
		Order("id").
		Limit(limit).
		Find(&users).Error
	return users, svcErr.Map(err)
}

// ActiveIDs returns every non-banned user id, the broadcast audience.
func (r *UserRepository) ActiveIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&db.User{}).
		Where("banned = ?", false).
		Order("id").
		Pluck("id", &ids).Error
	return ids, svcErr.Map(err)
}

// Incomplete returns non-banned users created before the cutoff who still
// lack a filled profile or a photo.
func (r *UserRepository) Incomplete(ctx context.Context, createdBefore time.Time) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("banned = ? AND created_at < ?", false, createdBefore).
		Where("age = 0 OR gender = '' OR city = '' OR seeking_gender = '' OR goal = '' OR bio = '' OR has_photo = ?", false).
		Order("id").
		Find(&users).Error
	return users, svcErr.Map(err)
}

// CompleteIDs returns every searchable user id.
func (r *UserRepository) CompleteIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&db.User{}).
		Scopes(Searchable).
		Order("id").
		Pluck("id", &ids).Error
	return ids, svcErr.Map(err)
}

// PopularCities returns the most common cities among searchable profiles.
func (r *UserRepository) PopularCities(ctx context.Context, limit int) ([]string, error) {
	type row struct {
		City string
		N    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&db.User{}).
		Scopes(Searchable).
		Select("MIN(city) AS city, COUNT(*) AS n").
		Group("city_key").
		Order("n DESC, city").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.City)
	}
	return out, nil
}

// CleanupResult reports what Cleanup removed.
type CleanupResult struct {
	Users int64
	Likes int64
}

// Cleanup deletes abandoned sign-ups and old one-sided likes.
//
// Behavior:
//   - Users that never filled a profile (age = 0) and were created more than
//     30 days ago are removed together with their photos, likes, matches
//     and views.
//   - Likes older than 90 days are removed unless the reverse like exists:
//     a like that is part of a match is kept so matches stay backed by both
//     likes.
func (r *UserRepository) Cleanup(ctx context.Context, now time.Time) (CleanupResult, error) {
	var res CleanupResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&db.User{}).
			Where("age = 0 AND created_at < ?", now.Add(-staleProfileAge)).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := deleteUsers(tx, ids); err != nil {
				return err
			}
			res.Users = int64(len(ids))
		}

		var stale []uint64
		if err := tx.Table("likes l").
			Select("l.id").
			Joins("LEFT JOIN likes rev ON rev.from_user_id = l.to_user_id AND rev.to_user_id = l.from_user_id").
			Where("l.created_at < ? AND rev.id IS NULL", now.Add(-staleLikeAge)).
			Pluck("l.id", &stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		del := tx.Where("id IN ?", stale).Delete(&db.Like{})
		if del.Error != nil {
			return del.Error
		}
		res.Likes = del.RowsAffected
		return nil
	})
	return res, svcErr.Map(err)
}

// deleteUsers removes users and their dependents explicitly, so cascades do
// not rely on the backend enforcing foreign keys.
func deleteUsers(tx *gorm.DB, ids []int64) error {
	steps := []struct {
		model any
		where string
	}{
		{&db.Photo{}, "user_id IN ?"},
		{&db.Like{}, "from_user_id IN ? OR to_user_id IN ?"},
		{&db.Match{}, "user_a_id IN ? OR user_b_id IN ?"},
		{&db.ProfileView{}, "viewer_id IN ? OR viewed_id IN ?"},
	}
	for _, s := range steps {
		args := []any{ids}
		if strings.Count(s.where, "?") == 2 {
			args = append(args, ids)
		}
		if err := tx.Where(s.where, args...).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&db.User{}).Error
}

// lockUser reads a user row for update inside a transaction. SQLite has no
// row locks; its single-writer transactions give the same guarantee.
func lockUser(tx *gorm.DB, id int64) (*db.User, error) {
	var u db.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, id).Error
	if isNotFound(err) {
		return nil, svcErr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
