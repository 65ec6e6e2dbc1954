package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
	"github.com/oggyb/matchbot/internal/rating"
)

// PhotoRepository manages the ordered photo list of each user and keeps
// users.has_photo in sync with it.
type PhotoRepository struct {
	db  *gorm.DB
	max int
	now func() time.Time
}

// NewPhotoRepository creates a new repository allowing up to max photos per user.
func NewPhotoRepository(database *gorm.DB, max int) *PhotoRepository {
	return &PhotoRepository{db: database, max: max, now: time.Now}
}

// Max is the per-user photo limit.
func (r *PhotoRepository) Max() int { return r.max }

// Add appends a photo and returns the new photo count.
//
// Behavior:
//   - Fails with NotFound if the user does not exist.
//   - Fails with Validation when the user already has the maximum.
//   - Sets has_photo and recomputes the rating.
//   - Duplicate media ids are stored as separate photos.
func (r *PhotoRepository) Add(ctx context.Context, userID int64, mediaID string) (int, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return 0, svcErr.Validation("photo is missing")
	}

	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		var existing []db.Photo
		if err := tx.Where("user_id = ?", userID).Order("position").Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) >= r.max {
			return svcErr.Validation(fmt.Sprintf("You already have %d photos, that is the maximum.", r.max))
		}

		position := 0
		if n := len(existing); n > 0 {
			position = existing[n-1].Position + 1
		}
		if err := tx.Omit(clause.Associations).Create(&db.Photo{
			UserID:   userID,
			Position: position,
			MediaID:  mediaID,
		}).Error; err != nil {
			return err
		}

		count = len(existing) + 1
		return r.syncUser(tx, u, true)
	})
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return count, nil
}

// Replace drops every existing photo and stores mediaID as the only one.
// Used when a profile is edited and the user uploads a new main photo.
func (r *PhotoRepository) Replace(ctx context.Context, userID int64, mediaID string) error {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return svcErr.Validation("photo is missing")
	}

	return svcErr.Map(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := lockUser(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&db.Photo{}).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&db.Photo{UserID: userID, MediaID: mediaID}).Error; err != nil {
			return err
		}
		return r.syncUser(tx, u, true)
	}))
}

// List returns the user's photos, main photo first.
func (r *PhotoRepository) List(ctx context.Context, userID int64) ([]db.Photo, error) {
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position, id").
		Find(&photos).Error
	return photos, svcErr.Map(err)
}

// Main returns the main photo's media id, or "" when the user has none.
func (r *PhotoRepository) Main(ctx context.Context, userID int64) (string, error) {
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position, id").
		Limit(1).
		Find(&photos).Error
	if err != nil || len(photos) == 0 {
		return "", svcErr.Map(err)
	}
	return photos[0].MediaID, nil
}

// MainOf returns main photo ids for many users at once.
func (r *PhotoRepository) MainOf(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("user_id, position, id").
		Find(&photos).Error
	if err != nil {
		return nil, svcErr.Map(err)
	}
	for _, p := range photos {
		if _, ok := out[p.UserID]; !ok {
			out[p.UserID] = p.MediaID
		}
	}
	return out, nil
}

// Count returns how many photos the user has.
func (r *PhotoRepository) Count(ctx context.Context, userID int64) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.Photo{}).Where("user_id = ?", userID).Count(&n).Error
	return int(n), svcErr.Map(err)
}

func (r *PhotoRepository) syncUser(tx *gorm.DB, u *db.User, hasPhoto bool) error {
	now := r.now()
	u.HasPhoto = hasPhoto
	u.LastActive = now
	return tx.Model(&db.User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"has_photo":   hasPhoto,
		"last_active": now,
		"rating":      rating.Compute(*u, now),
	}).Error
}
