package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
)

// CandidateFilter narrows the searchable population. Zero values mean
// "no constraint" for every field.
type CandidateFilter struct {
	ExcludeID      int64
	Genders        []string
	CityKey        string
	Goal           string
	ExcludeLikedBy int64
}

// CandidateRepository answers candidate queries. Every query is restricted
// to searchable profiles, so banned and incomplete users never leave it.
type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(database *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: database}
}

// IDs returns the ids of every searchable user matching f, in id order.
// Ordering and sampling are left to the caller.
func (r *CandidateRepository) IDs(ctx context.Context, f CandidateFilter) ([]int64, error) {
	query := r.db.WithContext(ctx).Model(&db.User{}).Scopes(Searchable)

	if f.ExcludeID != 0 {
		query = query.Where("users.id <> ?", f.ExcludeID)
	}
	if len(f.Genders) > 0 {
		query = query.Where("users.gender IN ?", f.Genders)
	}
	if f.CityKey != "" {
		query = query.Where("users.city_key LIKE ? ESCAPE '!'", "%"+escapeLike(f.CityKey)+"%")
	}
	if f.Goal != "" {
		query = query.Where("users.goal = ?", f.Goal)
	}
	if f.ExcludeLikedBy != 0 {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM likes l
				WHERE l.from_user_id = ?
				  AND l.to_user_id = users.id
			)`, f.ExcludeLikedBy)
	}

	var ids []int64
	if err := query.Order("users.id").Pluck("users.id", &ids).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	return ids, nil
}

// Load fetches users by id, preserving the order of ids. Users that are no
// longer searchable are skipped.
func (r *CandidateRepository) Load(ctx context.Context, ids []int64) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).
		Scopes(Searchable).
		Where("users.id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, svcErr.Map(err)
	}

	byID := make(map[int64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]db.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Top returns up to limit searchable users ordered by rating, then likes
// received, then id for a stable tail.
func (r *CandidateRepository) Top(ctx context.Context, excludeID int64, gender string, limit int) ([]db.User, error) {
	query := r.db.WithContext(ctx).Model(&db.User{}).Scopes(Searchable)
	if excludeID != 0 {
		query = query.Where("users.id <> ?", excludeID)
	}
	if gender != "" {
		query = query.Where("users.gender = ?", gender)
	}

	var users []db.User
	err := query.
		Order("users.rating DESC, users.likes_received DESC, users.id").
		Limit(limit).
		Find(&users).Error
	return users, svcErr.Map(err)
}
