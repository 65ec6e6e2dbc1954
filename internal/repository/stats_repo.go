package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/db"
	svcErr "github.com/oggyb/matchbot/internal/errors"
)

// Stats are the live counters shown on the admin panel.
type Stats struct {
	Total    int64
	Complete int64
	Banned   int64
	Male     int64
	Female   int64
	// Goals counts filled profiles per goal.
	Goals map[string]int64
}

// DetailedStats extends Stats with activity figures.
type DetailedStats struct {
	Stats
	Likes       int64
	Matches     int64
	Photos      int64
	Views       int64
	NewToday    int64
	ActiveToday int64
	LikesToday  int64
	AvgRating   float64
}

// Summary counts what happened to one user since a point in time.
type Summary struct {
	Likes   int64
	Matches int64
	Views   int64
}

// Empty reports whether nothing happened.
func (s Summary) Empty() bool { return s.Likes == 0 && s.Matches == 0 && s.Views == 0 }

// StatsRepository serves read-only aggregates and the profile view log.
type StatsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(database *gorm.DB) *StatsRepository {
	return &StatsRepository{db: database}
}

// Stats computes the admin panel counters.
func (r *StatsRepository) Stats(ctx context.Context) (*Stats, error) {
	tx := r.db.WithContext(ctx)
	s := &Stats{Goals: make(map[string]int64, len(db.Goals))}

	counts := []struct {
		dst   *int64
		scope func(*gorm.DB) *gorm.DB
	}{
		{&s.Total, func(q *gorm.DB) *gorm.DB { return q }},
		{&s.Complete, Searchable},
		{&s.Banned, func(q *gorm.DB) *gorm.DB { return q.Where("banned = ?", true) }},
		{&s.Male, func(q *gorm.DB) *gorm.DB { return q.Where("gender = ?", db.GenderMale) }},
		{&s.Female, func(q *gorm.DB) *gorm.DB { return q.Where("gender = ?", db.GenderFemale) }},
	}
	for _, c := range counts {
		if err := tx.Model(&db.User{}).Scopes(c.scope).Count(c.dst).Error; err != nil {
			return nil, svcErr.Map(err)
		}
	}

	type row struct {
		Goal string
		N    int64
	}
	var rows []row
	if err := tx.Model(&db.User{}).
		Select("goal, COUNT(*) AS n").
		Where("goal <> ''").
		Group("goal").
		Scan(&rows).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	for _, g := range db.Goals {
		s.Goals[g] = 0
	}
	for _, r := range rows {
		s.Goals[r.Goal] = r.N
	}
	return s, nil
}

// Detailed computes Stats plus activity figures for the local day of now.
func (r *StatsRepository) Detailed(ctx context.Context, now time.Time) (*DetailedStats, error) {
	base, err := r.Stats(ctx)
	if err != nil {
		return nil, err
	}
	d := &DetailedStats{Stats: *base}
	tx := r.db.WithContext(ctx)
	dayStart := StartOfDay(now)

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&d.Likes, tx.Model(&db.Like{})},
		{&d.Matches, tx.Model(&db.Match{})},
		{&d.Photos, tx.Model(&db.Photo{})},
		{&d.Views, tx.Model(&db.ProfileView{})},
		{&d.NewToday, tx.Model(&db.User{}).Where("created_at >= ?", dayStart)},
		{&d.ActiveToday, tx.Model(&db.User{}).Where("last_active >= ?", dayStart)},
		{&d.LikesToday, tx.Model(&db.Like{}).Where("created_at >= ?", dayStart)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, svcErr.Map(err)
		}
	}

	var avg struct{ Avg *float64 }
	if err := tx.Model(&db.User{}).Select("AVG(rating) AS avg").Scan(&avg).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if avg.Avg != nil {
		d.AvgRating = *avg.Avg
	}
	return d, nil
}

// RecordView appends a profile view event.
func (r *StatsRepository) RecordView(ctx context.Context, viewerID, viewedID int64) error {
	if viewerID == viewedID {
		return nil
	}
	v := db.ProfileView{ViewerID: viewerID, ViewedID: viewedID}
	return svcErr.Map(r.db.WithContext(ctx).Omit("Viewer", "Viewed").Create(&v).Error)
}

// Summary counts likes received, matches formed and profile views of
// userID since the given time.
func (r *StatsRepository) Summary(ctx context.Context, userID int64, since time.Time) (Summary, error) {
	tx := r.db.WithContext(ctx)
	var s Summary
	if err := tx.Model(&db.Like{}).
		Where("to_user_id = ? AND created_at >= ?", userID, since).
		Count(&s.Likes).Error; err != nil {
		return s, svcErr.Map(err)
	}
	if err := tx.Model(&db.Match{}).
		Where("(user_a_id = ? OR user_b_id = ?) AND created_at >= ?", userID, userID, since).
		Count(&s.Matches).Error; err != nil {
		return s, svcErr.Map(err)
	}
	if err := tx.Model(&db.ProfileView{}).
		Where("viewed_id = ? AND created_at >= ?", userID, since).
		Count(&s.Views).Error; err != nil {
		return s, svcErr.Map(err)
	}
	return s, nil
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	l := t.Local()
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.Local)
}
