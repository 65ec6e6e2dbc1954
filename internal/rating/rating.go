// Package rating derives the leaderboard score stored on every user row.
package rating

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/oggyb/matchbot/internal/db"
)

const (
	Min  = 1.0
	Max  = 10.0
	base = 5.0

	photoBonus     = 1.0
	bioBonus       = 1.0
	bioBonusMinLen = 20
	likeWeight     = 0.1
	likeBonusCap   = 3.0
	activeBonus    = 0.5
	activeWindow   = 7 * 24 * time.Hour
)

// Compute returns the rating of u as of now, clamped to [Min, Max].
// It is monotone non-decreasing in LikesReceived.
func Compute(u db.User, now time.Time) float64 {
	r := base
	if u.HasPhoto {
		r += photoBonus
	}
	if utf8.RuneCountInString(u.Bio) > bioBonusMinLen {
		r += bioBonus
	}
	r += math.Min(float64(u.LikesReceived)*likeWeight, likeBonusCap)
	if !u.LastActive.IsZero() && now.Sub(u.LastActive) <= activeWindow {
		r += activeBonus
	}
	return round(clamp(r))
}

func clamp(r float64) float64 {
	return math.Max(Min, math.Min(Max, r))
}

// round keeps one decimal so float noise from the like term never leaks
// into stored ratings.
func round(r float64) float64 {
	return math.Round(r*10) / 10
}
