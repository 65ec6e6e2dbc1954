// Package ratelimit enforces the per-user daily like quota.
//
// The counter lives on the user row (daily_likes_sent, last_like_day), so the
// limiter is a pure decision function; storage applies the decision inside
// the same transaction that inserts the like.
package ratelimit

import (
	"fmt"
	"time"

	svcErr "github.com/oggyb/matchbot/internal/errors"
)

const DayLayout = "2006-01-02"

// Limiter decides whether another like may be sent today.
type Limiter struct {
	Quota int
}

func New(quota int) *Limiter {
	return &Limiter{Quota: quota}
}

// Decision is the outcome of a successful check. Sent and Day are the values
// to persist once the like is written.
type Decision struct {
	Sent      int
	Day       string
	Remaining int
}

// Day returns the server-local calendar date of t.
func Day(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// Check applies the day rollover and the quota. On a new day the counter
// restarts at zero before the increment.
func (l *Limiter) Check(sent int, lastDay string, now time.Time) (Decision, error) {
	today := Day(now)
	if lastDay != today {
		sent = 0
	}
	if sent >= l.Quota {
		return Decision{Sent: sent, Day: today}, svcErr.QuotaExceeded(
			fmt.Sprintf("daily limit of %d likes reached, it resets tomorrow", l.Quota))
	}
	sent++
	return Decision{Sent: sent, Day: today, Remaining: l.Quota - sent}, nil
}

// Remaining reports how many likes are left today without consuming one.
func (l *Limiter) Remaining(sent int, lastDay string, now time.Time) int {
	if lastDay != Day(now) {
		return l.Quota
	}
	if sent >= l.Quota {
		return 0
	}
	return l.Quota - sent
}

// ResetsIn is the time left until the next local midnight.
func ResetsIn(now time.Time) time.Duration {
	local := now.Local()
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, time.Local)
	return next.Sub(local)
}
