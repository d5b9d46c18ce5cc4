package app

import (
	"context"
	"log"
	"time"
)

// Schedules configures the recurring leaderboard jobs.
type Schedules struct {
	// DailySummaryAt is the wall-clock "HH:MM" time of the daily summary.
	DailySummaryAt string
	// ResetWeekday and ResetAt pin the weekly hard reset.
	ResetWeekday time.Weekday
	ResetAt      string
}

// RunSchedules blocks until ctx is done, firing the daily summary and weekly
// reset at their configured times. Failures are logged; the next occurrence
// is always re-armed.
func (p *Pipeline) RunSchedules(ctx context.Context, s Schedules) {
	daily := make(chan struct{}, 1)
	weekly := make(chan struct{}, 1)

	go runAt(ctx, func(now time.Time) time.Time {
		return nextDaily(now, s.DailySummaryAt)
	}, daily)
	go runAt(ctx, func(now time.Time) time.Time {
		return nextWeekly(now, s.ResetWeekday, s.ResetAt)
	}, weekly)

	for {
		select {
		case <-ctx.Done():
			return
		case <-daily:
			if err := p.SendDailySummaries(ctx); err != nil {
				log.Printf("schedules: daily summary: %v", err)
			}
		case <-weekly:
			if err := p.ResetWeek(ctx); err != nil {
				log.Printf("schedules: weekly reset: %v", err)
			}
		}
	}
}

// runAt ticks ch at each time produced by next, re-arming after every firing.
func runAt(ctx context.Context, next func(time.Time) time.Time, ch chan<- struct{}) {
	for {
		timer := time.NewTimer(time.Until(next(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// nextDaily returns the next occurrence of an "HH:MM" wall-clock time.
func nextDaily(now time.Time, at string) time.Time {
	hour, minute := parseClock(at, 22, 0)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly returns the next occurrence of weekday at an "HH:MM" time.
func nextWeekly(now time.Time, weekday time.Weekday, at string) time.Time {
	hour, minute := parseClock(at, 0, 0)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func parseClock(at string, defHour, defMinute int) (int, int) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return defHour, defMinute
	}
	return t.Hour(), t.Minute()
}
