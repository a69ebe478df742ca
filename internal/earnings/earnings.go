// Package earnings turns a tutor's sessions into hours and pay per week or
// month.
package earnings

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"tutorhub-portal/internal/model"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodWeek, nil
	case PeriodWeek, PeriodMonth:
		return p, nil
	}
	return "", fmt.Errorf("%w: period must be week or month, got %q", model.ErrInvalidInput, s)
}

// FallbackRate is the tutor's own hourly rate, used for sessions whose gig
// is unknown. The tutor record wins over the profile when it has a rate.
func FallbackRate(tutor, profile *model.TutorProfile) float64 {
	switch {
	case tutor != nil && tutor.HourlyRate > 0:
		return tutor.HourlyRate
	case profile != nil:
		return profile.HourlyRate
	}
	return 0
}

type Bucket struct {
	Key      string    `json:"key"`
	Start    time.Time `json:"start"`
	Sessions int       `json:"sessions"`
	Hours    float64   `json:"hours"`
	Earnings float64   `json:"earnings"`
}

type Summary struct {
	Period        Period   `json:"period"`
	Buckets       []Bucket `json:"buckets"`
	TotalSessions int      `json:"total_sessions"`
	TotalHours    float64  `json:"total_hours"`
	TotalEarnings float64  `json:"total_earnings"`
}

// Summarize buckets verified, non-cancelled sessions by period. Each session
// is paid at its gig's hourly rate, or fallbackRate when the gig is unknown
// or has no rate.
func Summarize(sessions []model.TutoringSession, gigs []model.Gig, period Period, fallbackRate float64) Summary {
	rates := make(map[int64]float64, len(gigs))
	for _, g := range gigs {
		if g.HourlyRate > 0 {
			rates[g.ID] = g.HourlyRate
		}
	}

	buckets := map[string]*Bucket{}
	for _, s := range sessions {
		if !s.IsVerified || s.Status == model.SessionStatusCancelled || s.Hours <= 0 {
			continue
		}

		key, start := bucketOf(s.Date, period)
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Key: key, Start: start}
			buckets[key] = b
		}

		rate, ok := rates[s.GigID]
		if !ok {
			rate = fallbackRate
		}
		b.Sessions++
		b.Hours += s.Hours
		b.Earnings += s.Hours * rate
	}

	summary := Summary{Period: period, Buckets: make([]Bucket, 0, len(buckets))}
	for _, b := range buckets {
		b.Hours = round2(b.Hours)
		b.Earnings = round2(b.Earnings)
		summary.Buckets = append(summary.Buckets, *b)

		summary.TotalSessions += b.Sessions
		summary.TotalHours += b.Hours
		summary.TotalEarnings += b.Earnings
	}
	sort.Slice(summary.Buckets, func(i, j int) bool {
		return summary.Buckets[i].Start.Before(summary.Buckets[j].Start)
	})
	summary.TotalHours = round2(summary.TotalHours)
	summary.TotalEarnings = round2(summary.TotalEarnings)
	return summary
}

// bucketOf returns the bucket key and its first day, both in UTC. Weeks are
// ISO weeks, so early January can belong to the previous year.
func bucketOf(t time.Time, period Period) (string, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	if period == PeriodMonth {
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01"), start
	}

	year, week := t.ISOWeek()
	offset := (int(day.Weekday()) + 6) % 7
	return fmt.Sprintf("%d-W%02d", year, week), day.AddDate(0, 0, -offset)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
