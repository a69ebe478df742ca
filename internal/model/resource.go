package model

import "time"

type Gig struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Subject    string  `json:"subject"`
	HourlyRate float64 `json:"hourly_rate"`
	TutorID    int64   `json:"tutor_id"`
	Status     string  `json:"status"`
}

const (
	SessionStatusScheduled = "scheduled"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
)

// TutoringSession is one booked lesson. Hours only count towards earnings
// once the session is verified.
type TutoringSession struct {
	ID         int64     `json:"id"`
	GigID      int64     `json:"gig_id"`
	TutorID    int64     `json:"tutor_id"`
	Date       time.Time `json:"date"`
	Hours      float64   `json:"hours"`
	IsVerified bool      `json:"is_verified"`
	Status     string    `json:"status"`
}

type Meeting struct {
	SessionID      int64     `json:"session_id"`
	RoomURL        string    `json:"room_url"`
	EndsAt         time.Time `json:"ends_at"`
	ExtensionsUsed int       `json:"extensions_used"`
	MaxExtensions  int       `json:"max_extensions"`
}

type ExtendMeetingRequest struct {
	Minutes int `json:"minutes"`
}
