// Package conference implements conference scheduling and seat reservation.
package conference

import "time"

// Conference is a scheduled talk with a bounded number of seats.
type Conference struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	SpeakerID    int64     `json:"speaker_id"`
	SpeakerName  string    `json:"speaker_name,omitempty"`
	Location     string    `json:"location"`
	StartsAt     time.Time `json:"starts_at"`
	Capacity     int       `json:"capacity"`
	Reservations int       `json:"reservations"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SeatsLeft reports the remaining capacity.
func (c *Conference) SeatsLeft() int {
	return c.Capacity - c.Reservations
}

// Reservation links a user to a conference seat.
type Reservation struct {
	UserID       int64     `json:"user_id"`
	ConferenceID int64     `json:"conference_id"`
	ReservedAt   time.Time `json:"reserved_at"`
}

// Draft carries the fields needed to create or update a conference.
type Draft struct {
	Title     string
	SpeakerID int64
	Location  string
	StartsAt  time.Time
	Capacity  int
}
