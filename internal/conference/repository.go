package conference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atrium-hq/atrium/internal/platform/db"
	"github.com/atrium-hq/atrium/internal/shared"
)

// Repository defines persistence operations for conferences and reservations.
type Repository interface {
	CreateConference(ctx context.Context, draft Draft) (*Conference, error)
	ListConferences(ctx context.Context) ([]Conference, error)
	GetConference(ctx context.Context, id int64) (*Conference, error)
	UpdateConference(ctx context.Context, id int64, draft Draft) (*Conference, error)
	// DeleteConference removes the row physically, matching the original
	// system; reservations cascade.
	DeleteConference(ctx context.Context, id int64) error
	// Reserve books a seat. Conflict when the user already holds one,
	// validation failure when the conference is full.
	Reserve(ctx context.Context, userID, conferenceID int64) error
	CancelReservation(ctx context.Context, userID, conferenceID int64) error
	ListReservations(ctx context.Context, conferenceID int64) ([]Reservation, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, timeout: timeout}
}

var _ Repository = (*PGRepository)(nil)

// ErrConferenceFull indicates that no seats remain.
var ErrConferenceFull = shared.Validationf("conference is fully booked")

const conferenceSelect = `
SELECT c.id, c.title, c.speaker_id, u.first_name || ' ' || u.last_name,
       c.location, c.starts_at, c.capacity,
       (SELECT COUNT(*) FROM user_conferences uc WHERE uc.conference_id = c.id),
       c.created_at, c.updated_at
FROM conferences c
JOIN users u ON u.id = c.speaker_id`

func scanConference(row pgx.Row) (*Conference, error) {
	var c Conference
	err := row.Scan(&c.ID, &c.Title, &c.SpeakerID, &c.SpeakerName, &c.Location, &c.StartsAt, &c.Capacity, &c.Reservations, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrConflict
		case "23503":
			return shared.ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
}

// CreateConference inserts a conference row.
func (r *PGRepository) CreateConference(ctx context.Context, draft Draft) (*Conference, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO conferences (title, speaker_id, location, starts_at, capacity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		draft.Title, draft.SpeakerID, draft.Location, draft.StartsAt, draft.Capacity).Scan(&id)
	if err != nil {
		return nil, mapError(err)
	}
	return r.GetConference(ctx, id)
}

// ListConferences returns all conferences with reservation counts, soonest first.
func (r *PGRepository) ListConferences(ctx context.Context) ([]Conference, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, conferenceSelect+` ORDER BY c.starts_at, c.id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var conferences []Conference
	for rows.Next() {
		c, err := scanConference(rows)
		if err != nil {
			return nil, mapError(err)
		}
		conferences = append(conferences, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return conferences, nil
}

// GetConference fetches one conference by identifier.
func (r *PGRepository) GetConference(ctx context.Context, id int64) (*Conference, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	c, err := scanConference(r.pool.QueryRow(ctx, conferenceSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// UpdateConference applies draft fields to an existing conference.
func (r *PGRepository) UpdateConference(ctx context.Context, id int64, draft Draft) (*Conference, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		`UPDATE conferences SET title = $2, speaker_id = $3, location = $4, starts_at = $5, capacity = $6, updated_at = NOW()
		 WHERE id = $1`,
		id, draft.Title, draft.SpeakerID, draft.Location, draft.StartsAt, draft.Capacity)
	if err != nil {
		return nil, mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.GetConference(ctx, id)
}

// DeleteConference removes the conference and its reservations.
func (r *PGRepository) DeleteConference(ctx context.Context, id int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM conferences WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Reserve books a seat inside one transaction so the capacity check and the
// insert cannot interleave with a competing booking.
func (r *PGRepository) Reserve(ctx context.Context, userID, conferenceID int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var capacity, booked int
		err := tx.QueryRow(ctx,
			`SELECT c.capacity, (SELECT COUNT(*) FROM user_conferences uc WHERE uc.conference_id = c.id)
			 FROM conferences c WHERE c.id = $1 FOR UPDATE`, conferenceID).Scan(&capacity, &booked)
		if err != nil {
			return mapError(err)
		}
		if booked >= capacity {
			return ErrConferenceFull
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_conferences (user_id, conference_id, reserved_at) VALUES ($1, $2, NOW())`,
			userID, conferenceID); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// CancelReservation releases the user's seat. Cancelling a reservation that
// does not exist returns ErrNotFound.
func (r *PGRepository) CancelReservation(ctx context.Context, userID, conferenceID int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_conferences WHERE user_id = $1 AND conference_id = $2`,
		userID, conferenceID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListReservations returns the reservations for a conference, oldest first.
func (r *PGRepository) ListReservations(ctx context.Context, conferenceID int64) ([]Reservation, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, conference_id, reserved_at FROM user_conferences
		 WHERE conference_id = $1 ORDER BY reserved_at`, conferenceID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var reservations []Reservation
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.UserID, &res.ConferenceID, &res.ReservedAt); err != nil {
			return nil, mapError(err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}
