package conference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-hq/atrium/internal/identity"
	"github.com/atrium-hq/atrium/internal/shared"
)

type memoryConferenceRepo struct {
	conferences  map[int64]*Conference
	reservations map[int64][]Reservation
	nextID       int64
}

func newMemoryConferenceRepo() *memoryConferenceRepo {
	return &memoryConferenceRepo{
		conferences:  make(map[int64]*Conference),
		reservations: make(map[int64][]Reservation),
	}
}

func (r *memoryConferenceRepo) CreateConference(ctx context.Context, draft Draft) (*Conference, error) {
	r.nextID++
	c := &Conference{
		ID:        r.nextID,
		Title:     draft.Title,
		SpeakerID: draft.SpeakerID,
		Location:  draft.Location,
		StartsAt:  draft.StartsAt,
		Capacity:  draft.Capacity,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.conferences[c.ID] = c
	copied := *c
	return &copied, nil
}

func (r *memoryConferenceRepo) ListConferences(ctx context.Context) ([]Conference, error) {
	var out []Conference
	for _, c := range r.conferences {
		copied := *c
		copied.Reservations = len(r.reservations[c.ID])
		out = append(out, copied)
	}
	return out, nil
}

func (r *memoryConferenceRepo) GetConference(ctx context.Context, id int64) (*Conference, error) {
	c, ok := r.conferences[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *c
	copied.Reservations = len(r.reservations[id])
	return &copied, nil
}

func (r *memoryConferenceRepo) UpdateConference(ctx context.Context, id int64, draft Draft) (*Conference, error) {
	c, ok := r.conferences[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c.Title = draft.Title
	c.SpeakerID = draft.SpeakerID
	c.Location = draft.Location
	c.StartsAt = draft.StartsAt
	c.Capacity = draft.Capacity
	c.UpdatedAt = time.Now()
	copied := *c
	copied.Reservations = len(r.reservations[id])
	return &copied, nil
}

func (r *memoryConferenceRepo) DeleteConference(ctx context.Context, id int64) error {
	if _, ok := r.conferences[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.conferences, id)
	delete(r.reservations, id)
	return nil
}

func (r *memoryConferenceRepo) Reserve(ctx context.Context, userID, conferenceID int64) error {
	c, ok := r.conferences[conferenceID]
	if !ok {
		return shared.ErrNotFound
	}
	for _, res := range r.reservations[conferenceID] {
		if res.UserID == userID {
			return shared.ErrConflict
		}
	}
	if len(r.reservations[conferenceID]) >= c.Capacity {
		return ErrConferenceFull
	}
	r.reservations[conferenceID] = append(r.reservations[conferenceID], Reservation{
		UserID:       userID,
		ConferenceID: conferenceID,
		ReservedAt:   time.Now(),
	})
	return nil
}

func (r *memoryConferenceRepo) CancelReservation(ctx context.Context, userID, conferenceID int64) error {
	list := r.reservations[conferenceID]
	for i, res := range list {
		if res.UserID == userID {
			r.reservations[conferenceID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryConferenceRepo) ListReservations(ctx context.Context, conferenceID int64) ([]Reservation, error) {
	return r.reservations[conferenceID], nil
}

type speakerStore struct {
	identity.Store
	users map[int64]*identity.User
}

func (s *speakerStore) FindUserByID(ctx context.Context, id int64) (*identity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func newConferenceService() (*Service, *memoryConferenceRepo, *speakerStore) {
	repo := newMemoryConferenceRepo()
	users := &speakerStore{users: map[int64]*identity.User{
		1: {ID: 1, Email: "speaker@example.com", FirstName: "Alan", LastName: "Kay", IsActive: true},
	}}
	return NewService(repo, users, nil, nil), repo, users
}

func validDraft() Draft {
	return Draft{
		Title:     "Go Concurrency Patterns",
		SpeakerID: 1,
		Location:  "Main Hall",
		StartsAt:  time.Now().Add(24 * time.Hour),
		Capacity:  2,
	}
}

func TestCreateConference(t *testing.T) {
	svc, _, _ := newConferenceService()

	conf, err := svc.Create(context.Background(), 9, validDraft())
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency Patterns", conf.Title)
	assert.Equal(t, 2, conf.SeatsLeft())
}

func TestCreateConferenceValidation(t *testing.T) {
	svc, _, users := newConferenceService()
	ctx := context.Background()

	missing := validDraft()
	missing.Title = "   "
	_, err := svc.Create(ctx, 9, missing)
	assert.ErrorIs(t, err, shared.ErrValidation)

	zeroSeats := validDraft()
	zeroSeats.Capacity = 0
	_, err = svc.Create(ctx, 9, zeroSeats)
	assert.ErrorIs(t, err, shared.ErrValidation)

	unknownSpeaker := validDraft()
	unknownSpeaker.SpeakerID = 777
	_, err = svc.Create(ctx, 9, unknownSpeaker)
	assert.ErrorIs(t, err, shared.ErrValidation)

	now := time.Now()
	users.users[2] = &identity.User{ID: 2, IsActive: false, DeletedAt: &now}
	deletedSpeaker := validDraft()
	deletedSpeaker.SpeakerID = 2
	_, err = svc.Create(ctx, 9, deletedSpeaker)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestReserveUntilFull(t *testing.T) {
	svc, _, _ := newConferenceService()
	ctx := context.Background()

	conf, err := svc.Create(ctx, 9, validDraft())
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(ctx, 10, conf.ID))
	require.NoError(t, svc.Reserve(ctx, 11, conf.ID))

	err = svc.Reserve(ctx, 12, conf.ID)
	assert.ErrorIs(t, err, shared.ErrValidation)

	got, err := svc.Get(ctx, conf.ID)
	require.NoError(t, err)
	assert.Zero(t, got.SeatsLeft())
}

func TestReserveTwiceConflicts(t *testing.T) {
	svc, _, _ := newConferenceService()
	ctx := context.Background()

	conf, err := svc.Create(ctx, 9, validDraft())
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(ctx, 10, conf.ID))
	assert.ErrorIs(t, svc.Reserve(ctx, 10, conf.ID), shared.ErrConflict)
}

func TestCancelReservationFreesSeat(t *testing.T) {
	svc, _, _ := newConferenceService()
	ctx := context.Background()

	conf, err := svc.Create(ctx, 9, validDraft())
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(ctx, 10, conf.ID))
	require.NoError(t, svc.Reserve(ctx, 11, conf.ID))
	require.NoError(t, svc.CancelReservation(ctx, 10, conf.ID))

	// The freed seat is immediately reusable.
	require.NoError(t, svc.Reserve(ctx, 12, conf.ID))

	assert.ErrorIs(t, svc.CancelReservation(ctx, 10, conf.ID), shared.ErrNotFound)
}

func TestDeleteConferenceRemovesReservations(t *testing.T) {
	svc, repo, _ := newConferenceService()
	ctx := context.Background()

	conf, err := svc.Create(ctx, 9, validDraft())
	require.NoError(t, err)
	require.NoError(t, svc.Reserve(ctx, 10, conf.ID))

	require.NoError(t, svc.Delete(ctx, 9, conf.ID))

	_, err = svc.Get(ctx, conf.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, repo.reservations[conf.ID])
}

func TestUpdateConference(t *testing.T) {
	svc, _, _ := newConferenceService()
	ctx := context.Background()

	conf, err := svc.Create(ctx, 9, validDraft())
	require.NoError(t, err)

	draft := validDraft()
	draft.Title = "Advanced Go"
	draft.Capacity = 50
	updated, err := svc.Update(ctx, 9, conf.ID, draft)
	require.NoError(t, err)
	assert.Equal(t, "Advanced Go", updated.Title)
	assert.Equal(t, 50, updated.Capacity)

	_, err = svc.Update(ctx, 9, 999, draft)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
