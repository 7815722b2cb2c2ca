package conference

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/atrium-hq/atrium/internal/identity"
	"github.com/atrium-hq/atrium/internal/shared"
)

// Service wraps conference business rules.
type Service struct {
	repo   Repository
	users  identity.Store
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, users identity.Store, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, users: users, audit: audit, logger: logger}
}

// Create validates the draft and inserts a conference.
func (s *Service) Create(ctx context.Context, actorID int64, draft Draft) (*Conference, error) {
	if err := s.validateDraft(ctx, &draft); err != nil {
		return nil, err
	}
	conf, err := s.repo.CreateConference(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "conference.create", conf.ID)
	return conf, nil
}

// List returns all conferences, soonest first.
func (s *Service) List(ctx context.Context) ([]Conference, error) {
	return s.repo.ListConferences(ctx)
}

// Get fetches one conference.
func (s *Service) Get(ctx context.Context, id int64) (*Conference, error) {
	return s.repo.GetConference(ctx, id)
}

// Update validates and applies changes to an existing conference.
func (s *Service) Update(ctx context.Context, actorID, id int64, draft Draft) (*Conference, error) {
	if err := s.validateDraft(ctx, &draft); err != nil {
		return nil, err
	}
	conf, err := s.repo.UpdateConference(ctx, id, draft)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "conference.update", id)
	return conf, nil
}

// Delete removes a conference and its reservations.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteConference(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "conference.delete", id)
	return nil
}

// Reserve books a seat for the user. Booking twice conflicts; booking a
// full conference fails validation.
func (s *Service) Reserve(ctx context.Context, userID, conferenceID int64) error {
	if err := s.repo.Reserve(ctx, userID, conferenceID); err != nil {
		return err
	}
	s.record(ctx, userID, "conference.reserve", conferenceID)
	return nil
}

// CancelReservation releases the user's seat.
func (s *Service) CancelReservation(ctx context.Context, userID, conferenceID int64) error {
	if err := s.repo.CancelReservation(ctx, userID, conferenceID); err != nil {
		return err
	}
	s.record(ctx, userID, "conference.cancel", conferenceID)
	return nil
}

// Reservations lists the bookings for a conference.
func (s *Service) Reservations(ctx context.Context, conferenceID int64) ([]Reservation, error) {
	return s.repo.ListReservations(ctx, conferenceID)
}

func (s *Service) validateDraft(ctx context.Context, draft *Draft) error {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Location = strings.TrimSpace(draft.Location)
	switch {
	case draft.Title == "":
		return shared.Validationf("title is required")
	case draft.Capacity < 1:
		return shared.Validationf("capacity must be positive")
	case draft.StartsAt.IsZero():
		return shared.Validationf("start time is required")
	}
	speaker, err := s.users.FindUserByID(ctx, draft.SpeakerID)
	if err != nil {
		return shared.Validationf("speaker does not exist")
	}
	if speaker.IsDeleted() || !speaker.IsActive {
		return shared.Validationf("speaker is not an active user")
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	event := shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "conference",
		EntityID: strconv.FormatInt(entityID, 10),
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("record audit event", slog.String("action", action), slog.Any("error", err))
	}
}
