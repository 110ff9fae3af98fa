package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"secrets_app/internal/models"
	"secrets_app/internal/repository"
)

// LogFilter narrows List. UserID is always set by callers so that users
// only see their own activity.
type LogFilter struct {
	From   time.Time
	To     time.Time
	Type   string
	UserID int
	Limit  int
}

type EventLogService struct {
	eventRepo repository.EventRepo
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, now: time.Now}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errMissingType      = errors.New("event type is required")
)

// maxListLimit caps a single List call.
const maxListLimit = 500

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:   normalizeToUTC(f.From),
		To:     normalizeToUTC(f.To),
		Type:   normalizeEventType(f.Type),
		UserID: f.UserID,
		Limit:  f.Limit,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, errInvalidTimeRange
	}
	if q.Limit <= 0 || q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return q, nil
}

// Record appends e, stamping it with the current time when unset.
func (s *EventLogService) Record(ctx context.Context, e models.AuthEvent) error {
	e.Type = normalizeEventType(e.Type)
	if e.Type == "" {
		return errMissingType
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now().UTC()
	}
	return s.eventRepo.Append(ctx, e)
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.AuthEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}
