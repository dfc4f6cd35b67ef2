package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

var validate = validator.New()

type EventRequest struct {
	EventType    string             `json:"event_type" validate:"required,oneof=meal workout medication symptom doctor_visit injury note"`
	EventDate    time.Time          `json:"event_date" validate:"required"`
	ActivityType string             `json:"activity_type,omitempty" validate:"omitempty"`
	Severity     string             `json:"severity,omitempty" validate:"omitempty,oneof=mild moderate severe"`
	Description  string             `json:"description,omitempty" validate:"omitempty,max=2000"`
	Tags         internal.EventTags `json:"tags,omitempty"`
}

func ValidateEventRequest(req *EventRequest) error {
	return validate.Struct(req)
}

func CreateEvent(ctx context.Context, eventRepo storage.EventRepository, user *internal.User, req *EventRequest) (*internal.TimelineEvent, error) {
	event := &internal.TimelineEvent{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		EventType:    internal.EventType(req.EventType),
		EventDate:    req.EventDate,
		ActivityType: req.ActivityType,
		Severity:     internal.Severity(req.Severity),
		Description:  req.Description,
		Tags:         req.Tags,
		CreatedAt:    time.Now(),
	}
	if err := eventRepo.SaveEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}
