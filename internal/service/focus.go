package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

type FocusRequest struct {
	FocusType string `json:"focus_type" validate:"required,min=2,max=64"`
}

type PatternResponseRequest struct {
	Response string `json:"response" validate:"required,oneof=accepted dismissed"`
}

var ErrForbidden = errors.New("service: record belongs to another user")

func ValidateFocusRequest(req *FocusRequest) error {
	return validate.Struct(req)
}

func ValidatePatternResponseRequest(req *PatternResponseRequest) error {
	return validate.Struct(req)
}

// CreateFocus records a user-declared lifestyle intention. Declared focuses
// carry full confidence; inferred ones inherit the pattern's.
func CreateFocus(ctx context.Context, focusRepo storage.FocusRepository, user *internal.User, req *FocusRequest) (*internal.LifestyleFocus, error) {
	focus := &internal.LifestyleFocus{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		FocusType:  req.FocusType,
		Status:     internal.FocusUserDeclared,
		Confidence: 1.0,
		StartDate:  time.Now(),
	}
	if err := focusRepo.SaveFocus(ctx, focus); err != nil {
		return nil, err
	}
	return focus, nil
}

// RemoveFocus soft-deletes: the row stays so lifestyle achievements keep a
// valid focus reference.
func RemoveFocus(ctx context.Context, focusRepo storage.FocusRepository, user *internal.User, focusID string) error {
	focus, err := focusRepo.GetFocus(ctx, focusID)
	if err != nil {
		return err
	}
	if focus.UserID != user.ID {
		return ErrForbidden
	}
	return focusRepo.UpdateFocusStatus(ctx, focusID, internal.FocusRemoved)
}

// RespondToPattern records the user's answer to a proposed pattern. Accepting
// turns the proposal into an active focus with the pattern's confidence.
func RespondToPattern(ctx context.Context, patternRepo storage.PatternRepository, focusRepo storage.FocusRepository, user *internal.User, patternType string, req *PatternResponseRequest) (*internal.LifestyleFocus, error) {
	pattern, err := patternRepo.GetPattern(ctx, user.ID, patternType)
	if err != nil {
		return nil, err
	}

	pattern.ConfirmationShown = true
	pattern.UserResponse = internal.PatternResponse(req.Response)
	if err := patternRepo.UpsertPattern(ctx, pattern); err != nil {
		return nil, err
	}

	if pattern.UserResponse != internal.PatternAccepted {
		return nil, nil
	}

	focus := &internal.LifestyleFocus{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		FocusType:  pattern.PatternType,
		Status:     internal.FocusActive,
		Confidence: pattern.Confidence,
		StartDate:  time.Now(),
	}
	if err := focusRepo.SaveFocus(ctx, focus); err != nil {
		return nil, err
	}
	return focus, nil
}
