package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// ErrNotFound is returned when a keyed lookup matches nothing.
var ErrNotFound = errors.New("storage: not found")

type EventRepository interface {
	SaveEvent(ctx context.Context, event *internal.TimelineEvent) error
	// ListEvents returns the user's events with event_date in [from, to],
	// ordered by event_date descending.
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]internal.TimelineEvent, error)
	// ActiveUsers returns ids of users who logged an event since the cutoff.
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

type AchievementRepository interface {
	// UpsertAchievement inserts or replaces the single row for the record's
	// (user_id, type, category) key. The write is atomic per key.
	UpsertAchievement(ctx context.Context, a *internal.Achievement) error
	GetAchievement(ctx context.Context, key internal.AchievementKey) (*internal.Achievement, error)
	ListAchievements(ctx context.Context, userID string) ([]internal.Achievement, error)
}

type ProgressRepository interface {
	UpsertProgress(ctx context.Context, p *internal.AchievementProgress) error
	DeleteProgress(ctx context.Context, key internal.AchievementKey) error
	ListProgress(ctx context.Context, userID string) ([]internal.AchievementProgress, error)
}

type FocusRepository interface {
	SaveFocus(ctx context.Context, focus *internal.LifestyleFocus) error
	GetFocus(ctx context.Context, id string) (*internal.LifestyleFocus, error)
	// UpdateFocusStatus is the only mutation; focuses are never hard-deleted.
	UpdateFocusStatus(ctx context.Context, id string, status internal.FocusStatus) error
	ListFocuses(ctx context.Context, userID string, statuses ...internal.FocusStatus) ([]internal.LifestyleFocus, error)
}

type LifestyleAchievementRepository interface {
	AppendLifestyleAchievement(ctx context.Context, a *internal.LifestyleAchievement) error
	// ListLifestyleAchievements returns records triggered at or after since,
	// newest first.
	ListLifestyleAchievements(ctx context.Context, userID string, since time.Time) ([]internal.LifestyleAchievement, error)
}

type PatternRepository interface {
	UpsertPattern(ctx context.Context, p *internal.InferredPattern) error
	GetPattern(ctx context.Context, userID, patternType string) (*internal.InferredPattern, error)
	ListPatterns(ctx context.Context, userID string) ([]internal.InferredPattern, error)
}

type SettingsRepository interface {
	// GetSettings returns defaults (complexity level 1) for unknown users.
	GetSettings(ctx context.Context, userID string) (*internal.UserSettings, error)
	PutSettings(ctx context.Context, s *internal.UserSettings) error
}

type UserRepository interface {
	GetUserByToken(ctx context.Context, token string) (*internal.User, error)
}
