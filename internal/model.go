package internal

import "time"

type User struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

type EventType string

const (
	EventMeal        EventType = "meal"
	EventWorkout     EventType = "workout"
	EventMedication  EventType = "medication"
	EventSymptom     EventType = "symptom"
	EventDoctorVisit EventType = "doctor_visit"
	EventInjury      EventType = "injury"
	EventNote        EventType = "note"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// EventTags is the typed form of the optional structured payload attached to an
// event. Known markers get a field of their own so detectors match on fields
// instead of probing an untyped map.
type EventTags struct {
	AlcoholFree     bool   `json:"alcohol_free,omitempty"`
	SkippedCaffeine bool   `json:"skipped_caffeine,omitempty"`
	HerbalTea       bool   `json:"herbal_tea,omitempty"`
	LowSugar        bool   `json:"low_sugar,omitempty"`
	EarlySleep      bool   `json:"early_sleep,omitempty"`
	NoLateMeal      bool   `json:"no_late_meal,omitempty"`
	RestDay         bool   `json:"rest_day,omitempty"`
	Intensity       string `json:"intensity,omitempty"`
}

// TimelineEvent is a single logged health event. Events are immutable once
// written; the engine only ever reads them.
type TimelineEvent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EventType    EventType `json:"event_type"`
	EventDate    time.Time `json:"event_date"`
	ActivityType string    `json:"activity_type,omitempty"`
	Severity     Severity  `json:"severity,omitempty"`
	Description  string    `json:"description,omitempty"`
	Tags         EventTags `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type AchievementType string

const (
	AchievementConsistency AchievementType = "consistency"
	AchievementReduction   AchievementType = "reduction"
	AchievementCorrelation AchievementType = "correlation"
	AchievementLifestyle   AchievementType = "lifestyle"
)

type AchievementStatus string

const (
	AchievementActive  AchievementStatus = "active"
	AchievementExpired AchievementStatus = "expired"
)

// AchievementKey identifies the single Achievement row a (user, type, category)
// triple may hold. Stores upsert on it atomically.
type AchievementKey struct {
	UserID   string          `json:"user_id"`
	Type     AchievementType `json:"type"`
	Category string          `json:"category"`
}

type Achievement struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Type          AchievementType   `json:"type"`
	Category      string            `json:"category"`
	StartDate     time.Time         `json:"start_date"`
	CurrentStreak int               `json:"current_streak"`
	LastEventDate time.Time         `json:"last_event_date"`
	InsightText   string            `json:"insight_text"`
	Status        AchievementStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (a *Achievement) Key() AchievementKey {
	return AchievementKey{UserID: a.UserID, Type: a.Type, Category: a.Category}
}

// AchievementProgress is the ephemeral "almost there" signal for a key that has
// not unlocked yet. It is fully overwritten on every calculation pass.
type AchievementProgress struct {
	UserID          string          `json:"user_id"`
	Type            AchievementType `json:"type"`
	Category        string          `json:"category"`
	CurrentCount    int             `json:"current_count"`
	RequiredCount   int             `json:"required_count"`
	ProgressMessage string          `json:"progress_message"`
	LastUpdated     time.Time       `json:"last_updated"`
}

func (p *AchievementProgress) Key() AchievementKey {
	return AchievementKey{UserID: p.UserID, Type: p.Type, Category: p.Category}
}

type FocusStatus string

const (
	FocusActive       FocusStatus = "active"
	FocusUserDeclared FocusStatus = "user_declared"
	FocusRemoved      FocusStatus = "removed"
)

// LifestyleFocus is a lifestyle intention the engine observes, either declared
// by the user or created from an accepted inferred pattern. Removal is a status
// flip, never a delete, so achievements referencing it stay resolvable.
type LifestyleFocus struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	FocusType  string      `json:"focus_type"`
	Status     FocusStatus `json:"status"`
	Confidence float64     `json:"confidence"`
	StartDate  time.Time   `json:"start_date"`
}

type LifestyleAchievementType string

const (
	LifestyleShift        LifestyleAchievementType = "lifestyle_shift"
	LifestyleAvoidance    LifestyleAchievementType = "avoidance"
	LifestyleRecoverySafe LifestyleAchievementType = "recovery_safe"
	LifestyleRestart      LifestyleAchievementType = "restart"
)

// LifestyleAchievement is an append-only observation; duplicates across time
// are intended and dedup is by time window, not by key.
type LifestyleAchievement struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"user_id"`
	FocusID         string                   `json:"focus_id,omitempty"`
	AchievementType LifestyleAchievementType `json:"achievement_type"`
	Title           string                   `json:"title"`
	InsightText     string                   `json:"insight_text"`
	Confidence      float64                  `json:"confidence"`
	DateTriggered   time.Time                `json:"date_triggered"`
	Metadata        map[string]string        `json:"metadata,omitempty"`
}

type PatternResponse string

const (
	PatternAccepted  PatternResponse = "accepted"
	PatternDismissed PatternResponse = "dismissed"
)

// InferredPattern is a proposed focus, unique per (user, pattern_type). The
// engine only proposes; acceptance is an external user action.
type InferredPattern struct {
	UserID            string          `json:"user_id"`
	PatternType       string          `json:"pattern_type"`
	DetectionCount    int             `json:"detection_count"`
	Confidence        float64         `json:"confidence"`
	LastDetected      time.Time       `json:"last_detected"`
	ConfirmationShown bool            `json:"confirmation_shown"`
	UserResponse      PatternResponse `json:"user_response,omitempty"`
}

// UserSettings holds the per-user complexity level gating detector families.
type UserSettings struct {
	UserID          string `json:"user_id"`
	ComplexityLevel int    `json:"complexity_level"`
}

const DefaultComplexityLevel = 1
