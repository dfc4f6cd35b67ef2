package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/notify"
)

// Dedup windows, in days, per lifestyle achievement kind. Recovery-safe is
// deduplicated per user, the others per focus.
const (
	shiftDedupDays        = 3
	avoidanceDedupDays    = 1
	recoverySafeDedupDays = 2
	restartDedupDays      = 7
)

// focusRule describes the today-dated signal that fulfills a focus type:
// a structured tag, an explicit phrase in note/meal descriptions, or both.
type focusRule struct {
	tag        func(internal.EventTags) bool
	phrases    []string
	eventTypes []internal.EventType
	title      string
	insight    string
}

var shiftRules = map[string]focusRule{
	"alcohol_free": {
		tag:        func(t internal.EventTags) bool { return t.AlcoholFree },
		phrases:    []string{"no alcohol", "alcohol-free"},
		eventTypes: []internal.EventType{internal.EventNote, internal.EventMeal},
		title:      "Alcohol-free moment",
		insight:    "You marked today alcohol-free. That's your focus in action.",
	},
	"low_sugar": {
		tag:        func(t internal.EventTags) bool { return t.LowSugar },
		phrases:    []string{"low sugar", "no sugar", "sugar-free"},
		eventTypes: []internal.EventType{internal.EventMeal},
		title:      "Low-sugar choice",
		insight:    "A low-sugar meal today, right in line with your focus.",
	},
	"early_sleep": {
		tag:        func(t internal.EventTags) bool { return t.EarlySleep },
		phrases:    []string{"early night", "slept early", "in bed early"},
		eventTypes: []internal.EventType{internal.EventNote},
		title:      "Early night",
		insight:    "An early night logged today. Your sleep focus is taking hold.",
	},
	"tea_substitution": {
		tag:        func(t internal.EventTags) bool { return t.HerbalTea },
		phrases:    []string{"herbal tea instead", "tea instead of coffee"},
		eventTypes: []internal.EventType{internal.EventNote, internal.EventMeal},
		title:      "Tea over coffee",
		insight:    "You swapped in tea today. Small trades add up.",
	},
	"reduce_caffeine": {
		tag:        func(t internal.EventTags) bool { return t.SkippedCaffeine },
		phrases:    []string{"skipped caffeine", "no caffeine", "no coffee"},
		eventTypes: []internal.EventType{internal.EventNote, internal.EventMeal},
		title:      "Caffeine skipped",
		insight:    "You skipped caffeine today. Your focus is showing.",
	},
	"vegetable_meals": {
		tag:        func(t internal.EventTags) bool { return false },
		phrases:    []string{"vegetable", "veggie", "salad"},
		eventTypes: []internal.EventType{internal.EventMeal},
		title:      "Vegetable-forward meal",
		insight:    "A vegetable-forward meal today supports your focus.",
	},
}

// avoidanceRules is the narrower family: explicit same-day avoidance of a
// tracked behavior, checked daily.
var avoidanceRules = map[string]focusRule{
	"reduce_late_meals": {
		tag:        func(t internal.EventTags) bool { return t.NoLateMeal },
		phrases:    []string{"no late meal", "no late-night snack", "skipped late snack"},
		eventTypes: []internal.EventType{internal.EventNote, internal.EventMeal},
		title:      "Late meal avoided",
		insight:    "No late meal today. You held the line.",
	},
	"reduce_caffeine": {
		tag:        func(t internal.EventTags) bool { return t.SkippedCaffeine },
		phrases:    []string{"skipped caffeine", "no caffeine", "no coffee"},
		eventTypes: []internal.EventType{internal.EventNote, internal.EventMeal},
		title:      "Caffeine avoided",
		insight:    "Another day without caffeine. Avoidance is working.",
	},
}

var lowIntensityActivities = map[string]bool{
	"yoga":       true,
	"stretching": true,
	"walking":    true,
}

// RunLifestyleCalculation runs the focus detector suite over the user's
// active and user-declared focuses using a 14-day event window. Recovery-safe
// is evaluated once per user; shift, avoidance and restart once per focus.
func (e *Engine) RunLifestyleCalculation(ctx context.Context, userID string) ([]internal.LifestyleAchievement, error) {
	unlock := e.lockUser(userID)
	defer unlock()

	now := e.now()
	focuses, err := e.store.Focuses.ListFocuses(ctx, userID, internal.FocusActive, internal.FocusUserDeclared)
	if err != nil {
		return nil, fmt.Errorf("load focuses for user %s: %w", userID, err)
	}
	if len(focuses) == 0 {
		return nil, nil
	}

	events, err := e.store.Events.ListEvents(ctx, userID, now.AddDate(0, 0, -lifestyleWindowDays), now)
	if err != nil {
		return nil, fmt.Errorf("load events for user %s: %w", userID, err)
	}
	events = e.dropMalformed(events)

	// Recent emissions cover every dedup window; new emissions are appended so
	// dedup also holds within this pass.
	recent, err := e.store.Lifestyle.ListLifestyleAchievements(ctx, userID, now.AddDate(0, 0, -restartDedupDays-1))
	if err != nil {
		return nil, fmt.Errorf("load recent lifestyle achievements for user %s: %w", userID, err)
	}

	var emitted []internal.LifestyleAchievement

	emit := func(a internal.LifestyleAchievement) error {
		if err := e.store.Lifestyle.AppendLifestyleAchievement(ctx, &a); err != nil {
			return err
		}
		recent = append(recent, a)
		emitted = append(emitted, a)
		e.sink.Notify(ctx, userID, notify.Notification{Type: string(a.AchievementType), Message: a.InsightText})
		return nil
	}

	// Recovery-safe is user-scoped; run it once, not once per focus.
	if err := e.runIsolated(func() error {
		return e.detectRecoverySafe(ctx, userID, focuses[0].ID, events, recent, now, emit)
	}); err != nil {
		e.logger.Errorf("recovery-safe detector failed for user %s: %v", userID, err)
	}

	for _, focus := range focuses {
		if err := e.runIsolated(func() error {
			return e.detectShift(ctx, &focus, events, recent, now, emit)
		}); err != nil {
			e.logger.Errorf("shift detector failed for focus %s: %v", focus.ID, err)
		}
		if err := e.runIsolated(func() error {
			return e.detectAvoidance(ctx, &focus, events, recent, now, emit)
		}); err != nil {
			e.logger.Errorf("avoidance detector failed for focus %s: %v", focus.ID, err)
		}
		if err := e.runIsolated(func() error {
			return e.detectRestart(ctx, &focus, events, recent, now, emit)
		}); err != nil {
			e.logger.Errorf("restart detector failed for focus %s: %v", focus.ID, err)
		}
	}

	return emitted, nil
}

// hasRecent reports whether an emission of the given kind exists inside the
// dedup window. An empty focusID matches any focus (user-scoped dedup).
func hasRecent(recent []internal.LifestyleAchievement, kind internal.LifestyleAchievementType, focusID string, windowDays int, now time.Time) bool {
	cutoff := now.AddDate(0, 0, -windowDays)
	for _, a := range recent {
		if a.AchievementType != kind {
			continue
		}
		if focusID != "" && a.FocusID != focusID {
			continue
		}
		if a.DateTriggered.After(cutoff) {
			return true
		}
	}
	return false
}

// matchesRule reports whether a single event is a today-dated signal for the
// rule: right type, today's date, and either the structured tag or a phrase.
func matchesRule(ev *internal.TimelineEvent, rule focusRule, now time.Time) bool {
	if !sameDay(ev.EventDate, now) {
		return false
	}
	typeOK := false
	for _, t := range rule.eventTypes {
		if ev.EventType == t {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	if rule.tag != nil && rule.tag(ev.Tags) {
		return true
	}
	return containsAnyFold(ev.Description, rule.phrases)
}

func (e *Engine) detectShift(ctx context.Context, focus *internal.LifestyleFocus, events []internal.TimelineEvent, recent []internal.LifestyleAchievement, now time.Time, emit func(internal.LifestyleAchievement) error) error {
	rule, ok := shiftRules[focus.FocusType]
	if !ok {
		return nil
	}
	if hasRecent(recent, internal.LifestyleShift, focus.ID, shiftDedupDays, now) {
		return nil
	}
	for i := range events {
		if !matchesRule(&events[i], rule, now) {
			continue
		}
		return emit(internal.LifestyleAchievement{
			ID:              uuid.NewString(),
			UserID:          focus.UserID,
			FocusID:         focus.ID,
			AchievementType: internal.LifestyleShift,
			Title:           rule.title,
			InsightText:     rule.insight,
			Confidence:      focus.Confidence,
			DateTriggered:   now,
			Metadata: map[string]string{
				"focus_type": focus.FocusType,
				"event_id":   events[i].ID,
			},
		})
	}
	return nil
}

func (e *Engine) detectAvoidance(ctx context.Context, focus *internal.LifestyleFocus, events []internal.TimelineEvent, recent []internal.LifestyleAchievement, now time.Time, emit func(internal.LifestyleAchievement) error) error {
	rule, ok := avoidanceRules[focus.FocusType]
	if !ok {
		return nil
	}
	if hasRecent(recent, internal.LifestyleAvoidance, focus.ID, avoidanceDedupDays, now) {
		return nil
	}
	for i := range events {
		if !matchesRule(&events[i], rule, now) {
			continue
		}
		return emit(internal.LifestyleAchievement{
			ID:              uuid.NewString(),
			UserID:          focus.UserID,
			FocusID:         focus.ID,
			AchievementType: internal.LifestyleAvoidance,
			Title:           rule.title,
			InsightText:     rule.insight,
			Confidence:      focus.Confidence,
			DateTriggered:   now,
			Metadata: map[string]string{
				"focus_type": focus.FocusType,
				"event_id":   events[i].ID,
			},
		})
	}
	return nil
}

// detectRecoverySafe rewards taking it easy after a rough symptom. The dedup
// is user-scoped, so at most one emission per window no matter how many
// focuses the user holds.
func (e *Engine) detectRecoverySafe(ctx context.Context, userID, focusID string, events []internal.TimelineEvent, recent []internal.LifestyleAchievement, now time.Time, emit func(internal.LifestyleAchievement) error) error {
	if hasRecent(recent, internal.LifestyleRecoverySafe, "", recoverySafeDedupDays, now) {
		return nil
	}

	symptomCutoff := now.AddDate(0, 0, -3)
	preconditionMet := false
	for _, ev := range events {
		if ev.EventType != internal.EventSymptom {
			continue
		}
		if ev.EventDate.Before(symptomCutoff) {
			continue
		}
		if ev.Severity == internal.SeverityModerate || ev.Severity == internal.SeveritySevere {
			preconditionMet = true
			break
		}
	}
	if !preconditionMet {
		return nil
	}

	restDayNote := false
	onlyLowIntensity := true
	workoutsToday := 0
	for _, ev := range events {
		if !sameDay(ev.EventDate, now) {
			continue
		}
		switch ev.EventType {
		case internal.EventWorkout:
			workoutsToday++
			if !lowIntensityActivities[ev.ActivityType] {
				onlyLowIntensity = false
			}
		case internal.EventNote:
			if ev.Tags.RestDay || containsAnyFold(ev.Description, []string{"rest day", "resting today"}) {
				restDayNote = true
			}
		}
	}

	if workoutsToday > 0 && !onlyLowIntensity && !restDayNote {
		return nil
	}

	return emit(internal.LifestyleAchievement{
		ID:              uuid.NewString(),
		UserID:          userID,
		FocusID:         focusID,
		AchievementType: internal.LifestyleRecoverySafe,
		Title:           "Smart recovery",
		InsightText:     "You took it easy after a tough symptom day. Recovery is part of the plan.",
		Confidence:      0.8,
		DateTriggered:   now,
		Metadata:        map[string]string{"workouts_today": fmt.Sprintf("%d", workoutsToday)},
	})
}

// detectRestart notices a comeback: a focus-relevant category resumed today or
// yesterday after a gap of at least three days.
func (e *Engine) detectRestart(ctx context.Context, focus *internal.LifestyleFocus, events []internal.TimelineEvent, recent []internal.LifestyleAchievement, now time.Time, emit func(internal.LifestyleAchievement) error) error {
	category := restartCategory(focus.FocusType)
	if category == "" {
		return nil
	}
	if hasRecent(recent, internal.LifestyleRestart, focus.ID, restartDedupDays, now) {
		return nil
	}

	categoryEvents := filterByType(events, category)
	if len(categoryEvents) < 2 {
		return nil
	}

	// Events are date-descending; compare the two newest distinct days.
	days := uniqueDays(eventTimes(categoryEvents))
	if len(days) < 2 {
		return nil
	}
	latest, previous := days[0], days[1]
	if !sameDay(latest, now) && !sameDay(latest, now.AddDate(0, 0, -1)) {
		return nil
	}
	gapDays := daysBetween(previous, latest)
	if gapDays < 3 {
		return nil
	}
	return emit(internal.LifestyleAchievement{
		ID:              uuid.NewString(),
		UserID:          focus.UserID,
		FocusID:         focus.ID,
		AchievementType: internal.LifestyleRestart,
		Title:           fmt.Sprintf("Back to %ss", category),
		InsightText:     fmt.Sprintf("You picked %s logging back up after %d days off. Restarting is the hard part.", category, gapDays),
		Confidence:      focus.Confidence,
		DateTriggered:   now,
		Metadata: map[string]string{
			"focus_type": focus.FocusType,
			"category":   string(category),
		},
	})
}

// restartCategory maps a focus type to the event category whose resumption it
// celebrates. Focuses outside the two families don't participate.
func restartCategory(focusType string) internal.EventType {
	switch {
	case strings.Contains(focusType, "workout") || strings.Contains(focusType, "movement"):
		return internal.EventWorkout
	case strings.Contains(focusType, "meal") || strings.Contains(focusType, "nutrition"):
		return internal.EventMeal
	default:
		return ""
	}
}
