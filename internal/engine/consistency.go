package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// consistencyCategories are the event types the consistency detector tracks,
// each as its own achievement category.
var consistencyCategories = []internal.EventType{
	internal.EventWorkout,
	internal.EventMeal,
	internal.EventMedication,
	internal.EventSymptom,
	internal.EventNote,
}

var consistencyInsights = map[internal.EventType]string{
	internal.EventWorkout:    "You've worked out %d days in a row. Keep moving!",
	internal.EventMeal:       "%d straight days of meal logging. Your nutrition picture is getting clearer.",
	internal.EventMedication: "Medication logged %d days in a row. Staying on schedule pays off.",
	internal.EventSymptom:    "You've tracked symptoms %d days running. Consistent tracking reveals patterns.",
	internal.EventNote:       "%d days of journaling in a row. Your notes build the full story.",
}

// detectConsistency finds per-category calendar-day streaks of at least three
// days and emits near-miss progress rows for categories still short of that.
func (e *Engine) detectConsistency(ctx context.Context, userID string, events []internal.TimelineEvent, now time.Time, res *CalculationResult) error {
	for _, category := range consistencyCategories {
		categoryEvents := filterByType(events, category)
		if len(categoryEvents) == 0 {
			// No activity in the window: no achievement, no progress row.
			continue
		}

		days := uniqueDays(eventTimes(categoryEvents))
		streak := CalculateStreak(eventTimes(categoryEvents))
		key := internal.AchievementKey{
			UserID:   userID,
			Type:     internal.AchievementConsistency,
			Category: string(category),
		}

		switch {
		case streak >= requiredConsistencyDays:
			insight := fmt.Sprintf(consistencyInsights[category], streak)
			a, surfaced, err := e.upsertActive(ctx, key, streak, latestEventDate(categoryEvents), insight, now)
			if err != nil {
				return fmt.Errorf("consistency %s: %w", category, err)
			}
			e.recordAchievement(ctx, res, a, surfaced)

		case streak == requiredConsistencyDays-1:
			p := &internal.AchievementProgress{
				UserID:          userID,
				Type:            internal.AchievementConsistency,
				Category:        string(category),
				CurrentCount:    streak,
				RequiredCount:   requiredConsistencyDays,
				ProgressMessage: fmt.Sprintf("1 more day to unlock a %d-day %s streak!", requiredConsistencyDays, category),
				LastUpdated:     now,
			}
			if err := e.emitProgress(ctx, res, p); err != nil {
				return fmt.Errorf("consistency progress %s: %w", category, err)
			}

		default:
			remaining := requiredConsistencyDays - len(days)
			if remaining < 1 {
				remaining = 1
			}
			p := &internal.AchievementProgress{
				UserID:          userID,
				Type:            internal.AchievementConsistency,
				Category:        string(category),
				CurrentCount:    len(days),
				RequiredCount:   requiredConsistencyDays,
				ProgressMessage: fmt.Sprintf("%d more days to unlock a %d-day %s streak!", remaining, requiredConsistencyDays, category),
				LastUpdated:     now,
			}
			if err := e.emitProgress(ctx, res, p); err != nil {
				return fmt.Errorf("consistency progress %s: %w", category, err)
			}
		}
	}
	return nil
}
