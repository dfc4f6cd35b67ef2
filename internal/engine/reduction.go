package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// detectReduction compares symptom counts between the trailing 7-day window
// and the 7 days before it. Both windows must have activity: a drop measured
// against silence is not a meaningful reduction.
func (e *Engine) detectReduction(ctx context.Context, userID string, events []internal.TimelineEvent, now time.Time, res *CalculationResult) error {
	symptoms := filterByType(events, internal.EventSymptom)
	weekAgo := now.AddDate(0, 0, -reductionWindowDays)
	twoWeeksAgo := now.AddDate(0, 0, -2*reductionWindowDays)

	var current, previous []internal.TimelineEvent
	for _, ev := range symptoms {
		switch {
		case ev.EventDate.After(weekAgo):
			current = append(current, ev)
		case ev.EventDate.After(twoWeeksAgo):
			previous = append(previous, ev)
		}
	}

	if len(previous) == 0 || len(current) == 0 {
		return nil
	}
	if len(current) >= len(previous) {
		return nil
	}

	delta := len(previous) - len(current)
	key := internal.AchievementKey{
		UserID:   userID,
		Type:     internal.AchievementReduction,
		Category: string(internal.EventSymptom),
	}
	insight := fmt.Sprintf("You logged %d fewer symptoms this week than last week. Whatever you're doing, it's working.", delta)
	a, surfaced, err := e.upsertActive(ctx, key, delta, latestEventDate(current), insight, now)
	if err != nil {
		return fmt.Errorf("reduction: %w", err)
	}
	e.recordAchievement(ctx, res, a, surfaced)
	return nil
}
