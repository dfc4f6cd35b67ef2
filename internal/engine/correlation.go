package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

const correlationCategory = "flexibility_pain"

var flexibilityActivities = map[string]bool{
	"yoga":       true,
	"pilates":    true,
	"stretching": true,
}

// detectCorrelation looks for a next-day relationship between flexibility
// workouts and absent-or-mild symptoms. It is a heuristic co-occurrence
// signal, not a statistical test.
func (e *Engine) detectCorrelation(ctx context.Context, userID string, events []internal.TimelineEvent, now time.Time, res *CalculationResult) error {
	workouts := filterByType(events, internal.EventWorkout)
	symptoms := filterByType(events, internal.EventSymptom)
	if len(workouts) < 2 || len(symptoms) < 2 {
		return nil
	}

	// Distinct flexibility-workout dates, and the earliest flexibility event
	// for the insight's activity name. Input is date-descending.
	flexDates := make(map[time.Time]bool)
	var earliest *internal.TimelineEvent
	for i := range workouts {
		if !flexibilityActivities[workouts[i].ActivityType] {
			continue
		}
		flexDates[dateOf(workouts[i].EventDate)] = true
		earliest = &workouts[i]
	}
	if len(flexDates) < 2 {
		return nil
	}

	symptomsByDay := make(map[time.Time][]internal.TimelineEvent)
	for _, s := range symptoms {
		d := dateOf(s.EventDate)
		symptomsByDay[d] = append(symptomsByDay[d], s)
	}

	reductions := 0
	for d := range flexDates {
		nextDay := symptomsByDay[d.AddDate(0, 0, 1)]
		if allMildOrAbsent(nextDay) {
			reductions++
		}
	}
	if reductions < 2 {
		return nil
	}

	key := internal.AchievementKey{
		UserID:   userID,
		Type:     internal.AchievementCorrelation,
		Category: correlationCategory,
	}
	insight := fmt.Sprintf("After %s sessions, your next days tend to be pain-free or mild. That's happened %d times recently.", earliest.ActivityType, reductions)
	a, surfaced, err := e.upsertActive(ctx, key, reductions, latestEventDate(workouts), insight, now)
	if err != nil {
		return fmt.Errorf("correlation: %w", err)
	}
	e.recordAchievement(ctx, res, a, surfaced)
	return nil
}

// allMildOrAbsent is the "pain reduction" test for a day's symptoms: none at
// all, or none worse than mild.
func allMildOrAbsent(symptoms []internal.TimelineEvent) bool {
	for _, s := range symptoms {
		if s.Severity != internal.SeverityMild {
			return false
		}
	}
	return true
}
