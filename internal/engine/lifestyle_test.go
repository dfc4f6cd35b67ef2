package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

func seedFocus(t *testing.T, store *storage.Repositories, userID, focusType string) *internal.LifestyleFocus {
	t.Helper()
	focus := &internal.LifestyleFocus{
		ID:         uuid.NewString(),
		UserID:     userID,
		FocusType:  focusType,
		Status:     internal.FocusUserDeclared,
		Confidence: 1.0,
		StartDate:  testNow.AddDate(0, 0, -5),
	}
	require.NoError(t, store.Focuses.SaveFocus(context.Background(), focus))
	return focus
}

func countByType(got []internal.LifestyleAchievement, kind internal.LifestyleAchievementType) int {
	n := 0
	for _, a := range got {
		if a.AchievementType == kind {
			n++
		}
	}
	return n
}

func TestLifestyleNoFocusesIsNoOp(t *testing.T) {
	eng, store := newTestEngine(t)
	seedEvents(t, store, noteEvent("u1", 0, "no alcohol today"))

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestShiftDetectionAndDedup(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	focus := seedFocus(t, store, "u1", "alcohol_free")
	seedEvents(t, store, noteEvent("u1", 0, "No alcohol with dinner tonight"))

	got, err := eng.RunLifestyleCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, internal.LifestyleShift, got[0].AchievementType)
	assert.Equal(t, focus.ID, got[0].FocusID)
	assert.InDelta(t, 1.0, got[0].Confidence, 0.001)
	assert.Equal(t, "alcohol_free", got[0].Metadata["focus_type"])

	// Same signal inside the dedup window stays silent.
	again, err := eng.RunLifestyleCalculation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again)

	stored, err := store.Lifestyle.ListLifestyleAchievements(ctx, "u1", testNow.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestShiftMatchesStructuredTag(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "low_sugar")
	meal := dayEvent("u1", internal.EventMeal, 0)
	meal.Description = "grilled chicken"
	meal.Tags.LowSugar = true
	seedEvents(t, store, meal)

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, internal.LifestyleShift, got[0].AchievementType)
	assert.Equal(t, "Low-sugar choice", got[0].Title)
}

func TestShiftIgnoresOlderEvents(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "alcohol_free")
	seedEvents(t, store, noteEvent("u1", 1, "no alcohol yesterday"))

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAvoidanceDetectionAndDailyDedup(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedFocus(t, store, "u1", "reduce_late_meals")
	meal := dayEvent("u1", internal.EventMeal, 0)
	meal.Tags.NoLateMeal = true
	seedEvents(t, store, meal)

	got, err := eng.RunLifestyleCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, internal.LifestyleAvoidance, got[0].AchievementType)
	assert.Equal(t, "Late meal avoided", got[0].Title)

	again, err := eng.RunLifestyleCalculation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRecoverySafeOncePerUser(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedFocus(t, store, "u1", "alcohol_free")
	seedFocus(t, store, "u1", "early_sleep")
	seedEvents(t, store, symptomEvent("u1", 1, internal.SeveritySevere))

	got, err := eng.RunLifestyleCalculation(ctx, "u1")
	require.NoError(t, err)
	// Two focuses, one user-scoped emission.
	assert.Equal(t, 1, countByType(got, internal.LifestyleRecoverySafe))
	require.Len(t, got, 1)
	assert.InDelta(t, 0.8, got[0].Confidence, 0.001)

	again, err := eng.RunLifestyleCalculation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRecoverySafeAllowsLowIntensityMovement(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "alcohol_free")
	seedEvents(t, store,
		symptomEvent("u1", 1, internal.SeverityModerate),
		workoutEvent("u1", 0, "yoga"),
	)

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, countByType(got, internal.LifestyleRecoverySafe))
}

func TestRecoverySafeBlockedByHardWorkout(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "alcohol_free")
	seedEvents(t, store,
		symptomEvent("u1", 1, internal.SeveritySevere),
		workoutEvent("u1", 0, "running"),
	)

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, countByType(got, internal.LifestyleRecoverySafe))
}

func TestRecoverySafeNeedsRecentRoughSymptom(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "alcohol_free")
	seedEvents(t, store, symptomEvent("u1", 1, internal.SeverityMild))

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRestartAfterGap(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "workout_consistency")
	seedEvents(t, store,
		workoutEvent("u1", 5, "running"),
		workoutEvent("u1", 0, "running"),
	)

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, internal.LifestyleRestart, got[0].AchievementType)
	assert.Equal(t, "workout", got[0].Metadata["category"])
	assert.Contains(t, got[0].InsightText, "5 days off")
}

func TestRestartNeedsThreeDayGap(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "workout_consistency")
	seedEvents(t, store,
		workoutEvent("u1", 2, "running"),
		workoutEvent("u1", 0, "running"),
	)

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRestartNeedsFreshResumption(t *testing.T) {
	eng, store := newTestEngine(t)
	seedFocus(t, store, "u1", "workout_consistency")
	// The comeback itself is already three days old.
	seedEvents(t, store,
		workoutEvent("u1", 9, "running"),
		workoutEvent("u1", 3, "running"),
	)

	got, err := eng.RunLifestyleCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
