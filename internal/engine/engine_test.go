package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/notify"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

var testNow = time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *storage.Repositories) {
	t.Helper()
	dir := t.TempDir()
	logger := internal.NewZapLogger(zap.NewNop().Sugar())
	store, err := storage.NewFileRepositories(
		filepath.Join(dir, "events.json"),
		filepath.Join(dir, "derived.json"),
		filepath.Join(dir, "users.json"),
		logger,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng := New(store, notify.NewLogSink(logger), logger)
	eng.now = func() time.Time { return testNow }
	return eng, store
}

func dayEvent(userID string, typ internal.EventType, daysAgo int) internal.TimelineEvent {
	return internal.TimelineEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: typ,
		EventDate: testNow.AddDate(0, 0, -daysAgo),
		CreatedAt: testNow,
	}
}

func seedEvents(t *testing.T, store *storage.Repositories, events ...internal.TimelineEvent) {
	t.Helper()
	for i := range events {
		require.NoError(t, store.Events.SaveEvent(context.Background(), &events[i]))
	}
}

func setLevel(t *testing.T, store *storage.Repositories, userID string, level int) {
	t.Helper()
	require.NoError(t, store.Settings.PutSettings(context.Background(),
		&internal.UserSettings{UserID: userID, ComplexityLevel: level}))
}

func TestConsistencyUnlocksAtThreeDays(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, store,
		dayEvent("u1", internal.EventWorkout, 0),
		dayEvent("u1", internal.EventWorkout, 1),
		dayEvent("u1", internal.EventWorkout, 2),
	)

	res, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, res.NewAchievements, 1)

	a := res.NewAchievements[0]
	assert.Equal(t, internal.AchievementConsistency, a.Type)
	assert.Equal(t, "workout", a.Category)
	assert.Equal(t, 3, a.CurrentStreak)
	assert.Equal(t, internal.AchievementActive, a.Status)
	assert.Equal(t, dateOf(testNow).AddDate(0, 0, -2), a.StartDate)
	assert.NotEmpty(t, a.ID)

	// The key graduated, so no near-miss row remains.
	progress, err := store.Progress.ListProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, progress)
}

func TestConsistencyTwoDaysEmitsProgress(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, store,
		dayEvent("u1", internal.EventMeal, 0),
		dayEvent("u1", internal.EventMeal, 1),
	)

	res, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, res.NewAchievements)
	require.Len(t, res.Progress, 1)

	p := res.Progress[0]
	assert.Equal(t, "meal", p.Category)
	assert.Equal(t, 2, p.CurrentCount)
	assert.Equal(t, 3, p.RequiredCount)
	assert.Contains(t, p.ProgressMessage, "1 more day")

	listed, err := store.Progress.ListProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestConsistencySingleDayProgress(t *testing.T) {
	eng, _ := newTestEngine(t)
	seedEvents(t, eng.store, dayEvent("u1", internal.EventMedication, 0))

	res, err := eng.RunAchievementCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, res.NewAchievements)
	require.Len(t, res.Progress, 1)
	assert.Equal(t, 1, res.Progress[0].CurrentCount)
}

func TestConsistencyBrokenStreakCountsDays(t *testing.T) {
	eng, _ := newTestEngine(t)
	// Four active days but every one followed by a gap.
	seedEvents(t, eng.store,
		dayEvent("u1", internal.EventSymptom, 0),
		dayEvent("u1", internal.EventSymptom, 2),
		dayEvent("u1", internal.EventSymptom, 4),
		dayEvent("u1", internal.EventSymptom, 6),
	)

	res, err := eng.RunAchievementCalculation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, res.NewAchievements)
	require.Len(t, res.Progress, 1)
	assert.Equal(t, 4, res.Progress[0].CurrentCount)
	assert.Contains(t, res.Progress[0].ProgressMessage, "1 more")
}

func TestAchievementCalculationIdempotent(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, store,
		dayEvent("u1", internal.EventWorkout, 0),
		dayEvent("u1", internal.EventWorkout, 1),
		dayEvent("u1", internal.EventWorkout, 2),
	)

	first, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.NewAchievements, 1)

	second, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second.NewAchievements)

	all, err := store.Achievements.ListAchievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.NewAchievements[0].ID, all[0].ID)
}

func TestStreakGrowthResurfacesAchievement(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	seedEvents(t, store,
		dayEvent("u1", internal.EventWorkout, 1),
		dayEvent("u1", internal.EventWorkout, 2),
		dayEvent("u1", internal.EventWorkout, 3),
	)

	first, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.NewAchievements, 1)
	originalStart := first.NewAchievements[0].StartDate

	seedEvents(t, store, dayEvent("u1", internal.EventWorkout, 0))
	second, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second.NewAchievements, 1)
	assert.Equal(t, 4, second.NewAchievements[0].CurrentStreak)
	assert.Equal(t, first.NewAchievements[0].ID, second.NewAchievements[0].ID)
	assert.Equal(t, originalStart, second.NewAchievements[0].StartDate)
}

func TestExpireStaleFlipsOldAchievements(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	stale := &internal.Achievement{
		ID: uuid.NewString(), UserID: "u1",
		Type: internal.AchievementConsistency, Category: "workout",
		CurrentStreak: 3, LastEventDate: testNow.AddDate(0, 0, -8),
		Status: internal.AchievementActive,
	}
	fresh := &internal.Achievement{
		ID: uuid.NewString(), UserID: "u1",
		Type: internal.AchievementConsistency, Category: "meal",
		CurrentStreak: 3, LastEventDate: testNow.AddDate(0, 0, -6),
		Status: internal.AchievementActive,
	}
	require.NoError(t, store.Achievements.UpsertAchievement(ctx, stale))
	require.NoError(t, store.Achievements.UpsertAchievement(ctx, fresh))

	require.NoError(t, eng.expireStale(ctx, "u1", testNow))

	got, err := store.Achievements.GetAchievement(ctx, stale.Key())
	require.NoError(t, err)
	assert.Equal(t, internal.AchievementExpired, got.Status)

	got, err = store.Achievements.GetAchievement(ctx, fresh.Key())
	require.NoError(t, err)
	assert.Equal(t, internal.AchievementActive, got.Status)
}

func TestReactivationKeepsIdentity(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	// An old run: detected, then expired by the same pass's sweeper.
	seedEvents(t, store,
		dayEvent("u1", internal.EventWorkout, 10),
		dayEvent("u1", internal.EventWorkout, 11),
		dayEvent("u1", internal.EventWorkout, 12),
	)
	first, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.NewAchievements, 1)

	key := internal.AchievementKey{UserID: "u1", Type: internal.AchievementConsistency, Category: "workout"}
	expired, err := store.Achievements.GetAchievement(ctx, key)
	require.NoError(t, err)
	require.Equal(t, internal.AchievementExpired, expired.Status)

	// A fresh run re-qualifies: same row, re-activated, new start date.
	seedEvents(t, store,
		dayEvent("u1", internal.EventWorkout, 0),
		dayEvent("u1", internal.EventWorkout, 1),
		dayEvent("u1", internal.EventWorkout, 2),
	)
	second, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second.NewAchievements, 1)

	reactivated := second.NewAchievements[0]
	assert.Equal(t, expired.ID, reactivated.ID)
	assert.Equal(t, expired.CreatedAt, reactivated.CreatedAt)
	assert.Equal(t, internal.AchievementActive, reactivated.Status)
	assert.Equal(t, dateOf(testNow).AddDate(0, 0, -2), reactivated.StartDate)
}

func TestComplexityGateFiltersFamilies(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	// Qualifies for reduction: five symptoms last week, two this week.
	seedEvents(t, store,
		dayEvent("u1", internal.EventSymptom, 8),
		dayEvent("u1", internal.EventSymptom, 9),
		dayEvent("u1", internal.EventSymptom, 10),
		dayEvent("u1", internal.EventSymptom, 11),
		dayEvent("u1", internal.EventSymptom, 12),
		dayEvent("u1", internal.EventSymptom, 1),
		dayEvent("u1", internal.EventSymptom, 2),
	)

	key := internal.AchievementKey{UserID: "u1", Type: internal.AchievementReduction, Category: "symptom"}

	// Level 1 (the default) never runs the reduction family.
	_, err := eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	_, err = store.Achievements.GetAchievement(ctx, key)
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	setLevel(t, store, "u1", 2)
	_, err = eng.RunAchievementCalculation(ctx, "u1")
	require.NoError(t, err)
	got, err := store.Achievements.GetAchievement(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStreak)
}

func TestFamiliesForLevel(t *testing.T) {
	assert.Equal(t, []detectorFamily{familyConsistency}, familiesForLevel(1))
	assert.Equal(t, []detectorFamily{familyConsistency}, familiesForLevel(0))
	assert.Equal(t, []detectorFamily{familyConsistency, familyReduction}, familiesForLevel(2))
	assert.Len(t, familiesForLevel(3), 3)
	assert.Len(t, familiesForLevel(4), 4)
	assert.Len(t, familiesForLevel(9), 4)
}

func TestMalformedEventsAreSkipped(t *testing.T) {
	eng, store := newTestEngine(t)
	broken := internal.TimelineEvent{
		ID: uuid.NewString(), UserID: "u1",
		EventDate: testNow, CreatedAt: testNow, // no type
	}
	seedEvents(t, store,
		broken,
		dayEvent("u1", internal.EventWorkout, 0),
		dayEvent("u1", internal.EventWorkout, 1),
		dayEvent("u1", internal.EventWorkout, 2),
	)

	res, err := eng.RunAchievementCalculation(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, res.NewAchievements, 1)
	assert.Equal(t, 3, res.NewAchievements[0].CurrentStreak)
}
