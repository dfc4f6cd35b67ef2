package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

var base = time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC)

func testPaths(t *testing.T) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "events.json"),
		filepath.Join(dir, "derived.json"),
		filepath.Join(dir, "users.json")
}

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	events, derived, users := testPaths(t)
	s, err := NewFileStorage(events, derived, users, internal.NewZapLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(userID string, daysAgo int) *internal.TimelineEvent {
	return &internal.TimelineEvent{
		ID:        userID + "-" + strconv.Itoa(daysAgo),
		UserID:    userID,
		EventType: internal.EventWorkout,
		EventDate: base.AddDate(0, 0, -daysAgo),
		CreatedAt: base,
	}
}

func TestListEventsWindowAndOrdering(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	// Inserted out of order; listed newest first.
	require.NoError(t, s.SaveEvent(ctx, event("u1", 5)))
	require.NoError(t, s.SaveEvent(ctx, event("u1", 0)))
	require.NoError(t, s.SaveEvent(ctx, event("u1", 2)))
	require.NoError(t, s.SaveEvent(ctx, event("u1", 40)))
	require.NoError(t, s.SaveEvent(ctx, event("u2", 1)))

	got, err := s.ListEvents(ctx, "u1", base.AddDate(0, 0, -30), base)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].EventDate.After(got[1].EventDate))
	assert.True(t, got[1].EventDate.After(got[2].EventDate))

	none, err := s.ListEvents(ctx, "unknown", base.AddDate(0, 0, -30), base)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestActiveUsers(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	recent := event("u1", 0)
	recent.CreatedAt = base
	old := event("u2", 0)
	old.CreatedAt = base.AddDate(0, 0, -3)
	require.NoError(t, s.SaveEvent(ctx, recent))
	require.NoError(t, s.SaveEvent(ctx, old))

	users, err := s.ActiveUsers(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestUpsertAchievementKeepsIdentity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := &internal.Achievement{
		ID: "a1", UserID: "u1",
		Type: internal.AchievementConsistency, Category: "workout",
		CurrentStreak: 3, Status: internal.AchievementActive,
		CreatedAt: base,
	}
	require.NoError(t, s.UpsertAchievement(ctx, first))

	update := *first
	update.ID = "different"
	update.CreatedAt = base.AddDate(0, 0, 1)
	update.CurrentStreak = 4
	require.NoError(t, s.UpsertAchievement(ctx, &update))

	got, err := s.GetAchievement(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, 4, got.CurrentStreak)

	all, err := s.ListAchievements(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetAchievementNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetAchievement(context.Background(), internal.AchievementKey{
		UserID: "u1", Type: internal.AchievementConsistency, Category: "workout",
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProgressUpsertAndDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := &internal.AchievementProgress{
		UserID: "u1", Type: internal.AchievementConsistency, Category: "meal",
		CurrentCount: 2, RequiredCount: 3,
	}
	require.NoError(t, s.UpsertProgress(ctx, p))

	listed, err := s.ListProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, s.DeleteProgress(ctx, p.Key()))
	listed, err = s.ListProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestFocusSoftRemoval(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	focus := &internal.LifestyleFocus{
		ID: "f1", UserID: "u1", FocusType: "alcohol_free",
		Status: internal.FocusUserDeclared, Confidence: 1.0, StartDate: base,
	}
	require.NoError(t, s.SaveFocus(ctx, focus))
	require.NoError(t, s.UpdateFocusStatus(ctx, "f1", internal.FocusRemoved))

	// Removed focuses drop out of the active listing but the row survives.
	active, err := s.ListFocuses(ctx, "u1", internal.FocusActive, internal.FocusUserDeclared)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := s.GetFocus(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, internal.FocusRemoved, got.Status)

	assert.True(t, errors.Is(s.UpdateFocusStatus(ctx, "missing", internal.FocusRemoved), ErrNotFound))
}

func TestLifestyleAchievementsSinceFilter(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	older := &internal.LifestyleAchievement{
		ID: "l1", UserID: "u1", AchievementType: internal.LifestyleShift,
		DateTriggered: base.AddDate(0, 0, -10),
	}
	newer := &internal.LifestyleAchievement{
		ID: "l2", UserID: "u1", AchievementType: internal.LifestyleRestart,
		DateTriggered: base,
	}
	require.NoError(t, s.AppendLifestyleAchievement(ctx, older))
	require.NoError(t, s.AppendLifestyleAchievement(ctx, newer))

	got, err := s.ListLifestyleAchievements(ctx, "u1", base.AddDate(0, 0, -5))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "l2", got[0].ID)

	all, err := s.ListLifestyleAchievements(ctx, "u1", base.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "l2", all[0].ID)
}

func TestSettingsDefaultLevel(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	got, err := s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, internal.DefaultComplexityLevel, got.ComplexityLevel)

	require.NoError(t, s.PutSettings(ctx, &internal.UserSettings{UserID: "u1", ComplexityLevel: 3}))
	got, err = s.GetSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ComplexityLevel)
}

func TestUsersLoadedFromFile(t *testing.T) {
	events, derived, users := testPaths(t)
	require.NoError(t, os.WriteFile(users,
		[]byte(`[{"id":"u1","token":"tok-1","name":"Test User"}]`), 0644))

	s, err := NewFileStorage(events, derived, users, internal.NewZapLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.GetUserByToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = s.GetUserByToken(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	events, derived, users := testPaths(t)
	logger := internal.NewZapLogger(zap.NewNop().Sugar())
	ctx := context.Background()

	s, err := NewFileStorage(events, derived, users, logger)
	require.NoError(t, err)
	require.NoError(t, s.SaveEvent(ctx, event("u1", 1)))
	require.NoError(t, s.UpsertAchievement(ctx, &internal.Achievement{
		ID: "a1", UserID: "u1",
		Type: internal.AchievementConsistency, Category: "workout",
		CurrentStreak: 3, Status: internal.AchievementActive,
	}))
	require.NoError(t, s.SaveFocus(ctx, &internal.LifestyleFocus{
		ID: "f1", UserID: "u1", FocusType: "alcohol_free", Status: internal.FocusActive,
	}))
	require.NoError(t, s.UpsertPattern(ctx, &internal.InferredPattern{
		UserID: "u1", PatternType: "alcohol_free", DetectionCount: 3, Confidence: 0.8,
	}))
	require.NoError(t, s.Close())

	reopened, err := NewFileStorage(events, derived, users, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	evts, err := reopened.ListEvents(ctx, "u1", base.AddDate(0, 0, -30), base)
	require.NoError(t, err)
	assert.Len(t, evts, 1)

	a, err := reopened.GetAchievement(ctx, internal.AchievementKey{
		UserID: "u1", Type: internal.AchievementConsistency, Category: "workout",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)

	f, err := reopened.GetFocus(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, internal.FocusActive, f.Status)

	p, err := reopened.GetPattern(ctx, "u1", "alcohol_free")
	require.NoError(t, err)
	assert.Equal(t, 3, p.DetectionCount)
}
