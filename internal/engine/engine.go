package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/notify"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

const (
	consistencyWindowDays   = 30
	reductionWindowDays     = 7
	lifestyleWindowDays     = 14
	inferenceWindowDays     = 10
	staleAfterDays          = 7
	requiredConsistencyDays = 3
)

// Engine is the pattern and achievement detection engine. It is a stateless
// batch computation over one user's recent events and derived records;
// calculations for the same user are serialized through a per-user lock so a
// synchronous trigger and a scheduled pass cannot interleave their
// lookup-then-write sequences.
type Engine struct {
	store  *storage.Repositories
	sink   notify.Sink
	logger internal.Logger
	now    func() time.Time
	locks  sync.Map // userID -> *sync.Mutex
}

func New(store *storage.Repositories, sink notify.Sink, logger internal.Logger) *Engine {
	return &Engine{
		store:  store,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// CalculationResult is what an achievement pass hands back to the caller:
// achievements created or re-activated by this pass, and the current
// near-miss progress rows.
type CalculationResult struct {
	NewAchievements []internal.Achievement         `json:"new_achievements"`
	Progress        []internal.AchievementProgress `json:"progress"`
}

func (e *Engine) lockUser(userID string) func() {
	v, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// RunAchievementCalculation runs the gate-selected detector families over the
// user's trailing event window, then the expiration sweeper. A failing
// detector is logged and skipped; the sweeper always runs.
func (e *Engine) RunAchievementCalculation(ctx context.Context, userID string) (*CalculationResult, error) {
	unlock := e.lockUser(userID)
	defer unlock()

	now := e.now()
	settings, err := e.store.Settings.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings for user %s: %w", userID, err)
	}
	events, err := e.store.Events.ListEvents(ctx, userID, now.AddDate(0, 0, -consistencyWindowDays), now)
	if err != nil {
		return nil, fmt.Errorf("load events for user %s: %w", userID, err)
	}
	events = e.dropMalformed(events)

	res := &CalculationResult{}
	for _, fam := range familiesForLevel(settings.ComplexityLevel) {
		err := e.runIsolated(func() error {
			switch fam {
			case familyConsistency:
				return e.detectConsistency(ctx, userID, events, now, res)
			case familyReduction:
				return e.detectReduction(ctx, userID, events, now, res)
			case familyCorrelation:
				return e.detectCorrelation(ctx, userID, events, now, res)
			case familyNotes:
				return e.detectNoteLifestyle(ctx, userID, events, now, res)
			}
			return nil
		})
		if err != nil {
			e.logger.Errorf("detector %s failed for user %s: %v", fam, userID, err)
		}
	}

	if err := e.runIsolated(func() error { return e.expireStale(ctx, userID, now) }); err != nil {
		e.logger.Errorf("expiration sweep failed for user %s: %v", userID, err)
	}

	return res, nil
}

// runIsolated converts a detector panic into an error so one misbehaving
// family cannot abort the rest of the pass.
func (e *Engine) runIsolated(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return fn()
}

// dropMalformed skips events without a type or date rather than aborting a
// detector on them.
func (e *Engine) dropMalformed(events []internal.TimelineEvent) []internal.TimelineEvent {
	out := events[:0]
	for _, ev := range events {
		if ev.EventType == "" || ev.EventDate.IsZero() {
			e.logger.Warnf("skipping malformed event %s (missing type or date)", ev.ID)
			continue
		}
		out = append(out, ev)
	}
	return out
}

// upsertActive writes the single achievement row for key, setting it active
// and preserving identity fields across updates. It reports whether the row is
// newly surfaced: created, re-activated after expiry, or grown in streak.
func (e *Engine) upsertActive(ctx context.Context, key internal.AchievementKey, streak int, lastEvent time.Time, insight string, now time.Time) (*internal.Achievement, bool, error) {
	existing, err := e.store.Achievements.GetAchievement(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	startDate := dateOf(lastEvent)
	if streak > 1 {
		startDate = startDate.AddDate(0, 0, -(streak - 1))
	}

	a := &internal.Achievement{
		UserID:        key.UserID,
		Type:          key.Type,
		Category:      key.Category,
		StartDate:     startDate,
		CurrentStreak: streak,
		LastEventDate: lastEvent,
		InsightText:   insight,
		Status:        internal.AchievementActive,
		UpdatedAt:     now,
	}

	surfaced := false
	switch {
	case existing == nil:
		a.ID = uuid.NewString()
		a.CreatedAt = now
		surfaced = true
	case existing.Status == internal.AchievementExpired:
		// Re-detected after going stale: same row, fresh run.
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		surfaced = true
	default:
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.StartDate = existing.StartDate
		surfaced = streak > existing.CurrentStreak
	}

	if err := e.store.Achievements.UpsertAchievement(ctx, a); err != nil {
		return nil, false, err
	}
	// The key has graduated; its near-miss row must not linger.
	if err := e.store.Progress.DeleteProgress(ctx, key); err != nil {
		e.logger.Warnf("failed to clear progress for %v: %v", key, err)
	}
	return a, surfaced, nil
}

func (e *Engine) recordAchievement(ctx context.Context, res *CalculationResult, a *internal.Achievement, surfaced bool) {
	if !surfaced {
		return
	}
	res.NewAchievements = append(res.NewAchievements, *a)
	e.sink.Notify(ctx, a.UserID, notify.Notification{
		Type:    string(a.Type),
		Message: a.InsightText,
	})
}

func (e *Engine) emitProgress(ctx context.Context, res *CalculationResult, p *internal.AchievementProgress) error {
	if err := e.store.Progress.UpsertProgress(ctx, p); err != nil {
		return err
	}
	res.Progress = append(res.Progress, *p)
	return nil
}

// filterByType returns events of one type, preserving date-descending order.
func filterByType(events []internal.TimelineEvent, t internal.EventType) []internal.TimelineEvent {
	var out []internal.TimelineEvent
	for _, ev := range events {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

func eventTimes(events []internal.TimelineEvent) []time.Time {
	out := make([]time.Time, len(events))
	for i, ev := range events {
		out[i] = ev.EventDate
	}
	return out
}

// latestEventDate assumes date-descending input and returns the newest date.
func latestEventDate(events []internal.TimelineEvent) time.Time {
	if len(events) == 0 {
		return time.Time{}
	}
	return events[0].EventDate
}
