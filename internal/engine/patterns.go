package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

// patternSignature is one behavioral signature the inference engine watches
// for. Confidence is min(base + matches*increment, cap).
type patternSignature struct {
	patternType string
	match       func(*internal.TimelineEvent) bool
	base        float64
	increment   float64
	cap         float64
}

const requiredSignatureMatches = 3

var patternSignatures = []patternSignature{
	{
		patternType: "alcohol_free",
		match: func(ev *internal.TimelineEvent) bool {
			if ev.Tags.AlcoholFree {
				return true
			}
			return ev.EventType == internal.EventNote && containsAnyFold(ev.Description, []string{"no alcohol", "alcohol-free"})
		},
		base:      0.5,
		increment: 0.1,
		cap:       0.95,
	},
	{
		patternType: "reduce_caffeine",
		match: func(ev *internal.TimelineEvent) bool {
			return ev.Tags.SkippedCaffeine
		},
		base:      0.4,
		increment: 0.1,
		cap:       0.9,
	},
	{
		patternType: "tea_substitution",
		match: func(ev *internal.TimelineEvent) bool {
			return ev.Tags.HerbalTea
		},
		base:      0.4,
		increment: 0.1,
		cap:       0.85,
	},
	{
		patternType: "early_sleep",
		match: func(ev *internal.TimelineEvent) bool {
			if ev.EventType != internal.EventNote {
				return false
			}
			return ev.Tags.EarlySleep || containsAnyFold(ev.Description, []string{"early night", "slept early", "in bed early"})
		},
		base:      0.4,
		increment: 0.05,
		cap:       0.85,
	},
	{
		patternType: "vegetable_meals",
		match: func(ev *internal.TimelineEvent) bool {
			if ev.EventType != internal.EventMeal {
				return false
			}
			return containsAnyFold(ev.Description, []string{"vegetable", "veggie", "salad"})
		},
		base:      0.35,
		increment: 0.05,
		cap:       0.8,
	},
	{
		patternType: "low_sugar",
		match: func(ev *internal.TimelineEvent) bool {
			return ev.EventType == internal.EventMeal && ev.Tags.LowSugar
		},
		base:      0.4,
		increment: 0.1,
		cap:       0.9,
	},
}

// RunPatternInference scans the trailing 10-day window for the fixed
// behavioral signatures and refreshes an InferredPattern for each signature
// with enough matches. It proposes focuses; it never creates one.
func (e *Engine) RunPatternInference(ctx context.Context, userID string) ([]internal.InferredPattern, error) {
	unlock := e.lockUser(userID)
	defer unlock()

	now := e.now()
	events, err := e.store.Events.ListEvents(ctx, userID, now.AddDate(0, 0, -inferenceWindowDays), now)
	if err != nil {
		return nil, fmt.Errorf("load events for user %s: %w", userID, err)
	}
	events = e.dropMalformed(events)

	var detected []internal.InferredPattern
	for _, sig := range patternSignatures {
		matches := 0
		for i := range events {
			if sig.match(&events[i]) {
				matches++
			}
		}
		if matches < requiredSignatureMatches {
			continue
		}

		p, err := e.refreshPattern(ctx, userID, sig, matches, now)
		if err != nil {
			e.logger.Errorf("pattern %s failed for user %s: %v", sig.patternType, userID, err)
			continue
		}
		detected = append(detected, *p)
	}
	return detected, nil
}

func (e *Engine) refreshPattern(ctx context.Context, userID string, sig patternSignature, matches int, now time.Time) (*internal.InferredPattern, error) {
	confidence := sig.base + float64(matches)*sig.increment
	if confidence > sig.cap {
		confidence = sig.cap
	}

	p := &internal.InferredPattern{
		UserID:         userID,
		PatternType:    sig.patternType,
		DetectionCount: matches,
		Confidence:     confidence,
		LastDetected:   now,
	}

	// A refresh must not erase what the confirmation UI already recorded.
	existing, err := e.store.Patterns.GetPattern(ctx, userID, sig.patternType)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		p.ConfirmationShown = existing.ConfirmationShown
		p.UserResponse = existing.UserResponse
	}

	if err := e.store.Patterns.UpsertPattern(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
