package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// notePhraseRule maps abstinence phrases in free-text notes to a lifestyle
// achievement category. New tracked behaviors are table rows, not code.
type notePhraseRule struct {
	category string
	phrases  []string
	insight  string
}

var notePhraseRules = []notePhraseRule{
	{
		category: "alcohol_free",
		phrases:  []string{"no alcohol", "alcohol-free"},
		insight:  "%d days alcohol-free and counting. Your notes show real commitment.",
	},
	{
		category: "caffeine_free",
		phrases:  []string{"no caffeine", "caffeine-free"},
		insight:  "%d days without caffeine. Steadier energy ahead.",
	},
	{
		category: "smoke_free",
		phrases:  []string{"no smoking", "smoke-free", "didn't smoke"},
		insight:  "%d days smoke-free. Every one of them counts.",
	},
}

const requiredNoteMatches = 3

// detectNoteLifestyle scans note events for sustained abstinence mentions and
// turns them into streak-tracked lifestyle achievements.
func (e *Engine) detectNoteLifestyle(ctx context.Context, userID string, events []internal.TimelineEvent, now time.Time, res *CalculationResult) error {
	notes := filterByType(events, internal.EventNote)
	if len(notes) == 0 {
		return nil
	}

	for _, rule := range notePhraseRules {
		var matched []internal.TimelineEvent
		for _, n := range notes {
			if containsAnyFold(n.Description, rule.phrases) {
				matched = append(matched, n)
			}
		}
		if len(matched) < requiredNoteMatches {
			continue
		}

		streak := CalculateStreak(eventTimes(matched))
		key := internal.AchievementKey{
			UserID:   userID,
			Type:     internal.AchievementLifestyle,
			Category: rule.category,
		}
		a, surfaced, err := e.upsertActive(ctx, key, streak, latestEventDate(matched), fmt.Sprintf(rule.insight, streak), now)
		if err != nil {
			return fmt.Errorf("note lifestyle %s: %w", rule.category, err)
		}
		e.recordAchievement(ctx, res, a, surfaced)
	}
	return nil
}

func containsAnyFold(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
