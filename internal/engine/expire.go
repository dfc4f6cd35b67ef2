package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// expireStale demotes achievements whose supporting activity is more than
// seven days old. The transition is one-way: re-activation only happens when a
// detector re-qualifies the pattern and upserts the row active again.
func (e *Engine) expireStale(ctx context.Context, userID string, now time.Time) error {
	achievements, err := e.store.Achievements.ListAchievements(ctx, userID)
	if err != nil {
		return fmt.Errorf("list achievements: %w", err)
	}

	cutoff := now.AddDate(0, 0, -staleAfterDays)
	for i := range achievements {
		a := &achievements[i]
		if a.Status == internal.AchievementExpired {
			continue
		}
		if !a.LastEventDate.Before(cutoff) {
			continue
		}
		a.Status = internal.AchievementExpired
		a.UpdatedAt = now
		if err := e.store.Achievements.UpsertAchievement(ctx, a); err != nil {
			return fmt.Errorf("expire %s/%s: %w", a.Type, a.Category, err)
		}
		e.logger.Infof("expired achievement %s/%s for user %s (last event %s)",
			a.Type, a.Category, userID, a.LastEventDate.Format("2006-01-02"))
	}
	return nil
}
