package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

func GetAchievements(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		achievements, err := app.Store().Achievements.ListAchievements(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch achievements")
			return
		}
		HandleSuccess(c, app.Logger(), achievements, nil)
	}
}

func GetAchievementProgress(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		progress, err := app.Store().Progress.ListProgress(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch progress")
			return
		}
		HandleSuccess(c, app.Logger(), progress, nil)
	}
}

func GetLifestyleAchievements(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		// The observation log is unbounded; serve the trailing 90 days.
		since := time.Now().AddDate(0, 0, -90)
		achievements, err := app.Store().Lifestyle.ListLifestyleAchievements(c.Request.Context(), user.ID, since)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch lifestyle achievements")
			return
		}
		HandleSuccess(c, app.Logger(), achievements, nil)
	}
}

// PostRecalculate triggers the full calculation suite on demand, the same
// passes a new event write runs.
func PostRecalculate(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)
		ctx := c.Request.Context()

		result, err := app.Engine().RunAchievementCalculation(ctx, user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Achievement calculation failed")
			return
		}

		meta := map[string]any{}
		if lifestyle, err := app.Engine().RunLifestyleCalculation(ctx, user.ID); err != nil {
			app.Logger().Errorf("lifestyle calculation failed for user %s: %v", user.ID, err)
		} else if len(lifestyle) > 0 {
			meta["lifestyle_achievements"] = lifestyle
		}
		if patterns, err := app.Engine().RunPatternInference(ctx, user.ID); err != nil {
			app.Logger().Errorf("pattern inference failed for user %s: %v", user.ID, err)
		} else if len(patterns) > 0 {
			meta["inferred_patterns"] = patterns
		}

		HandleSuccess(c, app.Logger(), result, meta)
	}
}
