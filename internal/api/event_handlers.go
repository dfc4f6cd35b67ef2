package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/service"
)

// PostEvent writes a health event, then runs the calculation passes for the
// user synchronously, so the response carries any freshly unlocked records.
func PostEvent(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var req service.EventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		if err := service.ValidateEventRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Event validation failed")
			return
		}

		event, err := service.CreateEvent(c.Request.Context(), app.Store().Events, user, &req)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to save event")
			return
		}

		meta := map[string]any{}
		ctx := c.Request.Context()
		if result, err := app.Engine().RunAchievementCalculation(ctx, user.ID); err != nil {
			app.Logger().Errorf("achievement calculation failed for user %s: %v", user.ID, err)
		} else {
			meta["new_achievements"] = result.NewAchievements
			meta["progress"] = result.Progress
		}
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

		HandleSuccess(c, app.Logger(), event, meta)
	}
}

func GetEvents(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		days := 30
		if raw := c.Query("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 365 {
				HandleError(c, app.Logger(), internal.NewAppError(400, "days must be 1-365"), 400, "Invalid query")
				return
			}
			days = parsed
		}

		now := time.Now()
		events, err := app.Store().Events.ListEvents(c.Request.Context(), user.ID, now.AddDate(0, 0, -days), now)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch events")
			return
		}

		HandleSuccess(c, app.Logger(), events, map[string]any{"days": days})
	}
}
