package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/service"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

func PostFocus(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var req service.FocusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid request: focus_type required")
			return
		}
		if err := service.ValidateFocusRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Focus validation failed")
			return
		}

		focus, err := service.CreateFocus(c.Request.Context(), app.Store().Focuses, user, &req)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to save focus")
			return
		}
		HandleSuccess(c, app.Logger(), focus, nil)
	}
}

func GetFocuses(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		focuses, err := app.Store().Focuses.ListFocuses(c.Request.Context(), user.ID,
			internal.FocusActive, internal.FocusUserDeclared)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch focuses")
			return
		}
		HandleSuccess(c, app.Logger(), focuses, nil)
	}
}

func DeleteFocus(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		err := service.RemoveFocus(c.Request.Context(), app.Store().Focuses, user, c.Param("id"))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			HandleError(c, app.Logger(), err, 404, "Focus not found")
		case errors.Is(err, service.ErrForbidden):
			HandleError(c, app.Logger(), err, 404, "Focus not found")
		case err != nil:
			HandleError(c, app.Logger(), err, 500, "Failed to remove focus")
		default:
			HandleSuccess(c, app.Logger(), nil, map[string]any{"removed": true})
		}
	}
}

func GetPatterns(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		patterns, err := app.Store().Patterns.ListPatterns(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch patterns")
			return
		}
		HandleSuccess(c, app.Logger(), patterns, nil)
	}
}

// PostPatternResponse records an accept/dismiss answer for a proposed
// pattern; accepting creates the lifestyle focus.
func PostPatternResponse(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var req service.PatternResponseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid request: response required")
			return
		}
		if err := service.ValidatePatternResponseRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Pattern response validation failed")
			return
		}

		focus, err := service.RespondToPattern(c.Request.Context(), app.Store().Patterns, app.Store().Focuses, user, c.Param("type"), &req)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			HandleError(c, app.Logger(), err, 404, "Pattern not found")
		case err != nil:
			HandleError(c, app.Logger(), err, 500, "Failed to record pattern response")
		default:
			HandleSuccess(c, app.Logger(), focus, map[string]any{"response": req.Response})
		}
	}
}
