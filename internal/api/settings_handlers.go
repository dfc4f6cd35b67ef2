package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

type complexityRequest struct {
	ComplexityLevel int `json:"complexity_level" binding:"required,gte=1,lte=4"`
}

func GetComplexity(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		settings, err := app.Store().Settings.GetSettings(c.Request.Context(), user.ID)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch settings")
			return
		}
		HandleSuccess(c, app.Logger(), settings, nil)
	}
}

// PutComplexity moves the user's gate level; the next calculation pass picks
// up the wider (or narrower) detector set.
func PutComplexity(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*internal.User)

		var req complexityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "complexity_level must be 1-4")
			return
		}

		settings := &internal.UserSettings{UserID: user.ID, ComplexityLevel: req.ComplexityLevel}
		if err := app.Store().Settings.PutSettings(c.Request.Context(), settings); err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to save settings")
			return
		}
		HandleSuccess(c, app.Logger(), settings, nil)
	}
}
