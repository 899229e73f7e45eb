package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookshelf/internal/shelf"
)

type PreferencesController struct {
	shelf *shelf.Controller
}

func NewPreferencesController(shelfController *shelf.Controller) *PreferencesController {
	return &PreferencesController{
		shelf: shelfController,
	}
}

func (controller *PreferencesController) GetPreferences(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, controller.shelf.Preferences())
}

// preferencesUpdate carries a partial preferences edit; absent fields stay
// untouched.
type preferencesUpdate struct {
	ThemeID   *string `json:"theme"`
	ShelfName *string `json:"shelfName"`
}

func (controller *PreferencesController) UpdatePreferences(c *gin.Context) {
	var update preferencesUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if update.ThemeID != nil {
		if err := controller.shelf.SetThemeID(*update.ThemeID); err != nil {
			writeShelfError(c, err)
			return
		}
	}
	if update.ShelfName != nil {
		if err := controller.shelf.SetShelfName(*update.ShelfName); err != nil {
			writeShelfError(c, err)
			return
		}
	}

	c.IndentedJSON(http.StatusOK, controller.shelf.Preferences())
}
