package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookshelf/internal/covers"
	"bookshelf/internal/shelf"
)

// CoversController serves cover images through the local disk cache instead
// of letting the browser hotlink the catalog's image CDN.
type CoversController struct {
	cache *covers.Cache
	shelf *shelf.Controller
}

func NewCoversController(cache *covers.Cache, shelfController *shelf.Controller) *CoversController {
	return &CoversController{
		cache: cache,
		shelf: shelfController,
	}
}

func (controller *CoversController) GetCover(c *gin.Context) {
	book, err := controller.shelf.Book(c.Param("id"))
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	if book.CoverURL == "" {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book has no cover"})
		return
	}

	path, err := controller.cache.GetCover(book.ID, book.CoverURL)
	if err != nil {
		c.IndentedJSON(http.StatusBadGateway, gin.H{"error": "cover fetch failed"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}
