package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookshelf/internal/search"
	"bookshelf/internal/shelf"
)

// searchResult is a search.Result plus the shelf membership flag the UI
// renders as "already on shelf".
type searchResult struct {
	search.Result
	OnShelf bool `json:"onShelf"`
}

type SearchController struct {
	aggregator *search.Aggregator
	shelf      *shelf.Controller
}

func NewSearchController(aggregator *search.Aggregator, shelfController *shelf.Controller) *SearchController {
	return &SearchController{
		aggregator: aggregator,
		shelf:      shelfController,
	}
}

// Search serves the suggestion list. The default path is instant local-only
// ranking; the remote catalog is consulted only when the caller asks for it
// with scope=online, with local duplicates filtered out of its results.
func (controller *SearchController) Search(c *gin.Context) {
	query := c.Query("q")

	local := controller.aggregator.Local(query)
	var remote []search.Result
	if c.Query("scope") == "online" {
		remote = controller.aggregator.Remote(c.Request.Context(), query)
	}

	merged := controller.aggregator.Aggregate(local, remote)
	books := controller.shelf.Books()

	results := make([]searchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, searchResult{
			Result:  r,
			OnShelf: search.OnShelf(r.Key, books),
		})
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
