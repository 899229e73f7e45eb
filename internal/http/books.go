package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookshelf/internal/covers"
	"bookshelf/internal/entities"
	"bookshelf/internal/shelf"
)

type BooksController struct {
	shelf  *shelf.Controller
	covers *covers.Cache
}

// NewBooksController creates the book CRUD controller. coverCache may be nil
// when cover caching is disabled.
func NewBooksController(shelfController *shelf.Controller, coverCache *covers.Cache) *BooksController {
	return &BooksController{
		shelf:  shelfController,
		covers: coverCache,
	}
}

func (controller *BooksController) GetAllBooks(c *gin.Context) {
	books := controller.shelf.Books()
	c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

func (controller *BooksController) GetBook(c *gin.Context) {
	book, err := controller.shelf.Book(c.Param("id"))
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

func (controller *BooksController) AddBook(c *gin.Context) {
	var item shelf.AddItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if item.Title == "" {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	book, err := controller.shelf.AddBook(item)
	if err != nil {
		writeShelfError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, book)
}

func (controller *BooksController) UpdateBook(c *gin.Context) {
	var update entities.BookUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	book, err := controller.shelf.UpdateBook(c.Param("id"), update)
	if err != nil {
		writeShelfError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

func (controller *BooksController) DeleteBook(c *gin.Context) {
	id := c.Param("id")
	if err := controller.shelf.RemoveBook(id); err != nil {
		writeShelfError(c, err)
		return
	}

	// The cached cover has no owner left; drop it.
	if controller.covers != nil {
		if err := controller.covers.InvalidateCover(id); err != nil {
			log.Printf("Failed to invalidate cover cache for %s: %v", id, err)
		}
	}
	c.Status(http.StatusNoContent)
}

// writeShelfError maps controller errors onto HTTP statuses: not-ready means
// the collection is still loading, not a client mistake.
func writeShelfError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, shelf.ErrNotReady):
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"error": "collection is loading"})
	case errors.Is(err, shelf.ErrNotFound):
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": "book not found"})
	default:
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
