package api

import (
	"net/http"

	"github.com/mquint/readflow-api/internal/api/shared"
	"github.com/mquint/readflow-api/internal/service"
)

// BookshelfHandler handles bookshelf HTTP requests
type BookshelfHandler struct {
	bookshelfService *service.BookshelfService
}

// NewBookshelfHandler creates a new BookshelfHandler
func NewBookshelfHandler(bookshelfService *service.BookshelfService) *BookshelfHandler {
	return &BookshelfHandler{bookshelfService: bookshelfService}
}

// Shelf handles GET /api/bookshelf requests
func (h *BookshelfHandler) Shelf(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.bookshelfService.Shelf(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, items)
}

// Remove handles DELETE /api/bookshelf/{bookID} requests
func (h *BookshelfHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}

	if err := h.bookshelfService.Remove(r.Context(), userID, bookID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
