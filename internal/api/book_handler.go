package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mquint/readflow-api/internal/api/shared"
	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/service"
)

// UpdateParagraphRequest represents the request body for editing a paragraph
type UpdateParagraphRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

// BookHandler handles book and paragraph HTTP requests
type BookHandler struct {
	bookService *service.BookService
	userService *service.UserService
	maxUpload   int64
	validator   *validator.Validate
}

// NewBookHandler creates a new BookHandler. maxUpload caps the accepted
// upload size in bytes.
func NewBookHandler(bookService *service.BookService, userService *service.UserService, maxUpload int64) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		userService: userService,
		maxUpload:   maxUpload,
		validator:   validator.New(),
	}
}

// requester loads the authenticated account for ownership checks.
func (h *BookHandler) requester(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return nil, false
	}
	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return nil, false
	}
	return user, true
}

// UploadBook handles POST /api/books requests. The document arrives as the
// "file" part of a multipart form, optionally accompanied by "title" and
// "author" fields.
func (h *BookHandler) UploadBook(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	book, err := h.bookService.UploadBook(
		r.Context(),
		user,
		header.Filename,
		r.FormValue("title"),
		r.FormValue("author"),
		data,
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, book)
}

// ListBooks handles GET /api/books requests
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50)

	books, err := h.bookService.ListBooks(r.Context(), limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, books)
}

// GetBook handles GET /api/books/{bookID} requests
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}

	book, err := h.bookService.GetBook(r.Context(), bookID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, book)
}

// DeleteBook handles DELETE /api/books/{bookID} requests
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}

	if err := h.bookService.DeleteBook(r.Context(), user, bookID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListParagraphs handles GET /api/books/{bookID}/paragraphs requests
func (h *BookHandler) ListParagraphs(w http.ResponseWriter, r *http.Request) {
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}
	limit, offset := parsePagination(r, 100)

	paragraphs, err := h.bookService.ListParagraphs(r.Context(), bookID, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, paragraphs)
}

// GetParagraph handles GET /api/paragraphs/{paragraphID} requests
func (h *BookHandler) GetParagraph(w http.ResponseWriter, r *http.Request) {
	paragraphID, ok := parseUUIDParam(w, r, "paragraphID")
	if !ok {
		return
	}

	paragraph, err := h.bookService.GetParagraph(r.Context(), paragraphID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, paragraph)
}

// UpdateParagraph handles PUT /api/paragraphs/{paragraphID} requests
func (h *BookHandler) UpdateParagraph(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	paragraphID, ok := parseUUIDParam(w, r, "paragraphID")
	if !ok {
		return
	}

	var req UpdateParagraphRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	paragraph, err := h.bookService.UpdateParagraph(r.Context(), user, paragraphID, req.Content)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, paragraph)
}

// DeleteParagraph handles DELETE /api/paragraphs/{paragraphID} requests
func (h *BookHandler) DeleteParagraph(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	paragraphID, ok := parseUUIDParam(w, r, "paragraphID")
	if !ok {
		return
	}

	if err := h.bookService.DeleteParagraph(r.Context(), user, paragraphID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
