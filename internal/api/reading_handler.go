package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/api/shared"
	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/service"
)

// SubmitTestRequest represents the request body for submitting a reading
// test. An empty answers list records a skip.
type SubmitTestRequest struct {
	ReadingTimeSeconds int             `json:"reading_time_seconds" validate:"min=0"`
	Answers            []AnswerPayload `json:"answers"              validate:"dive"`
}

// AnswerPayload is one submitted answer
type AnswerPayload struct {
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
	Answer     string    `json:"answer"      validate:"required"`
}

// ParagraphSessionResponse is a paragraph served for reading, with the
// current state of its question generation. Progress is absent for guest
// sessions.
type ParagraphSessionResponse struct {
	Paragraph       *domain.Paragraph      `json:"paragraph"`
	QuestionsStatus domain.GenerationState `json:"questions_status"`
	Progress        *domain.BookProgress   `json:"progress,omitempty"`
}

// QuestionStatusResponse is the polling payload for question generation.
// Questions are present only when the status is ready.
type QuestionStatusResponse struct {
	Status    domain.GenerationState `json:"status"`
	Questions []*domain.Question     `json:"questions,omitempty"`
}

// ProgressResponse reports a reader's position and averages in a book.
type ProgressResponse struct {
	Completed            int     `json:"completed_paragraphs"`
	Total                int     `json:"total_paragraphs"`
	Finished             bool    `json:"finished"`
	AverageWPM           float64 `json:"average_wpm"`
	AverageComprehension float64 `json:"average_comprehension"`
}

// ReadingHandler handles reading session HTTP requests
type ReadingHandler struct {
	readingService    *service.ReadingService
	submissionService *service.SubmissionService
	coordinator       *service.GenerationCoordinator
	userService       *service.UserService
	validator         *validator.Validate
}

// NewReadingHandler creates a new ReadingHandler
func NewReadingHandler(
	readingService *service.ReadingService,
	submissionService *service.SubmissionService,
	coordinator *service.GenerationCoordinator,
	userService *service.UserService,
) *ReadingHandler {
	return &ReadingHandler{
		readingService:    readingService,
		submissionService: submissionService,
		coordinator:       coordinator,
		userService:       userService,
		validator:         validator.New(),
	}
}

// NextParagraph handles GET /api/reading/books/{bookID}/next requests.
// Responds 204 when the book is finished.
func (h *ReadingHandler) NextParagraph(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}

	paragraph, state, progress, err := h.readingService.NextParagraph(r.Context(), userID, bookID)
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ParagraphSessionResponse{
		Paragraph:       paragraph,
		QuestionsStatus: state,
		Progress:        &progress,
	})
}

// GuestParagraph handles GET /api/reading/guest requests. No authentication;
// serves a random paragraph with no progress tracking.
func (h *ReadingHandler) GuestParagraph(w http.ResponseWriter, r *http.Request) {
	paragraph, state, err := h.readingService.GuestParagraph(r.Context())
	if err != nil {
		status := MapErrorToStatusCode(err)
		if status == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ParagraphSessionResponse{
		Paragraph:       paragraph,
		QuestionsStatus: state,
	})
}

// QuestionStatus handles GET /api/reading/paragraphs/{paragraphID}/questions
// requests: the polling side of the generation contract.
func (h *ReadingHandler) QuestionStatus(w http.ResponseWriter, r *http.Request) {
	paragraphID, ok := parseUUIDParam(w, r, "paragraphID")
	if !ok {
		return
	}

	state, questions, err := h.coordinator.GetStatus(r.Context(), paragraphID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, QuestionStatusResponse{
		Status:    state,
		Questions: questions,
	})
}

// EnsureQuestions handles POST /api/reading/paragraphs/{paragraphID}/questions
// requests. Starts generation if it is not already underway; the retry path
// after a failed state.
func (h *ReadingHandler) EnsureQuestions(w http.ResponseWriter, r *http.Request) {
	paragraphID, ok := parseUUIDParam(w, r, "paragraphID")
	if !ok {
		return
	}

	state, err := h.coordinator.EnsureGeneration(r.Context(), paragraphID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, QuestionStatusResponse{Status: state})
}

// SubmitTest handles POST /api/reading/paragraphs/{paragraphID}/submit
// requests.
func (h *ReadingHandler) SubmitTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	paragraphID, ok := parseUUIDParam(w, r, "paragraphID")
	if !ok {
		return
	}

	var req SubmitTestRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	answers := make([]service.SubmittedAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, service.SubmittedAnswer{
			QuestionID: a.QuestionID,
			Answer:     a.Answer,
		})
	}

	result, err := h.submissionService.SubmitTest(r.Context(), userID, paragraphID, req.ReadingTimeSeconds, answers)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, result)
}

// Progress handles GET /api/reading/books/{bookID}/progress requests
func (h *ReadingHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}

	progress, stats, err := h.readingService.Progress(r.Context(), userID, bookID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProgressResponse{
		Completed:            progress.Completed,
		Total:                progress.Total,
		Finished:             progress.Finished(),
		AverageWPM:           stats.AverageWPM,
		AverageComprehension: stats.AverageComprehension,
	})
}

// ResetBook handles DELETE /api/reading/books/{bookID}/history requests
func (h *ReadingHandler) ResetBook(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	bookID, ok := parseUUIDParam(w, r, "bookID")
	if !ok {
		return
	}

	if err := h.readingService.ResetBook(r.Context(), userID, bookID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListResults handles GET /api/reading/results requests
func (h *ReadingHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	limit, offset := parsePagination(r, 50)

	results, err := h.submissionService.ListResults(r.Context(), userID, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, results)
}

// resultDetailResponse is a result joined with its graded answers.
type resultDetailResponse struct {
	Result  *domain.TestResult      `json:"result"`
	Answers []*service.GradedAnswer `json:"answers"`
}

// GetResult handles GET /api/reading/results/{resultID} requests
func (h *ReadingHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	resultID, ok := parseUUIDParam(w, r, "resultID")
	if !ok {
		return
	}

	result, answers, err := h.submissionService.GetResult(r.Context(), user, resultID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resultDetailResponse{
		Result:  result,
		Answers: answers,
	})
}

// DeleteResult handles DELETE /api/reading/results/{resultID} requests
func (h *ReadingHandler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requester(w, r)
	if !ok {
		return
	}
	resultID, ok := parseUUIDParam(w, r, "resultID")
	if !ok {
		return
	}

	if err := h.submissionService.DeleteResult(r.Context(), user, resultID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requester loads the authenticated account for ownership checks.
func (h *ReadingHandler) requester(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
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
