package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mquint/readflow-api/internal/api/shared"
	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/service"
	"github.com/mquint/readflow-api/internal/service/auth"
	"github.com/mquint/readflow-api/internal/store"
	"github.com/mquint/readflow-api/internal/task"
)

// The handlers hold concrete services, so these tests stub the store layer
// and drive real service instances through httptest.

type stubTxRunner struct{}

func (s *stubTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}

type stubBookStore struct {
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.Book, error)
}

func (s *stubBookStore) Create(ctx context.Context, book *domain.Book) error { return nil }
func (s *stubBookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return nil, store.ErrBookNotFound
}
func (s *stubBookStore) List(ctx context.Context, limit, offset int) ([]*domain.Book, error) {
	return nil, nil
}
func (s *stubBookStore) UpdateTotalParagraphs(ctx context.Context, id uuid.UUID, total int) error {
	return nil
}
func (s *stubBookStore) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubBookStore) WithTx(tx *sql.Tx) store.BookStore              { return s }

type stubParagraphStore struct {
	GetByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error)
	NextUnreadFn func(ctx context.Context, bookID, userID uuid.UUID) (*domain.Paragraph, error)
	RandomFn     func(ctx context.Context) (*domain.Paragraph, error)
}

func (s *stubParagraphStore) CreateBatch(ctx context.Context, paragraphs []*domain.Paragraph) error {
	return nil
}
func (s *stubParagraphStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return nil, store.ErrParagraphNotFound
}
func (s *stubParagraphStore) ListByBook(ctx context.Context, bookID uuid.UUID, limit, offset int) ([]*domain.Paragraph, error) {
	return nil, nil
}
func (s *stubParagraphStore) CountByBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	return 0, nil
}
func (s *stubParagraphStore) NextUnread(ctx context.Context, bookID, userID uuid.UUID) (*domain.Paragraph, error) {
	if s.NextUnreadFn != nil {
		return s.NextUnreadFn(ctx, bookID, userID)
	}
	return nil, store.ErrParagraphNotFound
}
func (s *stubParagraphStore) Random(ctx context.Context) (*domain.Paragraph, error) {
	if s.RandomFn != nil {
		return s.RandomFn(ctx)
	}
	return nil, store.ErrParagraphNotFound
}
func (s *stubParagraphStore) Update(ctx context.Context, paragraph *domain.Paragraph) error {
	return nil
}
func (s *stubParagraphStore) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubParagraphStore) WithTx(tx *sql.Tx) store.ParagraphStore         { return s }

type stubProgressStore struct {
	CompletedCountFn func(ctx context.Context, userID, bookID uuid.UUID) (int, error)
}

func (s *stubProgressStore) MarkCompleted(ctx context.Context, progress *domain.ReadingProgress) error {
	return nil
}
func (s *stubProgressStore) CompletedCount(ctx context.Context, userID, bookID uuid.UUID) (int, error) {
	if s.CompletedCountFn != nil {
		return s.CompletedCountFn(ctx, userID, bookID)
	}
	return 0, nil
}
func (s *stubProgressStore) DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error {
	return nil
}
func (s *stubProgressStore) WithTx(tx *sql.Tx) store.ProgressStore { return s }

type stubResultStore struct {
	CreateFn func(ctx context.Context, result *domain.TestResult, answers []*domain.AnswerRecord) error
}

func (s *stubResultStore) Create(ctx context.Context, result *domain.TestResult, answers []*domain.AnswerRecord) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, result, answers)
	}
	return nil
}
func (s *stubResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TestResult, error) {
	return nil, store.ErrResultNotFound
}
func (s *stubResultStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TestResult, error) {
	return nil, nil
}
func (s *stubResultStore) ListAnswers(ctx context.Context, resultID uuid.UUID) ([]*domain.AnswerRecord, error) {
	return nil, nil
}
func (s *stubResultStore) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubResultStore) DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error {
	return nil
}
func (s *stubResultStore) AverageStats(ctx context.Context, userID, bookID uuid.UUID) (float64, float64, error) {
	return 0, 0, nil
}
func (s *stubResultStore) WithTx(tx *sql.Tx) store.ResultStore { return s }

type stubBookshelfStore struct{}

func (s *stubBookshelfStore) Upsert(ctx context.Context, entry *domain.BookshelfEntry) error {
	return nil
}
func (s *stubBookshelfStore) List(ctx context.Context, userID uuid.UUID) ([]*domain.BookshelfEntry, error) {
	return nil, nil
}
func (s *stubBookshelfStore) Delete(ctx context.Context, userID, bookID uuid.UUID) error {
	return nil
}
func (s *stubBookshelfStore) WithTx(tx *sql.Tx) store.BookshelfStore { return s }

type stubQuestionStore struct {
	ListByParagraphFn func(ctx context.Context, paragraphID uuid.UUID) ([]*domain.Question, error)
}

func (s *stubQuestionStore) CreateBatch(ctx context.Context, questions []*domain.Question) error {
	return nil
}
func (s *stubQuestionStore) ListByParagraph(ctx context.Context, paragraphID uuid.UUID) ([]*domain.Question, error) {
	if s.ListByParagraphFn != nil {
		return s.ListByParagraphFn(ctx, paragraphID)
	}
	return nil, nil
}
func (s *stubQuestionStore) CountByParagraph(ctx context.Context, paragraphID uuid.UUID) (int, error) {
	return 0, nil
}
func (s *stubQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore { return s }

type stubStatusStore struct {
	TryStartFn func(ctx context.Context, paragraphID uuid.UUID) (bool, error)
	GetFn      func(ctx context.Context, paragraphID uuid.UUID) (*domain.GenerationStatus, error)
}

func (s *stubStatusStore) TryStart(ctx context.Context, paragraphID uuid.UUID) (bool, error) {
	if s.TryStartFn != nil {
		return s.TryStartFn(ctx, paragraphID)
	}
	return false, nil
}
func (s *stubStatusStore) Get(ctx context.Context, paragraphID uuid.UUID) (*domain.GenerationStatus, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, paragraphID)
	}
	return nil, store.ErrNotFound
}
func (s *stubStatusStore) MarkReady(ctx context.Context, paragraphID uuid.UUID) error  { return nil }
func (s *stubStatusStore) MarkFailed(ctx context.Context, paragraphID uuid.UUID) error { return nil }
func (s *stubStatusStore) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}
func (s *stubStatusStore) WithTx(tx *sql.Tx) store.GenerationStatusStore { return s }

type stubTaskRunner struct{}

func (s *stubTaskRunner) Submit(ctx context.Context, t task.Task) error { return nil }

type stubUserStore struct {
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

func (s *stubUserStore) Create(ctx context.Context, user *domain.User) error { return nil }
func (s *stubUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return nil, store.ErrUserNotFound
}
func (s *stubUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return nil, store.ErrUserNotFound
}

type stubPasswords struct{}

func (s *stubPasswords) Hash(password string) (string, error)  { return password, nil }
func (s *stubPasswords) Compare(hashed, password string) error { return nil }

type stubJWT struct{}

func (s *stubJWT) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return "token", nil
}
func (s *stubJWT) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}

// readingHandlerFixture assembles a ReadingHandler over real services backed
// by the stub stores above.
type readingHandlerFixture struct {
	handler    *ReadingHandler
	books      *stubBookStore
	paragraphs *stubParagraphStore
	progress   *stubProgressStore
	results    *stubResultStore
	questions  *stubQuestionStore
	statuses   *stubStatusStore
	users      *stubUserStore
}

func newReadingHandlerFixture(t *testing.T) *readingHandlerFixture {
	t.Helper()

	f := &readingHandlerFixture{
		books:      &stubBookStore{},
		paragraphs: &stubParagraphStore{},
		progress:   &stubProgressStore{},
		results:    &stubResultStore{},
		questions:  &stubQuestionStore{},
		statuses:   &stubStatusStore{},
		users:      &stubUserStore{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coordinator, err := service.NewGenerationCoordinator(service.GenerationCoordinatorConfig{
		TxRunner:   &stubTxRunner{},
		Statuses:   f.statuses,
		Questions:  f.questions,
		Paragraphs: f.paragraphs,
		TaskRunner: &stubTaskRunner{},
	}, logger)
	require.NoError(t, err)

	readingService := service.NewReadingService(
		&stubTxRunner{},
		f.books,
		f.paragraphs,
		f.progress,
		f.results,
		&stubBookshelfStore{},
		coordinator,
		logger,
	)
	submissionService := service.NewSubmissionService(
		&stubTxRunner{},
		f.results,
		f.questions,
		f.paragraphs,
		f.progress,
		&stubBookshelfStore{},
		logger,
	)
	userService := service.NewUserService(f.users, &stubPasswords{}, &stubJWT{}, logger)

	f.handler = NewReadingHandler(readingService, submissionService, coordinator, userService)
	return f
}

// newHandlerRequest builds a request carrying chi URL parameters and,
// unless userID is uuid.Nil, an authenticated user in the context.
func newHandlerRequest(method, target string, body []byte, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for name, value := range params {
		rctx.URLParams.Add(name, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != uuid.Nil {
		ctx = context.WithValue(ctx, shared.UserIDContextKey, userID)
	}
	return req.WithContext(ctx)
}

func handlerQuestionSet(t *testing.T, paragraphID uuid.UUID) []*domain.Question {
	t.Helper()

	set := make([]*domain.Question, 0, domain.QuestionsPerParagraph)
	for i := 0; i < domain.QuestionsPerParagraph; i++ {
		q, err := domain.NewQuestion(paragraphID, "What happened?",
			"One", "Two", "Three", "Four", "B")
		require.NoError(t, err)
		set = append(set, q)
	}
	return set
}

func TestReadingHandlerNextParagraph(t *testing.T) {
	userID := uuid.New()
	bookID := uuid.New()

	book := &domain.Book{
		ID:              bookID,
		Title:           "Walden",
		TotalParagraphs: 10,
		UploadedBy:      userID,
		CreatedAt:       time.Now().UTC(),
	}
	paragraph := &domain.Paragraph{
		ID:           uuid.New(),
		BookID:       bookID,
		OrdinalIndex: 5,
		Content:      "I went to the woods",
		WordCount:    900,
		CreatedAt:    time.Now().UTC(),
	}

	t.Run("serves_paragraph_with_progress", func(t *testing.T) {
		f := newReadingHandlerFixture(t)
		f.books.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
			return book, nil
		}
		f.progress.CompletedCountFn = func(ctx context.Context, uid, bid uuid.UUID) (int, error) {
			return 4, nil
		}
		f.paragraphs.NextUnreadFn = func(ctx context.Context, bid, uid uuid.UUID) (*domain.Paragraph, error) {
			return paragraph, nil
		}
		// Generation is already underway for this paragraph.
		f.paragraphs.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error) {
			return paragraph, nil
		}
		f.statuses.GetFn = func(ctx context.Context, id uuid.UUID) (*domain.GenerationStatus, error) {
			return &domain.GenerationStatus{
				ParagraphID: id,
				State:       domain.GenerationStateGenerating,
			}, nil
		}

		req := newHandlerRequest(http.MethodGet, "/api/reading/books/"+bookID.String()+"/next",
			nil, userID, map[string]string{"bookID": bookID.String()})
		w := httptest.NewRecorder()
		f.handler.NextParagraph(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		p, ok := resp["paragraph"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, paragraph.ID.String(), p["id"])
		assert.Equal(t, "generating", resp["questions_status"])

		progress, ok := resp["progress"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(4), progress["completed"])
		assert.Equal(t, float64(10), progress["total"])
	})

	t.Run("finished_book_responds_204", func(t *testing.T) {
		f := newReadingHandlerFixture(t)
		f.books.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
			return book, nil
		}
		f.progress.CompletedCountFn = func(ctx context.Context, uid, bid uuid.UUID) (int, error) {
			return book.TotalParagraphs, nil
		}
		// NextUnread defaults to ErrParagraphNotFound: every paragraph done.

		req := newHandlerRequest(http.MethodGet, "/api/reading/books/"+bookID.String()+"/next",
			nil, userID, map[string]string{"bookID": bookID.String()})
		w := httptest.NewRecorder()
		f.handler.NextParagraph(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})

	t.Run("unknown_book_responds_404", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		req := newHandlerRequest(http.MethodGet, "/api/reading/books/"+bookID.String()+"/next",
			nil, userID, map[string]string{"bookID": bookID.String()})
		w := httptest.NewRecorder()
		f.handler.NextParagraph(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid_book_id_responds_400", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		req := newHandlerRequest(http.MethodGet, "/api/reading/books/not-a-uuid/next",
			nil, userID, map[string]string{"bookID": "not-a-uuid"})
		w := httptest.NewRecorder()
		f.handler.NextParagraph(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing_auth_responds_401", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		req := newHandlerRequest(http.MethodGet, "/api/reading/books/"+bookID.String()+"/next",
			nil, uuid.Nil, map[string]string{"bookID": bookID.String()})
		w := httptest.NewRecorder()
		f.handler.NextParagraph(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestReadingHandlerQuestionStatus(t *testing.T) {
	paragraphID := uuid.New()
	target := "/api/reading/paragraphs/" + paragraphID.String() + "/questions"
	params := map[string]string{"paragraphID": paragraphID.String()}

	t.Run("generating_omits_questions", func(t *testing.T) {
		f := newReadingHandlerFixture(t)
		f.statuses.GetFn = func(ctx context.Context, id uuid.UUID) (*domain.GenerationStatus, error) {
			return &domain.GenerationStatus{
				ParagraphID: id,
				State:       domain.GenerationStateGenerating,
			}, nil
		}

		req := newHandlerRequest(http.MethodGet, target, nil, uuid.Nil, params)
		w := httptest.NewRecorder()
		f.handler.QuestionStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "generating", resp["status"])
		_, present := resp["questions"]
		assert.False(t, present, "questions must be absent until ready")
	})

	t.Run("ready_carries_full_set", func(t *testing.T) {
		f := newReadingHandlerFixture(t)
		set := handlerQuestionSet(t, paragraphID)
		f.statuses.GetFn = func(ctx context.Context, id uuid.UUID) (*domain.GenerationStatus, error) {
			return &domain.GenerationStatus{
				ParagraphID: id,
				State:       domain.GenerationStateReady,
			}, nil
		}
		f.questions.ListByParagraphFn = func(ctx context.Context, id uuid.UUID) ([]*domain.Question, error) {
			return set, nil
		}

		req := newHandlerRequest(http.MethodGet, target, nil, uuid.Nil, params)
		w := httptest.NewRecorder()
		f.handler.QuestionStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp["status"])

		questions, ok := resp["questions"].([]interface{})
		require.True(t, ok)
		require.Len(t, questions, domain.QuestionsPerParagraph)

		first, ok := questions[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "What happened?", first["question_text"])
		assert.Equal(t, "One", first["option_a"])
		// The answer key never travels in the quiz payload.
		_, leaked := first["correct_option"]
		assert.False(t, leaked)
	})

	t.Run("never_started_reports_not_started", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		req := newHandlerRequest(http.MethodGet, target, nil, uuid.Nil, params)
		w := httptest.NewRecorder()
		f.handler.QuestionStatus(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_started", resp["status"])
	})
}

func TestReadingHandlerSubmitTest(t *testing.T) {
	userID := uuid.New()
	paragraphID := uuid.New()
	target := "/api/reading/paragraphs/" + paragraphID.String() + "/submit"
	params := map[string]string{"paragraphID": paragraphID.String()}

	paragraph := &domain.Paragraph{
		ID:           paragraphID,
		BookID:       uuid.New(),
		OrdinalIndex: 1,
		Content:      "text under test",
		WordCount:    900,
		CreatedAt:    time.Now().UTC(),
	}

	submitBody := func(t *testing.T, set []*domain.Question, readingTime int) []byte {
		t.Helper()
		req := SubmitTestRequest{ReadingTimeSeconds: readingTime}
		for _, q := range set {
			req.Answers = append(req.Answers, AnswerPayload{
				QuestionID: q.ID,
				Answer:     q.CorrectOption,
			})
		}
		body, err := json.Marshal(req)
		require.NoError(t, err)
		return body
	}

	t.Run("grades_and_responds_201", func(t *testing.T) {
		f := newReadingHandlerFixture(t)
		set := handlerQuestionSet(t, paragraphID)
		f.paragraphs.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error) {
			return paragraph, nil
		}
		f.questions.ListByParagraphFn = func(ctx context.Context, id uuid.UUID) ([]*domain.Question, error) {
			return set, nil
		}

		req := newHandlerRequest(http.MethodPost, target, submitBody(t, set, 180), userID, params)
		w := httptest.NewRecorder()
		f.handler.SubmitTest(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(domain.QuestionsPerParagraph), resp["correct_count"])
		assert.Equal(t, float64(100), resp["comprehension_rate"])
		assert.Equal(t, float64(300), resp["words_per_minute"])
		assert.Equal(t, false, resp["skipped"])
	})

	t.Run("malformed_body_responds_400", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		req := newHandlerRequest(http.MethodPost, target, []byte(`{"answers": [`), userID, params)
		w := httptest.NewRecorder()
		f.handler.SubmitTest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp["error"], "Invalid request format")
	})

	t.Run("negative_reading_time_responds_400", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		body, err := json.Marshal(SubmitTestRequest{ReadingTimeSeconds: -5})
		require.NoError(t, err)

		req := newHandlerRequest(http.MethodPost, target, body, userID, params)
		w := httptest.NewRecorder()
		f.handler.SubmitTest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("answer_without_choice_responds_400", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		body, err := json.Marshal(SubmitTestRequest{
			ReadingTimeSeconds: 180,
			Answers:            []AnswerPayload{{QuestionID: uuid.New()}},
		})
		require.NoError(t, err)

		req := newHandlerRequest(http.MethodPost, target, body, userID, params)
		w := httptest.NewRecorder()
		f.handler.SubmitTest(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("questions_not_ready_responds_409", func(t *testing.T) {
		f := newReadingHandlerFixture(t)
		f.paragraphs.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error) {
			return paragraph, nil
		}
		// The question store defaults to an empty set.

		body, err := json.Marshal(SubmitTestRequest{
			ReadingTimeSeconds: 180,
			Answers:            []AnswerPayload{{QuestionID: uuid.New(), Answer: "A"}},
		})
		require.NoError(t, err)

		req := newHandlerRequest(http.MethodPost, target, body, userID, params)
		w := httptest.NewRecorder()
		f.handler.SubmitTest(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing_auth_responds_401", func(t *testing.T) {
		f := newReadingHandlerFixture(t)

		req := newHandlerRequest(http.MethodPost, target, []byte(`{}`), uuid.Nil, params)
		w := httptest.NewRecorder()
		f.handler.SubmitTest(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
