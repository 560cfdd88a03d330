package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/store"
	"github.com/mquint/readflow-api/internal/task"
)

// fakeTxRunner invokes the transaction function directly with a nil *sql.Tx.
// The store mocks return themselves from WithTx, so the services' tx-scoped
// calls land on the same mock.
type fakeTxRunner struct {
	err error
}

func (f *fakeTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	if f.err != nil {
		return f.err
	}
	return fn(ctx, nil)
}

// MockParagraphStore is a mock implementation of store.ParagraphStore
type MockParagraphStore struct {
	mock.Mock
}

func (m *MockParagraphStore) CreateBatch(ctx context.Context, paragraphs []*domain.Paragraph) error {
	args := m.Called(ctx, paragraphs)
	return args.Error(0)
}

func (m *MockParagraphStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paragraph, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Paragraph)
	return p, args.Error(1)
}

func (m *MockParagraphStore) ListByBook(ctx context.Context, bookID uuid.UUID, limit, offset int) ([]*domain.Paragraph, error) {
	args := m.Called(ctx, bookID, limit, offset)
	ps, _ := args.Get(0).([]*domain.Paragraph)
	return ps, args.Error(1)
}

func (m *MockParagraphStore) CountByBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	args := m.Called(ctx, bookID)
	return args.Int(0), args.Error(1)
}

func (m *MockParagraphStore) NextUnread(ctx context.Context, bookID, userID uuid.UUID) (*domain.Paragraph, error) {
	args := m.Called(ctx, bookID, userID)
	p, _ := args.Get(0).(*domain.Paragraph)
	return p, args.Error(1)
}

func (m *MockParagraphStore) Random(ctx context.Context) (*domain.Paragraph, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*domain.Paragraph)
	return p, args.Error(1)
}

func (m *MockParagraphStore) Update(ctx context.Context, paragraph *domain.Paragraph) error {
	args := m.Called(ctx, paragraph)
	return args.Error(0)
}

func (m *MockParagraphStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockParagraphStore) WithTx(tx *sql.Tx) store.ParagraphStore {
	return m
}

// MockQuestionStore is a mock implementation of store.QuestionStore
type MockQuestionStore struct {
	mock.Mock
}

func (m *MockQuestionStore) CreateBatch(ctx context.Context, questions []*domain.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionStore) ListByParagraph(ctx context.Context, paragraphID uuid.UUID) ([]*domain.Question, error) {
	args := m.Called(ctx, paragraphID)
	qs, _ := args.Get(0).([]*domain.Question)
	return qs, args.Error(1)
}

func (m *MockQuestionStore) CountByParagraph(ctx context.Context, paragraphID uuid.UUID) (int, error) {
	args := m.Called(ctx, paragraphID)
	return args.Int(0), args.Error(1)
}

func (m *MockQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return m
}

// MockGenerationStatusStore is a mock implementation of
// store.GenerationStatusStore
type MockGenerationStatusStore struct {
	mock.Mock
}

func (m *MockGenerationStatusStore) TryStart(ctx context.Context, paragraphID uuid.UUID) (bool, error) {
	args := m.Called(ctx, paragraphID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGenerationStatusStore) Get(ctx context.Context, paragraphID uuid.UUID) (*domain.GenerationStatus, error) {
	args := m.Called(ctx, paragraphID)
	s, _ := args.Get(0).(*domain.GenerationStatus)
	return s, args.Error(1)
}

func (m *MockGenerationStatusStore) MarkReady(ctx context.Context, paragraphID uuid.UUID) error {
	args := m.Called(ctx, paragraphID)
	return args.Error(0)
}

func (m *MockGenerationStatusStore) MarkFailed(ctx context.Context, paragraphID uuid.UUID) error {
	args := m.Called(ctx, paragraphID)
	return args.Error(0)
}

func (m *MockGenerationStatusStore) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

func (m *MockGenerationStatusStore) WithTx(tx *sql.Tx) store.GenerationStatusStore {
	return m
}

// MockResultStore is a mock implementation of store.ResultStore
type MockResultStore struct {
	mock.Mock
}

func (m *MockResultStore) Create(ctx context.Context, result *domain.TestResult, answers []*domain.AnswerRecord) error {
	args := m.Called(ctx, result, answers)
	return args.Error(0)
}

func (m *MockResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TestResult, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*domain.TestResult)
	return r, args.Error(1)
}

func (m *MockResultStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.TestResult, error) {
	args := m.Called(ctx, userID, limit, offset)
	rs, _ := args.Get(0).([]*domain.TestResult)
	return rs, args.Error(1)
}

func (m *MockResultStore) ListAnswers(ctx context.Context, resultID uuid.UUID) ([]*domain.AnswerRecord, error) {
	args := m.Called(ctx, resultID)
	as, _ := args.Get(0).([]*domain.AnswerRecord)
	return as, args.Error(1)
}

func (m *MockResultStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockResultStore) DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error {
	args := m.Called(ctx, userID, bookID)
	return args.Error(0)
}

func (m *MockResultStore) AverageStats(ctx context.Context, userID, bookID uuid.UUID) (float64, float64, error) {
	args := m.Called(ctx, userID, bookID)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *MockResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return m
}

// MockProgressStore is a mock implementation of store.ProgressStore
type MockProgressStore struct {
	mock.Mock
}

func (m *MockProgressStore) MarkCompleted(ctx context.Context, progress *domain.ReadingProgress) error {
	args := m.Called(ctx, progress)
	return args.Error(0)
}

func (m *MockProgressStore) CompletedCount(ctx context.Context, userID, bookID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID, bookID)
	return args.Int(0), args.Error(1)
}

func (m *MockProgressStore) DeleteByUserAndBook(ctx context.Context, userID, bookID uuid.UUID) error {
	args := m.Called(ctx, userID, bookID)
	return args.Error(0)
}

func (m *MockProgressStore) WithTx(tx *sql.Tx) store.ProgressStore {
	return m
}

// MockBookshelfStore is a mock implementation of store.BookshelfStore
type MockBookshelfStore struct {
	mock.Mock
}

func (m *MockBookshelfStore) Upsert(ctx context.Context, entry *domain.BookshelfEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockBookshelfStore) List(ctx context.Context, userID uuid.UUID) ([]*domain.BookshelfEntry, error) {
	args := m.Called(ctx, userID)
	es, _ := args.Get(0).([]*domain.BookshelfEntry)
	return es, args.Error(1)
}

func (m *MockBookshelfStore) Delete(ctx context.Context, userID, bookID uuid.UUID) error {
	args := m.Called(ctx, userID, bookID)
	return args.Error(0)
}

func (m *MockBookshelfStore) WithTx(tx *sql.Tx) store.BookshelfStore {
	return m
}

// MockBookStore is a mock implementation of store.BookStore
type MockBookStore struct {
	mock.Mock
}

func (m *MockBookStore) Create(ctx context.Context, book *domain.Book) error {
	args := m.Called(ctx, book)
	return args.Error(0)
}

func (m *MockBookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*domain.Book)
	return b, args.Error(1)
}

func (m *MockBookStore) List(ctx context.Context, limit, offset int) ([]*domain.Book, error) {
	args := m.Called(ctx, limit, offset)
	bs, _ := args.Get(0).([]*domain.Book)
	return bs, args.Error(1)
}

func (m *MockBookStore) UpdateTotalParagraphs(ctx context.Context, id uuid.UUID, total int) error {
	args := m.Called(ctx, id, total)
	return args.Error(0)
}

func (m *MockBookStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBookStore) WithTx(tx *sql.Tx) store.BookStore {
	return m
}

// MockTaskRunner is a mock implementation of the TaskRunner interface
type MockTaskRunner struct {
	mock.Mock
}

func (m *MockTaskRunner) Submit(ctx context.Context, t task.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockTaskFactory is a mock implementation of QuestionGenerationTaskFactory
type MockTaskFactory struct {
	mock.Mock
}

func (m *MockTaskFactory) CreateTask(paragraphID uuid.UUID) (task.Task, error) {
	args := m.Called(paragraphID)
	t, _ := args.Get(0).(task.Task)
	return t, args.Error(1)
}

// stubTask is a minimal task.Task for submission expectations.
type stubTask struct {
	id uuid.UUID
}

func (s *stubTask) ID() uuid.UUID           { return s.id }
func (s *stubTask) Type() string            { return task.TaskTypeQuestionGeneration }
func (s *stubTask) Payload() []byte         { return nil }
func (s *stubTask) Status() task.TaskStatus { return task.TaskStatusPending }
func (s *stubTask) Execute(ctx context.Context) error {
	return nil
}
