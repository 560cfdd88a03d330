package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/store"
)

// SubmittedAnswer is one answer in a test submission.
type SubmittedAnswer struct {
	QuestionID uuid.UUID
	Answer     string
}

// SubmissionService grades test submissions and records the outcome. A
// submission with no answers is a skip: the reading time still counts toward
// speed history but comprehension stays undefined.
type SubmissionService struct {
	txRunner   store.TxRunner
	results    store.ResultStore
	questions  store.QuestionStore
	paragraphs store.ParagraphStore
	progress   store.ProgressStore
	bookshelf  store.BookshelfStore
	logger     *slog.Logger
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(
	txRunner store.TxRunner,
	results store.ResultStore,
	questions store.QuestionStore,
	paragraphs store.ParagraphStore,
	progress store.ProgressStore,
	bookshelf store.BookshelfStore,
	logger *slog.Logger,
) *SubmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionService{
		txRunner:   txRunner,
		results:    results,
		questions:  questions,
		paragraphs: paragraphs,
		progress:   progress,
		bookshelf:  bookshelf,
		logger:     logger.With("component", "submission_service"),
	}
}

// SubmitTest grades and records one reading attempt. The result, its answer
// records, the reading-progress row and the bookshelf promotion commit in a
// single transaction; a validation failure persists nothing.
func (s *SubmissionService) SubmitTest(
	ctx context.Context,
	userID, paragraphID uuid.UUID,
	readingTimeSeconds int,
	answers []SubmittedAnswer,
) (*domain.TestResult, error) {
	paragraph, err := s.paragraphs.GetByID(ctx, paragraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up paragraph: %w", err)
	}

	var result *domain.TestResult
	var records []*domain.AnswerRecord

	if len(answers) == 0 {
		result, err = domain.NewSkippedTestResult(
			userID, paragraphID, paragraph.BookID,
			readingTimeSeconds, paragraph.WordCount)
		if err != nil {
			return nil, err
		}
	} else {
		result, records, err = s.grade(ctx, userID, paragraph, readingTimeSeconds, answers)
		if err != nil {
			return nil, err
		}
	}

	err = s.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.results.WithTx(tx).Create(ctx, result, records); err != nil {
			return fmt.Errorf("failed to store test result: %w", err)
		}

		progress := &domain.ReadingProgress{
			UserID:      userID,
			BookID:      paragraph.BookID,
			ParagraphID: paragraphID,
			CompletedAt: time.Now().UTC(),
		}
		if err := s.progress.WithTx(tx).MarkCompleted(ctx, progress); err != nil {
			return fmt.Errorf("failed to record reading progress: %w", err)
		}

		entry := &domain.BookshelfEntry{
			UserID:    userID,
			BookID:    paragraph.BookID,
			Status:    domain.BookshelfStatusStarted,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.bookshelf.WithTx(tx).Upsert(ctx, entry); err != nil {
			return fmt.Errorf("failed to update bookshelf: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("test submitted",
		"result_id", result.ID,
		"user_id", userID,
		"paragraph_id", paragraphID,
		"skipped", result.Skipped,
		"wpm", result.WordsPerMinute)
	return result, nil
}

// grade validates the answers against the paragraph's question set and
// builds the scored result with its answer records.
func (s *SubmissionService) grade(
	ctx context.Context,
	userID uuid.UUID,
	paragraph *domain.Paragraph,
	readingTimeSeconds int,
	answers []SubmittedAnswer,
) (*domain.TestResult, []*domain.AnswerRecord, error) {
	questions, err := s.questions.ListByParagraph(ctx, paragraph.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, ErrQuestionsNotReady
	}

	byID := make(map[uuid.UUID]*domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	if len(answers) != len(questions) {
		return nil, nil, ErrIncompleteAnswers
	}

	correct := 0
	seen := make(map[uuid.UUID]bool, len(answers))
	records := make([]*domain.AnswerRecord, 0, len(answers))

	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, nil, ErrMismatchedQuestion
		}
		if seen[a.QuestionID] {
			return nil, nil, ErrIncompleteAnswers
		}
		seen[a.QuestionID] = true

		choice := strings.ToUpper(strings.TrimSpace(a.Answer))
		if !domain.IsValidOption(choice) {
			return nil, nil, ErrInvalidAnswerOption
		}

		isCorrect := choice == q.CorrectOption
		if isCorrect {
			correct++
		}
		records = append(records, &domain.AnswerRecord{
			ID:         uuid.New(),
			QuestionID: a.QuestionID,
			UserAnswer: choice,
			IsCorrect:  isCorrect,
		})
	}

	result, err := domain.NewTestResult(
		userID, paragraph.ID, paragraph.BookID,
		readingTimeSeconds, paragraph.WordCount,
		correct, len(questions))
	if err != nil {
		return nil, nil, err
	}

	for _, r := range records {
		r.ResultID = result.ID
	}
	return result, records, nil
}

// GradedAnswer is an answer record joined with its question for post-test
// review. The correct option is exposed here: the test is already over.
type GradedAnswer struct {
	QuestionID    uuid.UUID `json:"question_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	UserAnswer    string    `json:"user_answer"`
	CorrectOption string    `json:"correct_option"`
	IsCorrect     bool      `json:"is_correct"`
}

// GetResult returns a result with its answers joined to their questions.
// Only the owner or an admin may read it. A skipped result has no answers.
func (s *SubmissionService) GetResult(
	ctx context.Context,
	requester *domain.User,
	resultID uuid.UUID,
) (*domain.TestResult, []*GradedAnswer, error) {
	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, nil, err
	}
	if result.UserID != requester.ID && !requester.IsAdmin {
		return nil, nil, ErrNotOwned
	}

	answers, err := s.results.ListAnswers(ctx, resultID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load answer records: %w", err)
	}
	if len(answers) == 0 {
		return result, nil, nil
	}

	questions, err := s.questions.ListByParagraph(ctx, result.ParagraphID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	graded := make([]*GradedAnswer, 0, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			// The question set was removed after submission; nothing left
			// to review for this answer.
			continue
		}
		graded = append(graded, &GradedAnswer{
			QuestionID:    a.QuestionID,
			QuestionText:  q.QuestionText,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			UserAnswer:    a.UserAnswer,
			CorrectOption: q.CorrectOption,
			IsCorrect:     a.IsCorrect,
		})
	}
	return result, graded, nil
}

// ListResults returns a user's result history, newest first.
func (s *SubmissionService) ListResults(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.TestResult, error) {
	return s.results.ListByUser(ctx, userID, limit, offset)
}

// DeleteResult removes a result. Only the owner or an admin may delete it.
func (s *SubmissionService) DeleteResult(
	ctx context.Context,
	requester *domain.User,
	resultID uuid.UUID,
) error {
	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return err
	}
	if result.UserID != requester.ID && !requester.IsAdmin {
		return ErrNotOwned
	}

	if err := s.results.Delete(ctx, resultID); err != nil {
		return err
	}

	s.logger.Info("test result deleted",
		"result_id", resultID,
		"requester_id", requester.ID)
	return nil
}
