package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mquint/readflow-api/internal/domain"
)

type submissionFixture struct {
	service    *SubmissionService
	results    *MockResultStore
	questions  *MockQuestionStore
	paragraphs *MockParagraphStore
	progress   *MockProgressStore
	bookshelf  *MockBookshelfStore
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()

	f := &submissionFixture{
		results:    new(MockResultStore),
		questions:  new(MockQuestionStore),
		paragraphs: new(MockParagraphStore),
		progress:   new(MockProgressStore),
		bookshelf:  new(MockBookshelfStore),
	}
	f.service = NewSubmissionService(
		&fakeTxRunner{},
		f.results,
		f.questions,
		f.paragraphs,
		f.progress,
		f.bookshelf,
		slog.Default(),
	)
	return f
}

func gradedParagraph() *domain.Paragraph {
	return &domain.Paragraph{
		ID:           uuid.New(),
		BookID:       uuid.New(),
		OrdinalIndex: 1,
		Content:      "text under test",
		WordCount:    900,
		CreatedAt:    time.Now().UTC(),
	}
}

// answersFor builds one submitted answer per question, all choosing the
// correct option except the first `wrong` of them.
func answersFor(questions []*domain.Question, wrong int) []SubmittedAnswer {
	answers := make([]SubmittedAnswer, 0, len(questions))
	for i, q := range questions {
		choice := q.CorrectOption
		if i < wrong {
			if choice == domain.OptionA {
				choice = domain.OptionB
			} else {
				choice = domain.OptionA
			}
		}
		answers = append(answers, SubmittedAnswer{QuestionID: q.ID, Answer: choice})
	}
	return answers
}

func TestSubmitTestGradesAndPersists(t *testing.T) {
	f := newSubmissionFixture(t)
	userID := uuid.New()
	paragraph := gradedParagraph()
	questions := makeQuestionSet(t, paragraph.ID, domain.QuestionsPerParagraph)

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return(questions, nil)
	f.results.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.progress.On("MarkCompleted", mock.Anything, mock.Anything).Return(nil)
	f.bookshelf.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	// Two wrong out of five
	result, err := f.service.SubmitTest(context.Background(), userID, paragraph.ID,
		180, answersFor(questions, 2))
	require.NoError(t, err)

	assert.Equal(t, 3, result.CorrectCount)
	assert.Equal(t, domain.QuestionsPerParagraph, result.TotalQuestions)
	require.NotNil(t, result.ComprehensionRate)
	assert.Equal(t, 60, *result.ComprehensionRate)
	assert.Equal(t, 300, result.WordsPerMinute)
	assert.False(t, result.Skipped)

	f.results.AssertCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	f.progress.AssertCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
	f.bookshelf.AssertCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSubmitTestEmptyAnswersRecordsSkip(t *testing.T) {
	f := newSubmissionFixture(t)
	userID := uuid.New()
	paragraph := gradedParagraph()

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.results.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.progress.On("MarkCompleted", mock.Anything, mock.Anything).Return(nil)
	f.bookshelf.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.SubmitTest(context.Background(), userID, paragraph.ID, 120, nil)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Nil(t, result.ComprehensionRate)
	assert.Equal(t, 450, result.WordsPerMinute)

	// A skip never consults the question set
	f.questions.AssertNotCalled(t, "ListByParagraph", mock.Anything, mock.Anything)
	// But the paragraph still counts as completed
	f.progress.AssertCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
}

func TestSubmitTestIncompleteAnswersRejected(t *testing.T) {
	f := newSubmissionFixture(t)
	paragraph := gradedParagraph()
	questions := makeQuestionSet(t, paragraph.ID, domain.QuestionsPerParagraph)

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return(questions, nil)

	partial := answersFor(questions, 0)[:3]
	_, err := f.service.SubmitTest(context.Background(), uuid.New(), paragraph.ID, 180, partial)
	require.ErrorIs(t, err, ErrIncompleteAnswers)

	// Nothing was persisted
	f.results.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	f.progress.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
}

func TestSubmitTestMismatchedQuestionRejected(t *testing.T) {
	f := newSubmissionFixture(t)
	paragraph := gradedParagraph()
	questions := makeQuestionSet(t, paragraph.ID, domain.QuestionsPerParagraph)

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return(questions, nil)

	answers := answersFor(questions, 0)
	answers[4].QuestionID = uuid.New() // belongs to no question

	_, err := f.service.SubmitTest(context.Background(), uuid.New(), paragraph.ID, 180, answers)
	require.ErrorIs(t, err, ErrMismatchedQuestion)
	f.results.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitTestDuplicateAnswerRejected(t *testing.T) {
	f := newSubmissionFixture(t)
	paragraph := gradedParagraph()
	questions := makeQuestionSet(t, paragraph.ID, domain.QuestionsPerParagraph)

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return(questions, nil)

	answers := answersFor(questions, 0)
	answers[1].QuestionID = answers[0].QuestionID

	_, err := f.service.SubmitTest(context.Background(), uuid.New(), paragraph.ID, 180, answers)
	require.ErrorIs(t, err, ErrIncompleteAnswers)
}

func TestSubmitTestInvalidOptionRejected(t *testing.T) {
	f := newSubmissionFixture(t)
	paragraph := gradedParagraph()
	questions := makeQuestionSet(t, paragraph.ID, domain.QuestionsPerParagraph)

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return(questions, nil)

	answers := answersFor(questions, 0)
	answers[0].Answer = "E"

	_, err := f.service.SubmitTest(context.Background(), uuid.New(), paragraph.ID, 180, answers)
	require.ErrorIs(t, err, ErrInvalidAnswerOption)
}

func TestSubmitTestAnswerCaseInsensitive(t *testing.T) {
	f := newSubmissionFixture(t)
	paragraph := gradedParagraph()
	questions := makeQuestionSet(t, paragraph.ID, domain.QuestionsPerParagraph)

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return(questions, nil)
	f.results.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.progress.On("MarkCompleted", mock.Anything, mock.Anything).Return(nil)
	f.bookshelf.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	answers := answersFor(questions, 0)
	for i := range answers {
		answers[i].Answer = " " + answers[i].Answer + " "
	}
	answers[0].Answer = "b" // all questions use B as correct

	result, err := f.service.SubmitTest(context.Background(), uuid.New(), paragraph.ID, 180, answers)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionsPerParagraph, result.CorrectCount)
}

func TestSubmitTestNoQuestionsYet(t *testing.T) {
	f := newSubmissionFixture(t)
	paragraph := gradedParagraph()

	f.paragraphs.On("GetByID", mock.Anything, paragraph.ID).Return(paragraph, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraph.ID).Return([]*domain.Question{}, nil)

	answers := []SubmittedAnswer{{QuestionID: uuid.New(), Answer: "A"}}
	_, err := f.service.SubmitTest(context.Background(), uuid.New(), paragraph.ID, 180, answers)
	require.ErrorIs(t, err, ErrQuestionsNotReady)
}

func TestGetResultJoinsQuestionsForReview(t *testing.T) {
	f := newSubmissionFixture(t)
	owner := &domain.User{ID: uuid.New()}
	paragraphID := uuid.New()
	questions := makeQuestionSet(t, paragraphID, domain.QuestionsPerParagraph)

	resultID := uuid.New()
	f.results.On("GetByID", mock.Anything, resultID).Return(&domain.TestResult{
		ID:          resultID,
		UserID:      owner.ID,
		ParagraphID: paragraphID,
	}, nil)

	records := make([]*domain.AnswerRecord, 0, len(questions))
	for i, q := range questions {
		records = append(records, &domain.AnswerRecord{
			ID:         uuid.New(),
			ResultID:   resultID,
			QuestionID: q.ID,
			UserAnswer: domain.OptionA,
			IsCorrect:  i == 0,
		})
	}
	f.results.On("ListAnswers", mock.Anything, resultID).Return(records, nil)
	f.questions.On("ListByParagraph", mock.Anything, paragraphID).Return(questions, nil)

	_, graded, err := f.service.GetResult(context.Background(), owner, resultID)
	require.NoError(t, err)
	require.Len(t, graded, len(questions))

	// Review payload carries the full question, including the right answer
	assert.Equal(t, questions[0].ID, graded[0].QuestionID)
	assert.Equal(t, questions[0].QuestionText, graded[0].QuestionText)
	assert.Equal(t, questions[0].OptionA, graded[0].OptionA)
	assert.Equal(t, questions[0].OptionD, graded[0].OptionD)
	assert.Equal(t, questions[0].CorrectOption, graded[0].CorrectOption)
	assert.Equal(t, domain.OptionA, graded[0].UserAnswer)
	assert.True(t, graded[0].IsCorrect)
	assert.False(t, graded[1].IsCorrect)
}

func TestGetResultSkippedHasNoAnswers(t *testing.T) {
	f := newSubmissionFixture(t)
	owner := &domain.User{ID: uuid.New()}
	resultID := uuid.New()

	f.results.On("GetByID", mock.Anything, resultID).Return(&domain.TestResult{
		ID:      resultID,
		UserID:  owner.ID,
		Skipped: true,
	}, nil)
	f.results.On("ListAnswers", mock.Anything, resultID).Return([]*domain.AnswerRecord{}, nil)

	result, graded, err := f.service.GetResult(context.Background(), owner, resultID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, graded)
	f.questions.AssertNotCalled(t, "ListByParagraph", mock.Anything, mock.Anything)
}

func TestGetResultOwnership(t *testing.T) {
	f := newSubmissionFixture(t)
	owner := &domain.User{ID: uuid.New()}
	stranger := &domain.User{ID: uuid.New()}

	resultID := uuid.New()
	f.results.On("GetByID", mock.Anything, resultID).Return(&domain.TestResult{
		ID:     resultID,
		UserID: owner.ID,
	}, nil)

	_, _, err := f.service.GetResult(context.Background(), stranger, resultID)
	require.ErrorIs(t, err, ErrNotOwned)
}

func TestDeleteResultOwnership(t *testing.T) {
	f := newSubmissionFixture(t)
	owner := &domain.User{ID: uuid.New()}
	stranger := &domain.User{ID: uuid.New()}
	admin := &domain.User{ID: uuid.New(), IsAdmin: true}

	resultID := uuid.New()
	f.results.On("GetByID", mock.Anything, resultID).Return(&domain.TestResult{
		ID:     resultID,
		UserID: owner.ID,
	}, nil)
	f.results.On("Delete", mock.Anything, resultID).Return(nil)

	err := f.service.DeleteResult(context.Background(), stranger, resultID)
	require.ErrorIs(t, err, ErrNotOwned)

	require.NoError(t, f.service.DeleteResult(context.Background(), owner, resultID))
	require.NoError(t, f.service.DeleteResult(context.Background(), admin, resultID))
}
