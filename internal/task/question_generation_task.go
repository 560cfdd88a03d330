package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/generation"
)

// Status constants for QuestionGenerationTask
// These match the TaskStatus values defined in task.go
const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// Common errors
var (
	ErrNilParagraphService = errors.New("paragraph service cannot be nil")
	ErrNilGenerator        = errors.New("generator cannot be nil")
	ErrNilQuestionWriter   = errors.New("question writer cannot be nil")
	ErrNilLogger           = errors.New("logger cannot be nil")
	ErrEmptyTaskParagraph  = errors.New("paragraph ID cannot be empty")
)

// ParagraphService defines the paragraph lookups the task needs
type ParagraphService interface {
	// GetParagraph retrieves a paragraph by its ID
	GetParagraph(ctx context.Context, paragraphID uuid.UUID) (*domain.Paragraph, error)
}

// QuestionWriter defines how the task persists the outcome of a generation
// attempt. SaveQuestions stores the full set and flips the status to ready in
// one transaction, so a poller that sees ready always finds the whole set.
type QuestionWriter interface {
	// SaveQuestions atomically stores the question set and marks the
	// paragraph's generation status ready
	SaveQuestions(ctx context.Context, paragraphID uuid.UUID, questions []*domain.Question) error

	// MarkGenerationFailed records a failed attempt, leaving it retryable
	MarkGenerationFailed(ctx context.Context, paragraphID uuid.UUID) error

	// GenerationState returns the paragraph's current generation state
	GenerationState(ctx context.Context, paragraphID uuid.UUID) (domain.GenerationState, error)
}

// questionGenerationPayload represents the serialized data stored in the task
type questionGenerationPayload struct {
	ParagraphID uuid.UUID `json:"paragraph_id"`
}

// QuestionGenerationTask implements the Task interface for generating
// comprehension questions for a paragraph
type QuestionGenerationTask struct {
	id          uuid.UUID
	paragraphID uuid.UUID
	paragraphs  ParagraphService
	generator   generation.Generator
	writer      QuestionWriter
	logger      *slog.Logger
	status      string
}

// NewQuestionGenerationTask creates a new question generation task
func NewQuestionGenerationTask(
	paragraphID uuid.UUID,
	paragraphs ParagraphService,
	generator generation.Generator,
	writer QuestionWriter,
	logger *slog.Logger,
) (*QuestionGenerationTask, error) {
	if paragraphs == nil {
		return nil, ErrNilParagraphService
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if writer == nil {
		return nil, ErrNilQuestionWriter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if paragraphID == uuid.Nil {
		return nil, ErrEmptyTaskParagraph
	}

	return &QuestionGenerationTask{
		id:          uuid.New(),
		paragraphID: paragraphID,
		paragraphs:  paragraphs,
		generator:   generator,
		writer:      writer,
		logger:      logger.With("task_type", TaskTypeQuestionGeneration, "paragraph_id", paragraphID),
		status:      statusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *QuestionGenerationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *QuestionGenerationTask) Type() string {
	return TaskTypeQuestionGeneration
}

// Payload returns the task data as a byte slice
func (t *QuestionGenerationTask) Payload() []byte {
	payload := questionGenerationPayload{
		ParagraphID: t.paragraphID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}

	return data
}

// Status returns the current task status
func (t *QuestionGenerationTask) Status() TaskStatus {
	return TaskStatus(t.status)
}

// Execute runs the question generation task. It fetches the paragraph, calls
// the generator, and commits the question set with the ready flip in one
// transaction. Any failure marks the paragraph's generation status failed so
// a later request can retry.
func (t *QuestionGenerationTask) Execute(ctx context.Context) error {
	t.status = statusProcessing
	t.logger.Info("starting question generation task")

	if err := ctx.Err(); err != nil {
		t.status = statusFailed
		t.logger.Error("task cancelled by context", "error", err)
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	// A recovered task may have finished before the crash. Ready is
	// terminal, so there is nothing left to do.
	state, err := t.writer.GenerationState(ctx, t.paragraphID)
	if err == nil && state == domain.GenerationStateReady {
		t.status = statusCompleted
		t.logger.Info("questions already generated, skipping")
		return nil
	}

	paragraph, err := t.paragraphs.GetParagraph(ctx, t.paragraphID)
	if err != nil {
		t.failGeneration(ctx)
		t.logger.Error("failed to retrieve paragraph", "error", err)
		return fmt.Errorf("failed to retrieve paragraph: %w", err)
	}

	t.logger.Info("generating questions", "word_count", paragraph.WordCount)
	questions, err := t.generator.GenerateQuestions(ctx, t.paragraphID, paragraph.Content)
	if err != nil {
		t.failGeneration(ctx)
		t.logger.Error("failed to generate questions", "error", err)
		return fmt.Errorf("failed to generate questions: %w", err)
	}

	if err := t.writer.SaveQuestions(ctx, t.paragraphID, questions); err != nil {
		t.failGeneration(ctx)
		t.logger.Error("failed to save generated questions", "error", err)
		return fmt.Errorf("failed to save generated questions: %w", err)
	}

	t.status = statusCompleted
	t.logger.Info("question generation task completed successfully", "questions_generated", len(questions))
	return nil
}

// failGeneration flips the status row to failed. The update error is logged
// but not returned; the task's own error is the one that matters.
func (t *QuestionGenerationTask) failGeneration(ctx context.Context) {
	t.status = statusFailed
	if err := t.writer.MarkGenerationFailed(ctx, t.paragraphID); err != nil {
		t.logger.Error("failed to mark generation failed", "error", err)
	}
}

// QuestionGenerationTaskFactory creates QuestionGenerationTask instances
type QuestionGenerationTaskFactory struct {
	paragraphs ParagraphService
	generator  generation.Generator
	writer     QuestionWriter
	logger     *slog.Logger
}

// NewQuestionGenerationTaskFactory creates a new factory for
// QuestionGenerationTasks
func NewQuestionGenerationTaskFactory(
	paragraphs ParagraphService,
	generator generation.Generator,
	writer QuestionWriter,
	logger *slog.Logger,
) *QuestionGenerationTaskFactory {
	return &QuestionGenerationTaskFactory{
		paragraphs: paragraphs,
		generator:  generator,
		writer:     writer,
		logger:     logger.With("component", "question_generation_task_factory"),
	}
}

// CreateTask creates a new QuestionGenerationTask for the specified paragraph
func (f *QuestionGenerationTaskFactory) CreateTask(paragraphID uuid.UUID) (Task, error) {
	t, err := NewQuestionGenerationTask(
		paragraphID,
		f.paragraphs,
		f.generator,
		f.writer,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Rebuild implements Factory for recovered tasks: the persisted payload is
// parsed back into an executable task that keeps the original task ID.
func (f *QuestionGenerationTaskFactory) Rebuild(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	if taskType != TaskTypeQuestionGeneration {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	var p questionGenerationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse task payload: %w", err)
	}

	t, err := NewQuestionGenerationTask(p.ParagraphID, f.paragraphs, f.generator, f.writer, f.logger)
	if err != nil {
		return nil, err
	}
	t.id = id
	return t, nil
}

var _ Factory = (*QuestionGenerationTaskFactory)(nil)
