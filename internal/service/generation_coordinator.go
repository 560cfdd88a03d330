package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mquint/readflow-api/internal/domain"
	"github.com/mquint/readflow-api/internal/store"
	"github.com/mquint/readflow-api/internal/task"
)

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit adds a task to the processing queue
	Submit(ctx context.Context, task task.Task) error
}

// QuestionGenerationTaskFactory creates question generation tasks
type QuestionGenerationTaskFactory interface {
	// CreateTask creates a new task for the specified paragraph
	CreateTask(paragraphID uuid.UUID) (task.Task, error)
}

// GenerationCoordinator owns the per-paragraph question generation state
// machine. It is the single entry point for starting generation and for
// polling its status, and it doubles as the persistence arm of the
// background task (task.QuestionWriter).
//
// The state machine is not_started -> generating -> {ready|failed};
// failed -> generating on retry. The status row acts as the lock: the
// compare-and-set in the status store guarantees at most one job in flight
// per paragraph, no matter how many requests race on EnsureGeneration.
type GenerationCoordinator struct {
	txRunner    store.TxRunner
	statuses    store.GenerationStatusStore
	questions   store.QuestionStore
	paragraphs  store.ParagraphStore
	taskRunner  TaskRunner
	taskFactory QuestionGenerationTaskFactory
	staleAge    time.Duration
	cancelFunc  context.CancelFunc
	done        chan struct{}
	logger      *slog.Logger
}

// GenerationCoordinatorConfig bundles the coordinator's dependencies.
type GenerationCoordinatorConfig struct {
	TxRunner    store.TxRunner
	Statuses    store.GenerationStatusStore
	Questions   store.QuestionStore
	Paragraphs  store.ParagraphStore
	TaskRunner  TaskRunner
	TaskFactory QuestionGenerationTaskFactory

	// StaleAge is how long a generating row may sit untouched before the
	// janitor flips it to failed. Zero disables the janitor.
	StaleAge time.Duration
}

// NewGenerationCoordinator creates a GenerationCoordinator. The task factory
// may be set later via SetTaskFactory to break the construction cycle with
// the task package.
func NewGenerationCoordinator(cfg GenerationCoordinatorConfig, logger *slog.Logger) (*GenerationCoordinator, error) {
	if cfg.TxRunner == nil {
		return nil, errors.New("tx runner cannot be nil")
	}
	if cfg.Statuses == nil {
		return nil, errors.New("generation status store cannot be nil")
	}
	if cfg.Questions == nil {
		return nil, errors.New("question store cannot be nil")
	}
	if cfg.Paragraphs == nil {
		return nil, errors.New("paragraph store cannot be nil")
	}
	if cfg.TaskRunner == nil {
		return nil, errors.New("task runner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GenerationCoordinator{
		txRunner:    cfg.TxRunner,
		statuses:    cfg.Statuses,
		questions:   cfg.Questions,
		paragraphs:  cfg.Paragraphs,
		taskRunner:  cfg.TaskRunner,
		taskFactory: cfg.TaskFactory,
		staleAge:    cfg.StaleAge,
		logger:      logger.With("component", "generation_coordinator"),
	}, nil
}

// SetTaskFactory wires in the task factory after construction. The factory
// needs the coordinator (as its QuestionWriter) and the coordinator needs
// the factory, so one side has to be attached late.
func (c *GenerationCoordinator) SetTaskFactory(factory QuestionGenerationTaskFactory) {
	c.taskFactory = factory
}

// EnsureGeneration makes sure question generation is underway for the
// paragraph and returns the state the caller should report. Safe to call any
// number of times concurrently: exactly one caller wins the claim and
// enqueues the job, everyone else observes the existing state. A failed
// state is retryable, so calling again after a failure starts a fresh
// attempt.
func (c *GenerationCoordinator) EnsureGeneration(ctx context.Context, paragraphID uuid.UUID) (domain.GenerationState, error) {
	// Validate the paragraph before claiming, so a bad ID never leaves a
	// status row behind.
	if _, err := c.paragraphs.GetByID(ctx, paragraphID); err != nil {
		return "", fmt.Errorf("failed to look up paragraph: %w", err)
	}

	claimed, err := c.statuses.TryStart(ctx, paragraphID)
	if err != nil {
		return "", fmt.Errorf("failed to claim generation: %w", err)
	}

	if !claimed {
		status, err := c.statuses.Get(ctx, paragraphID)
		if err != nil {
			return "", fmt.Errorf("failed to read generation status: %w", err)
		}
		return status.State, nil
	}

	if c.taskFactory == nil {
		// Claim acquired but nothing can run the job. Roll the row back to
		// failed so a later call can retry once wiring is complete.
		c.releaseClaim(ctx, paragraphID)
		return "", errors.New("task factory is not configured")
	}

	t, err := c.taskFactory.CreateTask(paragraphID)
	if err != nil {
		c.releaseClaim(ctx, paragraphID)
		return "", fmt.Errorf("failed to create generation task: %w", err)
	}

	if err := c.taskRunner.Submit(ctx, t); err != nil {
		c.releaseClaim(ctx, paragraphID)
		return "", fmt.Errorf("failed to enqueue generation task: %w", err)
	}

	c.logger.Info("question generation enqueued",
		"paragraph_id", paragraphID,
		"task_id", t.ID())
	return domain.GenerationStateGenerating, nil
}

// releaseClaim flips a freshly claimed row back to failed after enqueueing
// fell through, keeping the paragraph retryable.
func (c *GenerationCoordinator) releaseClaim(ctx context.Context, paragraphID uuid.UUID) {
	if err := c.statuses.MarkFailed(ctx, paragraphID); err != nil {
		c.logger.Error("failed to release generation claim",
			"paragraph_id", paragraphID,
			"error", err)
	}
}

// GetStatus reports the paragraph's generation state. When the state is
// ready the full question set is returned with it; in every other state the
// question slice is nil. A paragraph with no status row reports not_started.
func (c *GenerationCoordinator) GetStatus(ctx context.Context, paragraphID uuid.UUID) (domain.GenerationState, []*domain.Question, error) {
	status, err := c.statuses.Get(ctx, paragraphID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.GenerationStateNotStarted, nil, nil
		}
		return "", nil, fmt.Errorf("failed to read generation status: %w", err)
	}

	if status.State != domain.GenerationStateReady {
		return status.State, nil, nil
	}

	questions, err := c.questions.ListByParagraph(ctx, paragraphID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return domain.GenerationStateReady, questions, nil
}

// SaveQuestions implements task.QuestionWriter. The question set and the
// ready flip commit in one transaction, so a poller that observes ready
// always finds the complete set. A set of the wrong size is rejected before
// anything is written.
func (c *GenerationCoordinator) SaveQuestions(ctx context.Context, paragraphID uuid.UUID, questions []*domain.Question) error {
	if len(questions) != domain.QuestionsPerParagraph {
		return fmt.Errorf("expected %d questions, got %d", domain.QuestionsPerParagraph, len(questions))
	}
	for _, q := range questions {
		if q.ParagraphID != paragraphID {
			return fmt.Errorf("question %s belongs to paragraph %s, not %s", q.ID, q.ParagraphID, paragraphID)
		}
	}

	return c.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := c.questions.WithTx(tx).CreateBatch(ctx, questions); err != nil {
			return fmt.Errorf("failed to store questions: %w", err)
		}
		if err := c.statuses.WithTx(tx).MarkReady(ctx, paragraphID); err != nil {
			return fmt.Errorf("failed to mark generation ready: %w", err)
		}
		return nil
	})
}

// MarkGenerationFailed implements task.QuestionWriter.
func (c *GenerationCoordinator) MarkGenerationFailed(ctx context.Context, paragraphID uuid.UUID) error {
	return c.statuses.MarkFailed(ctx, paragraphID)
}

// GenerationState implements task.QuestionWriter.
func (c *GenerationCoordinator) GenerationState(ctx context.Context, paragraphID uuid.UUID) (domain.GenerationState, error) {
	status, err := c.statuses.Get(ctx, paragraphID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.GenerationStateNotStarted, nil
		}
		return "", err
	}
	return status.State, nil
}

// GetParagraph implements task.ParagraphService.
func (c *GenerationCoordinator) GetParagraph(ctx context.Context, paragraphID uuid.UUID) (*domain.Paragraph, error) {
	return c.paragraphs.GetByID(ctx, paragraphID)
}

// StartJanitor launches the background sweep that fails generating rows left
// behind by a crashed worker. No-op when StaleAge is zero.
func (c *GenerationCoordinator) StartJanitor(interval time.Duration) {
	if c.staleAge <= 0 || c.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := c.statuses.ExpireStale(ctx, c.staleAge)
				if err != nil {
					c.logger.Error("stale generation sweep failed", "error", err)
					continue
				}
				if expired > 0 {
					c.logger.Info("stale generation statuses failed", "count", expired)
				}
			}
		}
	}()
}

// StopJanitor stops the background sweep and waits for it to exit.
func (c *GenerationCoordinator) StopJanitor() {
	if c.cancelFunc == nil {
		return
	}
	c.cancelFunc()
	<-c.done
	c.cancelFunc = nil
	c.done = nil
}

var _ task.QuestionWriter = (*GenerationCoordinator)(nil)
var _ task.ParagraphService = (*GenerationCoordinator)(nil)
