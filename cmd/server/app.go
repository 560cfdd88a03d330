package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mquint/readflow-api/internal/config"
	"github.com/mquint/readflow-api/internal/platform/gemini"
	"github.com/mquint/readflow-api/internal/platform/postgres"
	"github.com/mquint/readflow-api/internal/service"
	"github.com/mquint/readflow-api/internal/service/auth"
	"github.com/mquint/readflow-api/internal/store"
	"github.com/mquint/readflow-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore      store.UserStore
	bookStore      store.BookStore
	paragraphStore store.ParagraphStore
	questionStore  store.QuestionStore
	statusStore    store.GenerationStatusStore
	resultStore    store.ResultStore
	progressStore  store.ProgressStore
	bookshelfStore store.BookshelfStore
	taskStore      task.TaskStore

	// Services
	jwtService        auth.JWTService
	userService       *service.UserService
	bookService       *service.BookService
	readingService    *service.ReadingService
	submissionService *service.SubmissionService
	bookshelfService  *service.BookshelfService
	coordinator       *service.GenerationCoordinator

	// Background processing
	taskRunner *task.TaskRunner
}

// newApplication creates an application instance with all dependencies
// initialized. The task runner is started as part of construction so
// interrupted generation jobs are recovered before requests arrive.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userStore = postgres.NewUserStore(db, logger)
	app.bookStore = postgres.NewBookStore(db, logger)
	app.paragraphStore = postgres.NewParagraphStore(db, logger)
	app.questionStore = postgres.NewQuestionStore(db, logger)
	app.statusStore = postgres.NewGenerationStatusStore(db, logger)
	app.resultStore = postgres.NewResultStore(db, logger)
	app.progressStore = postgres.NewProgressStore(db, logger)
	app.bookshelfStore = postgres.NewBookshelfStore(db, logger)
	app.taskStore = postgres.NewTaskStore(db)

	generator, err := gemini.NewGenerator(
		ctx,
		logger.With("component", "llm_generator"),
		cfg.LLM,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized successfully")

	txRunner := store.NewTxRunner(db)

	// The runner, the coordinator and the task factory reference each other,
	// so the factory is attached to the first two after construction.
	app.taskRunner = task.NewTaskRunner(app.taskStore, nil, task.TaskRunnerConfig{
		WorkerCount:  cfg.Task.WorkerCount,
		QueueSize:    cfg.Task.QueueSize,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
	}, logger)

	app.coordinator, err = service.NewGenerationCoordinator(service.GenerationCoordinatorConfig{
		TxRunner:   txRunner,
		Statuses:   app.statusStore,
		Questions:  app.questionStore,
		Paragraphs: app.paragraphStore,
		TaskRunner: app.taskRunner,
		StaleAge:   time.Duration(cfg.Task.StaleStatusAgeMinutes) * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation coordinator: %w", err)
	}

	taskFactory := task.NewQuestionGenerationTaskFactory(
		app.coordinator,
		generator,
		app.coordinator,
		logger,
	)
	app.coordinator.SetTaskFactory(taskFactory)
	app.taskRunner.SetFactory(taskFactory)

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	app.coordinator.StartJanitor(time.Minute)

	passwords := auth.NewBcryptVerifier(cfg.Auth.BcryptCost)
	app.userService = service.NewUserService(app.userStore, passwords, app.jwtService, logger)

	app.bookService = service.NewBookService(
		txRunner,
		app.bookStore,
		app.paragraphStore,
		app.bookshelfStore,
		cfg.Upload.Dir,
		logger,
	)

	app.readingService = service.NewReadingService(
		txRunner,
		app.bookStore,
		app.paragraphStore,
		app.progressStore,
		app.resultStore,
		app.bookshelfStore,
		app.coordinator,
		logger,
	)

	app.submissionService = service.NewSubmissionService(
		txRunner,
		app.resultStore,
		app.questionStore,
		app.paragraphStore,
		app.progressStore,
		app.bookshelfStore,
		logger,
	)

	app.bookshelfService = service.NewBookshelfService(
		app.bookshelfStore,
		app.bookStore,
		app.progressStore,
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.coordinator != nil {
		app.coordinator.StopJanitor()
	}

	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
