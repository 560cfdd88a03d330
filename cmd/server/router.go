package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mquint/readflow-api/internal/api"
	apiMiddleware "github.com/mquint/readflow-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	corsOptions := cors.Options{
		AllowedOrigins:   app.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
	r.Use(cors.New(corsOptions).Handler)

	authHandler := api.NewAuthHandler(app.userService)
	bookHandler := api.NewBookHandler(
		app.bookService,
		app.userService,
		int64(app.config.Upload.MaxSizeMB)*1024*1024,
	)
	readingHandler := api.NewReadingHandler(
		app.readingService,
		app.submissionService,
		app.coordinator,
		app.userService,
	)
	bookshelfHandler := api.NewBookshelfHandler(app.bookshelfService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/reading/guest", readingHandler.GuestParagraph)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/auth/me", authHandler.Me)

			// Book management
			r.Post("/books", bookHandler.UploadBook)
			r.Get("/books", bookHandler.ListBooks)
			r.Get("/books/{bookID}", bookHandler.GetBook)
			r.Delete("/books/{bookID}", bookHandler.DeleteBook)
			r.Get("/books/{bookID}/paragraphs", bookHandler.ListParagraphs)
			r.Get("/paragraphs/{paragraphID}", bookHandler.GetParagraph)
			r.Put("/paragraphs/{paragraphID}", bookHandler.UpdateParagraph)
			r.Delete("/paragraphs/{paragraphID}", bookHandler.DeleteParagraph)

			// Reading sessions and comprehension tests
			r.Get("/reading/books/{bookID}/next", readingHandler.NextParagraph)
			r.Get("/reading/books/{bookID}/progress", readingHandler.Progress)
			r.Delete("/reading/books/{bookID}/history", readingHandler.ResetBook)
			r.Get("/reading/paragraphs/{paragraphID}/questions", readingHandler.QuestionStatus)
			r.Post("/reading/paragraphs/{paragraphID}/questions", readingHandler.EnsureQuestions)
			r.Post("/reading/paragraphs/{paragraphID}/submit", readingHandler.SubmitTest)
			r.Get("/reading/results", readingHandler.ListResults)
			r.Get("/reading/results/{resultID}", readingHandler.GetResult)
			r.Delete("/reading/results/{resultID}", readingHandler.DeleteResult)

			// Bookshelf
			r.Get("/bookshelf", bookshelfHandler.Shelf)
			r.Delete("/bookshelf/{bookID}", bookshelfHandler.Remove)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
