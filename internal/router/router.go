package router

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"quizrunner-backend/internal/handlers"
	"quizrunner-backend/internal/middleware"
	"quizrunner-backend/internal/websocket"
)

type Options struct {
	CORSOrigins      []string
	ContentDir       string // served under /content when set
	EnableAuthoring  bool
	AuthoringKeyHash string
}

func New(
	jwtAuth *middleware.JWTAuth,
	sessionHandler *handlers.SessionHandler,
	chapterHandler *handlers.ChapterHandler,
	quizHandler *handlers.QuizHandler,
	authoringHandler *handlers.AuthoringHandler,
	wsHub *websocket.Hub,
	opts Options,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.AuthoringKeyHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Session issuance (20 req/min per IP), generation (5 req/min per guest)
	sessionLimiter := middleware.NewRateLimiter(20, time.Minute)
	generateLimiter := middleware.NewRateLimiter(5, time.Minute)
	stop := func() {
		sessionLimiter.Stop()
		generateLimiter.Stop()
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.ContentDir != "" {
		r.Handle("/content/*", http.StripPrefix("/content/", http.FileServer(http.Dir(opts.ContentDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Guest Sessions (public) ────
		r.With(sessionLimiter.Middleware).Post("/sessions", sessionHandler.Create)

		r.Get("/chapters", chapterHandler.List)

		// ──── Quiz Routes ────
		r.Route("/quiz", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/load", quizHandler.Load)
			r.Post("/start", quizHandler.Start)
			r.Get("/state", quizHandler.State)
			r.Get("/questions/{index}", quizHandler.Question)
			r.Post("/answer", quizHandler.Answer)
			r.Post("/next", quizHandler.Next)
			r.Post("/prev", quizHandler.Prev)
			r.Post("/goto", quizHandler.GoTo)
			r.Post("/submit", quizHandler.Submit)
			r.Post("/reset", quizHandler.Reset)
			r.Delete("/session", quizHandler.End)
		})

		// ──── Authoring Routes ────
		// Never mounted without an operator key.
		if opts.EnableAuthoring && opts.AuthoringKeyHash == "" {
			log.Println("Authoring enabled without AUTHORING_KEY_HASH; authoring routes not mounted")
		}
		if opts.EnableAuthoring && opts.AuthoringKeyHash != "" {
			r.Route("/authoring", func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(middleware.RequireAuthoringKey(opts.AuthoringKeyHash))
				r.Get("/chapters/next-week", authoringHandler.NextWeek)
				r.Put("/chapters/{id}", authoringHandler.UpdateChapter)
				r.With(generateLimiter.Middleware).Post("/generate", authoringHandler.Generate)
				r.Get("/jobs/{id}", authoringHandler.GetJob)
			})
		}

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r, stop
}
