package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"quizrunner-backend/internal/catalog"
	"quizrunner-backend/internal/config"
	"quizrunner-backend/internal/database"
	"quizrunner-backend/internal/handlers"
	"quizrunner-backend/internal/middleware"
	"quizrunner-backend/internal/models"
	"quizrunner-backend/internal/quiz"
	"quizrunner-backend/internal/repository"
	"quizrunner-backend/internal/router"
	"quizrunner-backend/internal/services"
	"quizrunner-backend/internal/websocket"
	"quizrunner-backend/internal/worker"
	"quizrunner-backend/migrations"
)

const maxLectureChars = 200000

func main() {
	log.Println("🚀 Starting Quiz Runner Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 3: Chapter Content ────
	var source catalog.Source
	if cfg.ContentBaseURL != "" {
		source = catalog.NewHTTPSource(cfg.ContentBaseURL)
		log.Printf("✓ Reading chapters from %s", cfg.ContentBaseURL)
	} else {
		source = catalog.NewDirSource(cfg.DataPath)
		log.Printf("✓ Reading chapters from %s", cfg.DataPath)
	}
	loader := catalog.NewLoader(source, cfg.AllChaptersSampleSize)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewPublisher(redisClients.PubSub)

	registry := quiz.NewRegistry(loader, func(identity string) quiz.Surface {
		return services.NewSessionView(identity, publisher)
	}, quiz.Options{Duration: cfg.QuizDuration})

	janitor := services.NewSessionJanitor(registry, cfg.SessionIdleTTL)
	janitor.Start()

	// ──── Step 4: Question Generation (authoring only) ────
	var authoringHandler *handlers.AuthoringHandler
	var workerPool *worker.Pool
	if cfg.EnableAuthoring {
		pool, err := database.NewPostgresPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(context.Background(), pool, migrations.FS); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiConcurrentReqs)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer geminiService.Close()
		log.Println("✓ Gemini Flash client initialized")

		jobRepo := repository.NewJobRepo(pool)
		chapterManager := catalog.NewManager(cfg.DataPath)

		workerPool = worker.NewPool(
			redisClients.Queue,
			geminiService,
			services.NewYouTubeService(),
			services.NewFileExtractService(maxLectureChars),
			jobRepo,
			chapterManager,
			publisher,
			cfg.StoragePath,
			cfg.WorkerCount,
		)
		workerPool.Start()
		log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

		authoringHandler = handlers.NewAuthoringHandler(chapterManager, jobRepo, workerPool, cfg.StoragePath, cfg.ClampNumQuestions)
	}

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.CORSOrigins)
	wsHub.Welcome = func(identity uuid.UUID) *models.WSMessage {
		s, ok := registry.Lookup(identity.String())
		if !ok {
			return nil
		}
		return &models.WSMessage{Type: services.EventState, Payload: s.Snapshot()}
	}
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(jwtAuth)
	chapterHandler := handlers.NewChapterHandler(loader)
	quizHandler := handlers.NewQuizHandler(registry)

	// ──── Step 6: Start HTTP Server ────
	r, stopLimiters := router.New(
		jwtAuth,
		sessionHandler,
		chapterHandler,
		quizHandler,
		authoringHandler,
		wsHub,
		router.Options{
			CORSOrigins:      cfg.CORSOrigins,
			ContentDir:       cfg.DataPath,
			EnableAuthoring:  cfg.EnableAuthoring,
			AuthoringKeyHash: cfg.AuthoringKeyHash,
		},
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		janitor.Stop()
		registry.CloseAll()
		stopLimiters()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		if workerPool != nil {
			workerPool.Stop()
		}
	}()

	log.Printf("✓ Quiz Runner Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)
	if cfg.EnableAuthoring {
		log.Println("  Authoring routes enabled")
	}

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-shutdownDone
	log.Println("✓ Shutdown complete")
}
