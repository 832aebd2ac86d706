package main

import (
	"log"
	"net/http"
	"strings"

	"prodbot/chat"
	"prodbot/config"
	"prodbot/database"
	"prodbot/handlers"
	"prodbot/middleware"
	"prodbot/notify"
	"prodbot/repository"
	"prodbot/scheduler"
	"prodbot/scraper"
	"prodbot/tracker"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// Initialize fetcher
	var fetcher scraper.Fetcher
	switch cfg.Fetch.Mode {
	case "browser":
		browserFetcher, err := scraper.NewBrowserFetcher()
		if err != nil {
			log.Fatalf("Failed to start browser fetcher: %v", err)
		}
		defer browserFetcher.Close()
		fetcher = browserFetcher
		log.Println("Using headless browser fetcher")
	default:
		fetcher = scraper.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.MinRequestGap, cfg.Fetch.SiteBaseURL+"/")
	}

	extractor, err := scraper.NewExtractor(cfg.Fetch.SiteBaseURL)
	if err != nil {
		log.Fatalf("Failed to create extractor: %v", err)
	}

	// Initialize notifier
	var notifier notify.Notifier
	if cfg.SMTP.IsConfigured() {
		notifier = notify.NewEmailNotifier(cfg.SMTP)
	} else {
		log.Println("SMTP not configured, email notifications disabled")
	}

	// Initialize optional observation archive
	var archive *repository.ObservationRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		if err := database.CreateTables(db); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		archive = repository.NewObservationRepository(db)
	} else {
		log.Println("DATABASE_URL not set, observation archive disabled")
	}

	// Tracker registry owns all running loops
	registry := tracker.NewRegistry()
	defer registry.StopAll()

	// Chat pipeline
	sessions := chat.NewStore(cfg.Chat.SessionTTL, cfg.Chat.MaxTurns)
	var llm chat.LLM
	if cfg.Chat.GroqAPIKey != "" {
		llm = chat.NewLLMClient(cfg.Chat.GroqAPIKey, cfg.Chat.Model)
	} else {
		log.Println("GROQ_API_KEY not set, chat replies limited to product summaries")
	}
	var retriever chat.ContextRetriever
	if cfg.Chat.RetrievalConfigured() {
		retriever = chat.NewRetriever(cfg.Chat)
	}
	pipeline := chat.NewPipeline(sessions, llm, retriever, fetcher, extractor)

	// Start chat session eviction sweep
	sweeper := scheduler.NewSessionSweeper(sessions)
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize handlers
	h := handlers.NewHandlers(fetcher, extractor, notifier, registry, pipeline, archive, cfg.Tracker.PollInterval, sessions)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(5)))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/track", h.StartTracking).Methods("POST")
	apiV1.HandleFunc("/track", h.StopTracking).Methods("DELETE")
	apiV1.HandleFunc("/track", h.ListTracking).Methods("GET")
	apiV1.HandleFunc("/track/history", h.GetTrackingHistory).Methods("GET")
	apiV1.HandleFunc("/chat", h.Chat).Methods("POST")

	// CORS configuration
	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	log.Printf("🌐 Server starting on port %s", cfg.Port)
	log.Printf("📋 API:")
	log.Printf("   GET    /health - Health check")
	log.Printf("   POST   /api/v1/track - Start tracking a product")
	log.Printf("   GET    /api/v1/track - List active tracking sessions")
	log.Printf("   DELETE /api/v1/track - Stop tracking")
	log.Printf("   GET    /api/v1/track/history - Archived observations")
	log.Printf("   POST   /api/v1/chat - Product chat")

	// Start server
	log.Fatal(http.ListenAndServe(cfg.Host+":"+cfg.Port, c.Handler(r)))
}
