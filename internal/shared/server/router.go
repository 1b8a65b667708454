package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"compliance-backend/internal/analysis"
	"compliance-backend/internal/checklist"
	"compliance-backend/internal/documents"
	"compliance-backend/internal/embedding"
	"compliance-backend/internal/llm"
	"compliance-backend/internal/llm/openai"
	"compliance-backend/internal/progress"
	"compliance-backend/internal/ratelimit"
	"compliance-backend/internal/shared/config"
	"compliance-backend/internal/shared/metrics"
	"compliance-backend/internal/shared/server/middleware"
	"compliance-backend/internal/shared/server/respond"
	"compliance-backend/internal/shared/storage/db"
	"compliance-backend/internal/vectorstore"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
// Every external dependency degrades to an in-process fallback so the server
// still starts in dev environments without Postgres or API credentials.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		conn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), conn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				conn = nil
			}
		}
		sqlDB = conn
	}

	var docRepo documents.Repo
	if sqlDB != nil {
		docRepo = &documents.PGRepo{DB: sqlDB}
	} else {
		docRepo = documents.NewMemoryRepo()
	}
	docSvc := &documents.Service{Repo: docRepo}
	docHandler := documents.NewHandler(docSvc)

	var embedder embedding.Service
	if client, err := embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel); err != nil {
		log.Printf("embedding client unavailable: %v", err)
		embedder = unconfiguredEmbedder{}
	} else {
		embedder = client
	}
	index, err := vectorstore.NewIndex(cfg.VectorIndexPath, embedder)
	if err != nil {
		log.Printf("vector index persistence unavailable, using memory index: %v", err)
		index, _ = vectorstore.NewIndex("", embedder)
	}

	var completer llm.Client
	if client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel); err != nil {
		log.Printf("llm client unavailable: %v", err)
		completer = unconfiguredCompleter{}
	} else {
		completer = client
	}

	governor := ratelimit.NewGovernor(cfg.RequestsPerMinute, cfg.TokensPerMinute)

	var progressStore progress.Store
	if store, err := progress.NewFileStore(cfg.ProgressDir); err != nil {
		log.Printf("progress dir unavailable, using memory store: %v", err)
		progressStore = progress.NewMemoryStore()
	} else {
		progressStore = store
	}
	tracker := progress.NewTracker(progressStore)

	var runRepo analysis.Repo
	if sqlDB != nil {
		runRepo = analysis.NewPGRepo(sqlDB)
	} else if fileRepo, err := analysis.NewFileRepo(cfg.ResultsDir); err == nil {
		runRepo = fileRepo
	} else {
		log.Printf("results dir unavailable, using memory repo: %v", err)
		runRepo = analysis.NewMemoryRepo()
	}

	checklistRepo := checklist.NewFileRepo(cfg.ChecklistDir)
	checklistHandler := checklist.NewHandler(checklistRepo)

	engine := analysis.NewEngine(index, governor, completer)
	orchestrator := analysis.NewOrchestrator(engine, checklistRepo, governor, tracker, runRepo)
	analysisHandler := &analysis.Handler{
		Orchestrator: orchestrator,
		Runs:         runRepo,
		Tracker:      tracker,
		Governor:     governor,
		Docs:         docRepo,
		Index:        index,
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	docHandler.RegisterRoutes(api)
	checklistHandler.RegisterRoutes(api)
	analysisHandler.RegisterRoutes(api)
	r.GET("/metrics", metrics.Handler())

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

// unconfiguredCompleter stands in when no API key is configured; each call
// fails fast with a clear error that degrades into an N/A result.
type unconfiguredCompleter struct{}

func (unconfiguredCompleter) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("llm client not configured: set OPENAI_API_KEY")
}

type unconfiguredEmbedder struct{}

func (unconfiguredEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding client not configured: set OPENAI_API_KEY")
}

func (unconfiguredEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding client not configured: set OPENAI_API_KEY")
}
