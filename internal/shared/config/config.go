package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port              string
	DatabaseURL       string
	Env               string
	OpenAIAPIKey      string
	LLMModel          string
	EmbeddingModel    string
	ChecklistDir      string
	ResultsDir        string
	ProgressDir       string
	VectorIndexPath   string
	RequestsPerMinute int
	TokensPerMinute   int
	CORSAllowOrigin   []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       dbURL,
		Env:               env,
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-large"),
		ChecklistDir:      getEnv("CHECKLIST_DIR", "./checklist_data"),
		ResultsDir:        getEnv("RESULTS_DIR", "./data/analysis_results"),
		ProgressDir:       getEnv("PROGRESS_DIR", "./data/analysis_progress"),
		VectorIndexPath:   getEnv("VECTOR_INDEX_PATH", "./data/vector_indices.db"),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 30),
		TokensPerMinute:   getEnvInt("TOKENS_PER_MINUTE", 40000),
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		log.Printf("invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return parsed
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	default:
		return "dev"
	}
}
