package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type ModelConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	DocsDir    string
	ListenAddr string

	StoreBackend string
	PostgresDSN  string
	Neo4jURI     string
	Neo4jUser    string
	Neo4jPass    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	LLM        ModelConfig
	Embeddings ModelConfig

	ChunkSize    int
	ChunkOverlap int
	SearchTopK   int

	MaxToolRounds int
	MaxExchanges  int

	// CatalogMaxDistance rejects fuzzy course-name matches farther than this
	// distance. Zero disables the floor and the nearest entry always wins.
	CatalogMaxDistance float64
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		DocsDir:      getEnv("DOCS_DIR", "./docs"),
		ListenAddr:   getEnv("LISTEN_ADDR", ":8000"),
		StoreBackend: getEnv("STORE_BACKEND", StoreMemory),
		PostgresDSN:  getEnv("POSTGRES_DSN", "postgres://localhost:5432/course-agent?sslmode=disable"),
		Neo4jURI:     getEnv("NEO4J_URI", ""),
		Neo4jUser:    getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:    getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		LLM: ModelConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Embeddings: ModelConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},

		ChunkSize:    getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),
		SearchTopK:   getEnvInt("SEARCH_TOP_K", 5),

		MaxToolRounds: getEnvInt("MAX_TOOL_ROUNDS", 2),
		MaxExchanges:  getEnvInt("MAX_HISTORY_EXCHANGES", 2),

		CatalogMaxDistance: getEnvFloat("CATALOG_MAX_DISTANCE", 0),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
