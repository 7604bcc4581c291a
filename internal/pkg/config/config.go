package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the immutable process configuration. It is loaded once at
// startup and handed to the chunker, extraction client and job
// controller at construction time.
type Config struct {
	Environment string

	Database DatabaseConfig
	Cache    CacheConfig
	Queue    QueueConfig
	LLM      LLMConfig
	Parsing  ParsingConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	LogLevel        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // minutes
	MaxConnIdleTime int // minutes
}

// CacheConfig holds Redis settings shared by the cache and the task queue
type CacheConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  int // seconds
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	PoolSize     int
	MinIdleConns int
}

// QueueConfig holds Asynq worker settings
type QueueConfig struct {
	RedisHost      string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	DialTimeout    int // seconds
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	Concurrency    int
	StrictPriority bool
}

// LLMConfig holds extraction service (Gemini) settings
type LLMConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

// ParsingConfig holds document chunking and extraction settings
type ParsingConfig struct {
	ChunkSize         int      // pages per window
	ChunkOverlap      int      // pages shared between adjacent windows
	MaxConcurrency    int      // concurrent extraction calls per job
	RenderDPI         int      // raster resolution for page images
	AllowedExtensions []string // document types eligible for parsing
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using environment variables only")
		}
	}

	viper.SetDefault("ENV", "development")

	// Database defaults
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_NAME", "financials")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_LOG_LEVEL", "silent")
	viper.SetDefault("DB_MAX_CONNECTIONS", 25)
	viper.SetDefault("DB_MIN_CONNECTIONS", 5)
	viper.SetDefault("DB_MAX_CONN_LIFETIME", 60)
	viper.SetDefault("DB_MAX_CONN_IDLE_TIME", 10)

	// Redis defaults
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	viper.SetDefault("REDIS_READ_TIMEOUT", 3)
	viper.SetDefault("REDIS_WRITE_TIMEOUT", 3)
	viper.SetDefault("REDIS_POOL_SIZE", 10)
	viper.SetDefault("REDIS_MIN_IDLE_CONNS", 2)

	// Worker defaults
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("WORKER_STRICT_PRIORITY", false)

	// LLM defaults
	viper.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")

	// Parsing defaults
	viper.SetDefault("PARSING_CHUNK_SIZE", 25)
	viper.SetDefault("PARSING_CHUNK_OVERLAP", 5)
	viper.SetDefault("PARSING_MAX_CONCURRENT", 3)
	viper.SetDefault("PARSING_RENDER_DPI", 150)
	viper.SetDefault("PARSING_ALLOWED_EXTENSIONS", ".pdf")

	viper.AutomaticEnv()

	cfg := &Config{
		Environment: viper.GetString("ENV"),
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			LogLevel:        viper.GetString("DB_LOG_LEVEL"),
			MaxConnections:  viper.GetInt("DB_MAX_CONNECTIONS"),
			MinConnections:  viper.GetInt("DB_MIN_CONNECTIONS"),
			MaxConnLifetime: viper.GetInt("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime: viper.GetInt("DB_MAX_CONN_IDLE_TIME"),
		},
		Cache: CacheConfig{
			Host:         viper.GetString("REDIS_HOST"),
			Port:         viper.GetInt("REDIS_PORT"),
			Password:     viper.GetString("REDIS_PASSWORD"),
			DB:           viper.GetInt("REDIS_DB"),
			DialTimeout:  viper.GetInt("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  viper.GetInt("REDIS_READ_TIMEOUT"),
			WriteTimeout: viper.GetInt("REDIS_WRITE_TIMEOUT"),
			PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		Queue: QueueConfig{
			RedisHost:      viper.GetString("REDIS_HOST"),
			RedisPort:      viper.GetInt("REDIS_PORT"),
			RedisPassword:  viper.GetString("REDIS_PASSWORD"),
			RedisDB:        viper.GetInt("REDIS_DB"),
			DialTimeout:    viper.GetInt("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:    viper.GetInt("REDIS_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("REDIS_WRITE_TIMEOUT"),
			Concurrency:    viper.GetInt("WORKER_CONCURRENCY"),
			StrictPriority: viper.GetBool("WORKER_STRICT_PRIORITY"),
		},
		LLM: LLMConfig{
			GeminiAPIKey: viper.GetString("GEMINI_API_KEY"),
			GeminiModel:  viper.GetString("GEMINI_MODEL"),
		},
		Parsing: ParsingConfig{
			ChunkSize:         viper.GetInt("PARSING_CHUNK_SIZE"),
			ChunkOverlap:      viper.GetInt("PARSING_CHUNK_OVERLAP"),
			MaxConcurrency:    viper.GetInt("PARSING_MAX_CONCURRENT"),
			RenderDPI:         viper.GetInt("PARSING_RENDER_DPI"),
			AllowedExtensions: strings.Split(viper.GetString("PARSING_ALLOWED_EXTENSIONS"), ","),
		},
	}

	if cfg.Database.User == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Parsing.ChunkSize <= 0 {
		return nil, fmt.Errorf("PARSING_CHUNK_SIZE must be positive")
	}
	if cfg.Parsing.ChunkOverlap < 0 || cfg.Parsing.ChunkOverlap >= cfg.Parsing.ChunkSize {
		return nil, fmt.Errorf("PARSING_CHUNK_OVERLAP must be non-negative and smaller than PARSING_CHUNK_SIZE")
	}
	if cfg.Parsing.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("PARSING_MAX_CONCURRENT must be positive")
	}

	return cfg, nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsAllowedExtension reports whether a document extension is eligible
// for financial statement parsing.
func (c *ParsingConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, allowed := range c.AllowedExtensions {
		if strings.ToLower(strings.TrimSpace(allowed)) == ext {
			return true
		}
	}
	return false
}
