// Package config loads runtime configuration from the environment, an
// optional .env file and an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLM provider names.
const (
	ProviderNone      = "none"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Storage backends.
const (
	StorageMemory  = "memory"
	StorageSurreal = "surreal"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ServerPort string

	// Storage backend: "memory" or "surreal"
	Storage string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM used by the job executor and the relay responder
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Model name whose tokenizer is used for ThreadInfo.tokenCount
	TokenModel string

	// Jobs
	JobConcurrency int

	// Relay
	RelayBotName string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors Config for YAML files. Values set here are used only
// when the matching environment variable is unset.
type fileConfig struct {
	ServerPort string `yaml:"server_port"`
	Storage    string `yaml:"storage"`
	SurrealDB  struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	LLM struct {
		Provider        string `yaml:"provider"`
		Model           string `yaml:"model"`
		OllamaHost      string `yaml:"ollama_host"`
		OpenAIAPIKey    string `yaml:"openai_api_key"`
		AnthropicAPIKey string `yaml:"anthropic_api_key"`
		AWSRegion       string `yaml:"aws_region"`
	} `yaml:"llm"`
	TokenModel     string `yaml:"token_model"`
	JobConcurrency int    `yaml:"job_concurrency"`
	RelayBotName   string `yaml:"relay_bot_name"`
	LogFile        string `yaml:"log_file"`
	LogLevel       string `yaml:"log_level"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first (existing environment variables win), then the YAML file named by
// ALTRON_CONFIG supplies defaults for anything the environment leaves unset.
func Load() Config {
	_ = godotenv.Load()

	var fc fileConfig
	if path := os.Getenv("ALTRON_CONFIG"); path != "" {
		loaded, err := readFile(path)
		if err != nil {
			slog.Warn("ignoring config file", "path", path, "error", err)
		} else {
			fc = loaded
		}
	}

	return fromSources(os.Getenv, fc)
}

// LoadFile parses a YAML config file on top of built-in defaults, ignoring
// the environment.
func LoadFile(path string) (Config, error) {
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return fromSources(func(string) string { return "" }, fc), nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

func fromSources(env func(string) string, fc fileConfig) Config {
	get := func(key, fileVal, defaultVal string) string {
		if val := env(key); val != "" {
			return val
		}
		if fileVal != "" {
			return fileVal
		}
		return defaultVal
	}

	concurrency := fc.JobConcurrency
	if v := env("ALTRON_JOB_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			concurrency = n
		}
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	return Config{
		ServerPort: get("ALTRON_SERVER_PORT", fc.ServerPort, "8484"),
		Storage:    strings.ToLower(get("ALTRON_STORAGE", fc.Storage, StorageMemory)),

		SurrealDBURL:       get("SURREALDB_URL", fc.SurrealDB.URL, "ws://localhost:8000/rpc"),
		SurrealDBNamespace: get("SURREALDB_NAMESPACE", fc.SurrealDB.Namespace, "altron"),
		SurrealDBDatabase:  get("SURREALDB_DATABASE", fc.SurrealDB.Database, "threads"),
		SurrealDBUser:      get("SURREALDB_USER", fc.SurrealDB.User, "root"),
		SurrealDBPass:      get("SURREALDB_PASS", fc.SurrealDB.Pass, "root"),
		SurrealDBAuthLevel: get("SURREALDB_AUTH_LEVEL", fc.SurrealDB.AuthLevel, "root"),

		LLMProvider:     strings.ToLower(get("ALTRON_LLM_PROVIDER", fc.LLM.Provider, ProviderNone)),
		LLMModel:        get("ALTRON_LLM_MODEL", fc.LLM.Model, "qwen3:4b"),
		OllamaHost:      get("OLLAMA_HOST", fc.LLM.OllamaHost, "http://localhost:11434"),
		OpenAIAPIKey:    get("OPENAI_API_KEY", fc.LLM.OpenAIAPIKey, ""),
		AnthropicAPIKey: get("ANTHROPIC_API_KEY", fc.LLM.AnthropicAPIKey, ""),
		AWSRegion:       get("AWS_REGION", fc.LLM.AWSRegion, "us-east-1"),

		TokenModel: get("ALTRON_TOKEN_MODEL", fc.TokenModel, "gpt-4o"),

		JobConcurrency: concurrency,

		RelayBotName: get("ALTRON_RELAY_BOT_NAME", fc.RelayBotName, "Altron"),

		LogFile:  get("ALTRON_LOG_FILE", fc.LogFile, "/tmp/altron.log"),
		LogLevel: parseLogLevel(get("ALTRON_LOG_LEVEL", fc.LogLevel, "INFO")),
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
