package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "./configs/config.yaml"

	defaultSeparator    = "\n"
	defaultChunkSize    = 500
	defaultChunkOverlap = 200
	defaultTopK         = 3

	defaultRemoteBaseURL  = "https://models.github.ai/inference"
	defaultAPIKeyEnv      = "OPENAI_API_KEY"
	defaultEmbeddingModel = "openai/text-embedding-3-small"
	defaultChatModel      = "openai/gpt-4o-mini"
	defaultTimeoutSecs    = 60
	defaultOllamaURL      = "http://localhost:11434"
	defaultLocalModel     = "all-minilm"
	defaultKeepAlive      = "30m"
	defaultServerAddr     = ":8080"
	defaultMaxUploadMB    = 32
	defaultLogLevel       = "debug"
	defaultLogFile        = "askpdf.log"
	remoteEmbeddingDims   = 1536
	localEmbeddingDims    = 384
)

type Config struct {
	RAG    RAGConfig    `yaml:"rag"`
	Remote RemoteConfig `yaml:"remote"`
	Local  LLMConfig    `yaml:"local"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// RAGConfig holds the chunking and retrieval policy.
type RAGConfig struct {
	Separator    string `yaml:"separator"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
}

// RemoteConfig configures the hosted OpenAI-compatible inference endpoint.
// APIKey is never read from the file; ResolveCredentials fills it from the
// environment variable named by APIKeyEnv.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	APIKey         string `yaml:"-"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
	ChatModel      string `yaml:"chat_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// LLMConfig configures the local Ollama embedding model.
type LLMConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	KeepAlive  string `yaml:"keep_alive"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig reads the yaml config at path. A missing file is not an error,
// the defaults are returned instead.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with every field set to its default value.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadEnv loads a .env file from the working directory if there is one.
func LoadEnv() {
	_ = godotenv.Load()
}

// ResolveCredentials copies the bearer token for the remote provider from
// the process environment into the config.
func (c *Config) ResolveCredentials() {
	c.Remote.APIKey = strings.TrimSpace(os.Getenv(c.Remote.APIKeyEnv))
}

func (c *Config) applyDefaults() {
	if c.RAG.Separator == "" {
		c.RAG.Separator = defaultSeparator
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
		if c.RAG.ChunkOverlap == 0 {
			c.RAG.ChunkOverlap = defaultChunkOverlap
		}
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = defaultTopK
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = defaultRemoteBaseURL
	}
	if c.Remote.APIKeyEnv == "" {
		c.Remote.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Remote.EmbeddingModel == "" {
		c.Remote.EmbeddingModel = defaultEmbeddingModel
	}
	if c.Remote.Dimensions == 0 {
		c.Remote.Dimensions = remoteEmbeddingDims
	}
	if c.Remote.ChatModel == "" {
		c.Remote.ChatModel = defaultChatModel
	}
	if c.Remote.TimeoutSecs == 0 {
		c.Remote.TimeoutSecs = defaultTimeoutSecs
	}

	if c.Local.BaseURL == "" {
		c.Local.BaseURL = defaultOllamaURL
	}
	if c.Local.Model == "" {
		c.Local.Model = defaultLocalModel
	}
	if c.Local.Dimensions == 0 {
		c.Local.Dimensions = localEmbeddingDims
	}
	if c.Local.KeepAlive == "" {
		c.Local.KeepAlive = defaultKeepAlive
	}

	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}

	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.File == "" {
		c.Log.File = defaultLogFile
	}
}
