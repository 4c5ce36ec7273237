package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Blob    BlobConfig    `yaml:"blob"`
	Catalog CatalogConfig `yaml:"catalog"`
	LLM     LLMConfig     `yaml:"llm"`
	Vector  VectorConfig  `yaml:"vector"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Chat    ChatConfig    `yaml:"chat"`
	Lock    LockConfig    `yaml:"lock"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// BlobConfig contains S3-compatible blob store access.
type BlobConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"accessKeyId"`
	SecretAccessKey string        `yaml:"secretAccessKey"`
	Region          string        `yaml:"region"`
	Bucket          string        `yaml:"bucket"`
	PresignTTL      time.Duration `yaml:"presignTtl"`
	CallTimeout     time.Duration `yaml:"callTimeout"`
}

// CatalogConfig contains the relational catalog connection settings.
type CatalogConfig struct {
	URL         string        `yaml:"url"`
	MaxConns    int32         `yaml:"maxConns"`
	MinConns    int32         `yaml:"minConns"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// LLMConfig contains OpenAI-compatible provider settings.
type LLMConfig struct {
	APIKey         string        `yaml:"apiKey"`
	BaseURL        string        `yaml:"baseUrl"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	Temperature    float32       `yaml:"temperature"`
	CallTimeout    time.Duration `yaml:"callTimeout"`
	EmbedTimeout   time.Duration `yaml:"embedTimeout"`
}

// VectorConfig contains vector index settings. When URL is empty the
// pgvector adapter on the catalog pool is used instead of the hosted index.
type VectorConfig struct {
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Namespace   string        `yaml:"namespace"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// IngestConfig drives the ingestion pipeline.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunkSize"`
	ChunkOverlap int `yaml:"chunkOverlap"`
}

// ChatConfig drives the chat turn controller and context assembler.
type ChatConfig struct {
	MaxContextMessages int   `yaml:"maxContextMessages"`
	MaxInlineBytes     int64 `yaml:"maxInlineBytes"`
	MaxFileBytes       int64 `yaml:"maxFileBytes"`
	DefaultTopK        int   `yaml:"defaultTopK"`
	MaxTopK            int   `yaml:"maxTopK"`
}

// LockConfig enables the per-conversation advisory lock.
type LockConfig struct {
	ValkeyAddr string        `yaml:"valkeyAddr"`
	TTL        time.Duration `yaml:"ttl"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setString(&cfg.Blob.Endpoint, "BLOB_ENDPOINT")
	setString(&cfg.Blob.AccessKeyID, "BLOB_ACCESS_KEY_ID")
	setString(&cfg.Blob.SecretAccessKey, "BLOB_SECRET_ACCESS_KEY")
	setString(&cfg.Blob.Region, "BLOB_REGION")
	setString(&cfg.Blob.Bucket, "BLOB_BUCKET")
	setString(&cfg.Catalog.URL, "CATALOG_URL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&cfg.Vector.URL, "VECTOR_URL")
	setString(&cfg.Vector.Token, "VECTOR_TOKEN")
	setString(&cfg.Vector.Namespace, "VECTOR_NAMESPACE")
	setString(&cfg.Lock.ValkeyAddr, "LOCK_VALKEY_ADDR")

	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("CATALOG_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("INGEST_CHUNK_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.ChunkSize = parsed
		}
	}
	if v := os.Getenv("INGEST_CHUNK_OVERLAP"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.ChunkOverlap = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Blob: BlobConfig{
			PresignTTL:  time.Hour,
			CallTimeout: 30 * time.Second,
		},
		Catalog: CatalogConfig{
			MaxConns:    8,
			MinConns:    0,
			CallTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Model:          "gpt-4.1-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
			CallTimeout:    60 * time.Second,
			EmbedTimeout:   15 * time.Second,
		},
		Vector: VectorConfig{
			Namespace:   "default",
			CallTimeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			ChunkSize:    512,
			ChunkOverlap: 100,
		},
		Chat: ChatConfig{
			MaxContextMessages: 20,
			MaxInlineBytes:     50 << 20,
			MaxFileBytes:       50 << 20,
			DefaultTopK:        5,
			MaxTopK:            20,
		},
		Lock: LockConfig{
			TTL: 30 * time.Second,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.Blob.Bucket == "" {
		return errors.New("blob.bucket cannot be empty")
	}
	if c.Catalog.URL == "" {
		return errors.New("catalog.url cannot be empty")
	}
	if c.LLM.EmbeddingModel == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if c.Ingest.ChunkSize <= 0 {
		return errors.New("ingest.chunkSize must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 {
		return errors.New("ingest.chunkOverlap cannot be negative")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return errors.New("ingest.chunkOverlap must be smaller than ingest.chunkSize")
	}
	if c.Chat.MaxContextMessages <= 0 {
		return errors.New("chat.maxContextMessages must be positive")
	}
	if c.Chat.MaxInlineBytes <= 0 {
		return errors.New("chat.maxInlineBytes must be positive")
	}
	if c.Chat.DefaultTopK <= 0 || c.Chat.MaxTopK < c.Chat.DefaultTopK {
		return errors.New("chat.defaultTopK and chat.maxTopK are inconsistent")
	}
	if c.Vector.URL != "" && c.Vector.Token == "" {
		return errors.New("vector.token cannot be empty when vector.url is set")
	}
	return nil
}
