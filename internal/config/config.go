// Package config loads chorale configuration from a YAML file with
// environment variable overrides. Every field has a usable default so the
// pipeline can boot with no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Workspace string `yaml:"workspace"` // Base dir for logs, images, ledger

	Voice     LLMConfig       `yaml:"voice"`     // Primary generative model
	Director  LLMConfig       `yaml:"director"`  // Refinement model
	Embedding EmbeddingConfig `yaml:"embedding"` // Short-text space (memory, ledger)
	Archive   EmbeddingConfig `yaml:"archive"`   // Long-term archive space
	Store     StoreConfig     `yaml:"store"`
	Memory    MemoryConfig    `yaml:"memory"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Tools     ToolsConfig     `yaml:"tools"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures one chat completion backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, ollama, genai
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig configures one embedding backend. The memory/ledger
// space and the archive space are deliberately independent: they use
// different models with different dimensions and are never compared.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // ollama, openai, genai
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// StoreConfig configures the vector store backend.
type StoreConfig struct {
	Provider string `yaml:"provider"` // qdrant, memory
	Addr     string `yaml:"addr"`     // host:port for the qdrant gRPC endpoint
}

// MemoryConfig names the collections the memory layer uses.
type MemoryConfig struct {
	Collection        string `yaml:"collection"`         // Conversational memory
	ArchiveCollection string `yaml:"archive_collection"` // Long-term exchange archive
	CorpusCollection  string `yaml:"corpus_collection"`  // Read-only verse corpus
	AmbientResults    int    `yaml:"ambient_results"`    // k for the unconditional recall
}

// LedgerConfig configures the witness ledger.
type LedgerConfig struct {
	Path       string `yaml:"path"`       // JSONL append-only log
	Collection string `yaml:"collection"` // Semantic index collection
}

// ToolsConfig configures external tool servers and the image output dir.
type ToolsConfig struct {
	Servers  map[string]ToolServerConfig `yaml:"servers"`
	ImageDir string                      `yaml:"image_dir"`
	Timeout  time.Duration               `yaml:"timeout"` // Per tool call
}

// ToolServerConfig describes one stdio tool server.
type ToolServerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Tools   []string `yaml:"tools"` // Tool names this server answers
}

// PipelineConfig controls which stages are active.
type PipelineConfig struct {
	DirectorEnabled     bool `yaml:"director_enabled"`
	CorpusRecallEnabled bool `yaml:"corpus_recall_enabled"`
}

// LoggingConfig controls the category file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// Default returns a configuration that works against local backends.
func Default() Config {
	return Config{
		Workspace: ".",
		Voice: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 1.1,
			MaxTokens:   4096,
		},
		Director: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 1.0,
			MaxTokens:   1024,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			BaseURL:    "http://localhost:11434",
			Model:      "all-minilm",
			Dimensions: 384,
		},
		Archive: EmbeddingConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Store: StoreConfig{
			Provider: "qdrant",
			Addr:     "localhost:6334",
		},
		Memory: MemoryConfig{
			Collection:        "voice_memory",
			ArchiveCollection: "voice_conversations",
			CorpusCollection:  "verse_corpus",
			AmbientResults:    3,
		},
		Ledger: LedgerConfig{
			Path:       "data/witness_ledger.jsonl",
			Collection: "witness_ledger",
		},
		Tools: ToolsConfig{
			Servers:  map[string]ToolServerConfig{},
			ImageDir: "data/images",
			Timeout:  5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			DirectorEnabled:     true,
			CorpusRecallEnabled: true,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not
// an error; a malformed one is. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets deployments swap keys and toggles without
// touching the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHORALE_VOICE_MODEL"); v != "" {
		c.Voice.Model = v
	}
	if v := os.Getenv("CHORALE_DIRECTOR_MODEL"); v != "" {
		c.Director.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Voice.APIKey == "" {
			c.Voice.APIKey = v
		}
		if c.Director.APIKey == "" {
			c.Director.APIKey = v
		}
		if c.Archive.APIKey == "" {
			c.Archive.APIKey = v
		}
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if c.Voice.Provider == "genai" && c.Voice.APIKey == "" {
			c.Voice.APIKey = v
		}
		if c.Director.Provider == "genai" && c.Director.APIKey == "" {
			c.Director.APIKey = v
		}
	}
	if v := os.Getenv("QDRANT_ADDR"); v != "" {
		c.Store.Addr = v
	}
	if v := os.Getenv("CHORALE_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("CHORALE_DIRECTOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.DirectorEnabled = b
		}
	}
	if v := os.Getenv("CHORALE_CORPUS_RECALL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.CorpusRecallEnabled = b
		}
	}
	if v := os.Getenv("CHORALE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}
