package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"chorale/internal/config"
	"chorale/internal/corpus"
	"chorale/internal/embedding"
	"chorale/internal/ledger"
	"chorale/internal/llm"
	"chorale/internal/logging"
	"chorale/internal/memory"
	"chorale/internal/pipeline"
	"chorale/internal/tools"
	"chorale/internal/vecstore"
)

// app bundles the wired service layer every command needs. Commands
// that talk to the models call buildPipeline on top of it.
type app struct {
	cfg     config.Config
	store   vecstore.Store
	engine  embedding.Engine
	memory  *memory.Service
	archive *memory.Archive
	corpus  *corpus.Corpus
	ledger  *ledger.Ledger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Info("configuration resolved",
		zap.String("config", configPath),
		zap.String("workspace", cfg.Workspace),
		zap.String("voice_model", cfg.Voice.Model),
		zap.String("director_model", cfg.Director.Model),
		zap.Bool("director_enabled", cfg.Pipeline.DirectorEnabled))

	if err := logging.Initialize(cfg.Workspace, cfg.Logging.DebugMode || verbose, cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize file logging: %w", err)
	}

	store, err := newStore(cfg.Store)
	if err != nil {
		logger.Error("vector store unavailable", zap.String("provider", cfg.Store.Provider), zap.Error(err))
		return nil, err
	}
	logger.Info("vector store ready",
		zap.String("provider", cfg.Store.Provider),
		zap.String("addr", cfg.Store.Addr))

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("memory embedding engine: %w", err)
	}
	archiveEngine, err := embedding.NewEngine(embedding.Config{
		Provider:   cfg.Archive.Provider,
		BaseURL:    cfg.Archive.BaseURL,
		APIKey:     cfg.Archive.APIKey,
		Model:      cfg.Archive.Model,
		Dimensions: cfg.Archive.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("archive embedding engine: %w", err)
	}

	mem := memory.NewService(store, engine, cfg.Memory.Collection)
	if err := mem.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize memory: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		memory:  mem,
		archive: memory.NewArchive(store, archiveEngine, cfg.Memory.ArchiveCollection),
		corpus:  corpus.New(store, engine, cfg.Memory.CorpusCollection),
		ledger:  ledger.New(resolvePath(cfg.Workspace, cfg.Ledger.Path), store, engine, cfg.Ledger.Collection),
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	logging.CloseAll()
}

// buildPipeline wires the chat clients and the full exchange graph.
func (a *app) buildPipeline() (*pipeline.Pipeline, error) {
	cfg := a.cfg

	voice, err := llm.NewClient(llm.Config{
		Provider: cfg.Voice.Provider,
		BaseURL:  cfg.Voice.BaseURL,
		APIKey:   cfg.Voice.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("voice client: %w", err)
	}
	director, err := llm.NewClient(llm.Config{
		Provider: cfg.Director.Provider,
		BaseURL:  cfg.Director.BaseURL,
		APIKey:   cfg.Director.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("director client: %w", err)
	}

	gen := pipeline.NewGenerator(voice, cfg.Voice, a.memory, a.archive, a.corpus,
		cfg.Memory.AmbientResults, cfg.Pipeline.CorpusRecallEnabled)
	dir := pipeline.NewDirector(director, cfg.Director)

	runner := tools.NewRunner(cfg.Tools.Servers, cfg.Tools.Timeout)
	var math pipeline.MathRunner
	if runner.Knows("solve_math") {
		math = tools.NewMathSolver(runner)
	}
	images := imageClient(cfg)
	saver := tools.NewImageSaver(resolvePath(cfg.Workspace, cfg.Tools.ImageDir))
	exec := pipeline.NewExecutor(images, "", saver, math)

	logger.Info("pipeline wired",
		zap.String("voice_provider", cfg.Voice.Provider),
		zap.String("director_provider", cfg.Director.Provider),
		zap.Bool("math_tool", math != nil),
		zap.Bool("image_backend", images != nil))

	return pipeline.New(gen, dir, exec, a.ledger, a.memory, cfg.Pipeline.DirectorEnabled), nil
}

func newStore(cfg config.StoreConfig) (vecstore.Store, error) {
	switch cfg.Provider {
	case "qdrant":
		return vecstore.NewQdrantStore(cfg.Addr)
	case "memory":
		return vecstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store provider: %s (use 'qdrant' or 'memory')", cfg.Provider)
	}
}

// imageClient returns the image generation backend, or nil when no
// OpenAI-compatible endpoint is configured. The executor tolerates nil.
func imageClient(cfg config.Config) pipeline.ImageGenerator {
	if cfg.Voice.Provider == "openai" && cfg.Voice.APIKey != "" {
		return llm.NewOpenAIClient(cfg.Voice.BaseURL, cfg.Voice.APIKey)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return llm.NewOpenAIClient("https://api.openai.com/v1", key)
	}
	return nil
}

func resolvePath(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) || workspace == "" {
		return path
	}
	return filepath.Join(workspace, path)
}
