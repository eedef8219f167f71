// Command loupe indexes local directories and searches them with
// combined keyword and semantic retrieval.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/loupe-search/loupe/internal/adapters/driven/config/file"
	ollamaembed "github.com/loupe-search/loupe/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/loupe-search/loupe/internal/adapters/driven/embedding/openai"
	openairecog "github.com/loupe-search/loupe/internal/adapters/driven/recognition/openai"
	"github.com/loupe-search/loupe/internal/adapters/driven/storage/sqlite"
	"github.com/loupe-search/loupe/internal/adapters/driving/cli"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/services"
	"github.com/loupe-search/loupe/internal/extractors"
	"github.com/loupe-search/loupe/internal/index"
	"github.com/loupe-search/loupe/internal/index/text"
	"github.com/loupe-search/loupe/internal/index/vector"
	"github.com/loupe-search/loupe/internal/logger"
	"github.com/loupe-search/loupe/internal/postprocessors"
	"github.com/loupe-search/loupe/internal/scanner"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env next to the binary or in the working directory may carry
	// API keys; absence is not an error.
	_ = godotenv.Load()

	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.GetString("data_dir"))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer store.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	recognition, vision := buildRecognition(cfg, embedder)
	if recognition != nil {
		defer recognition.Close()
	}
	if vision != nil {
		defer vision.Close()
	}

	dual, err := buildIndexes(embedder)
	if err != nil {
		return err
	}
	defer dual.Close()

	ctx := context.Background()
	corrupt, err := dual.Hydrate(ctx, store.DocumentStore())
	if err != nil {
		return fmt.Errorf("hydrate indexes: %w", err)
	}

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	coordinator := services.NewCoordinator(services.CoordinatorConfig{
		Documents:  store.DocumentStore(),
		Index:      dual,
		Extractors: extractors.DefaultRegistry(vision, recognition),
		Embedder:   embedder,
		Pipeline:   pipeline,
		Scanner:    scanner.New(store.SnapshotStore()),
		Watcher:    scanner.NewWatcher(store.SnapshotStore()),
		Workers:    cfg.GetInt("workers"),
	})

	// Documents whose stored chunks could not be loaded are rebuilt
	// from the file on disk.
	for _, docID := range corrupt {
		if err := coordinator.Reindex(ctx, docID, true); err != nil {
			logger.Warn("Rebuild of corrupt document %s failed: %v", docID, err)
		}
	}

	searcher := services.NewSearchService(
		services.NewQueryNormaliser(embedder, recognition, vision),
		dual,
		store.DocumentStore(),
	)

	cli.SetServices(cli.Services{
		Indexer:  coordinator,
		Searcher: searcher,
	})

	return cli.Execute(version)
}

// buildEmbedder selects the embedding backend from configuration.
// No provider means lexical-only search.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	switch provider := cfg.GetString("embedding_provider"); provider {
	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     apiKey(cfg),
			BaseURL:    cfg.GetString("openai_base_url"),
			Model:      cfg.GetString("embedding_model"),
			Dimensions: cfg.GetInt("embedding_dimensions"),
		})
	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.GetString("ollama_base_url"),
			Model:      cfg.GetString("embedding_model"),
			Dimensions: cfg.GetInt("embedding_dimensions"),
		}), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// buildRecognition wires the speech and vision services when an OpenAI
// key is available. Both are optional; missing services disable the
// corresponding query modality and degrade media files to
// filename-only indexing.
func buildRecognition(cfg driven.ConfigStore, embedder driven.EmbeddingService) (driven.RecognitionService, driven.VisionService) {
	key := apiKey(cfg)
	if key == "" {
		return nil, nil
	}

	recogCfg := openairecog.Config{
		APIKey:  key,
		BaseURL: cfg.GetString("openai_base_url"),
	}

	var recognition driven.RecognitionService
	if svc, err := openairecog.NewRecognitionService(recogCfg); err == nil {
		recognition = svc
	} else {
		logger.Warn("Speech recognition disabled: %v", err)
	}

	var vision driven.VisionService
	if embedder != nil {
		if svc, err := openairecog.NewVisionService(recogCfg, embedder); err == nil {
			vision = svc
		} else {
			logger.Warn("Vision disabled: %v", err)
		}
	}

	return recognition, vision
}

func buildIndexes(embedder driven.EmbeddingService) (*index.Dual, error) {
	var vectorIdx driven.VectorIndex
	if embedder != nil {
		idx, err := vector.New(embedder.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("vector index: %w", err)
		}
		vectorIdx = idx
	}
	return index.NewDual(text.New(), vectorIdx), nil
}

func buildPipeline(cfg driven.ConfigStore) (driven.PostProcessorPipeline, error) {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)

	clean, err := registry.Build("cleaner", nil)
	if err != nil {
		return nil, fmt.Errorf("build cleaner: %w", err)
	}

	chunkerCfg := map[string]any{}
	if size := cfg.GetInt("chunk_size"); size > 0 {
		chunkerCfg["chunk_size"] = size
	}
	if overlap := cfg.GetInt("chunk_overlap"); overlap > 0 {
		chunkerCfg["overlap"] = overlap
	}
	chunk, err := registry.Build("chunker", chunkerCfg)
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}

	return postprocessors.NewPipeline(clean, chunk), nil
}

func apiKey(cfg driven.ConfigStore) string {
	if key := cfg.GetString("openai_api_key"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}
