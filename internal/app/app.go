// -----------------------------------------------------------------------
// App - Component wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/handlers"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
	"github.com/delsolprimehomes/clustergen/internal/services/citations"
	"github.com/delsolprimehomes/clustergen/internal/services/events"
	"github.com/delsolprimehomes/clustergen/internal/services/generator"
	"github.com/delsolprimehomes/clustergen/internal/services/images"
	"github.com/delsolprimehomes/clustergen/internal/services/llm"
	"github.com/delsolprimehomes/clustergen/internal/services/scheduler"
	"github.com/delsolprimehomes/clustergen/internal/services/translation"
	"github.com/delsolprimehomes/clustergen/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService

	LLMService   interfaces.LLMService
	ImageService interfaces.ImageService

	Orchestrator *generator.Orchestrator
	Machine      *translation.Machine
	Repairer     *translation.Repairer
	Sweeper      *scheduler.RecoverySweeper

	JobHandler         *handlers.JobHandler
	TranslationHandler *handlers.TranslationHandler
	StatusHandler      *handlers.StatusHandler
	WSHandler          *handlers.WebSocketHandler
}

// New wires the full application from configuration
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventService := events.NewService(logger)
	kv := storageManager.KeyValueStorage()

	llmService, err := llm.NewLLMService(config, kv, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	// Gemini backs image generation regardless of the text provider; its
	// output stages locally before the image store promotes it.
	stagingDir := filepath.Join(config.Storage.Images.Dir, "staging")
	imageService, err := llm.NewGeminiService(&config.Gemini, kv, stagingDir, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize image service: %w", err)
	}

	imageStore, err := images.NewStore(imageService, &config.Storage.Images, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	genCfg := &config.Generation
	domainFilter := citations.NewDomainFilter(genCfg.ApprovedDomains, logger)
	finder := citations.NewFinder(llmService, domainFilter, logger)
	acquirer := citations.NewAcquirer(finder, domainFilter, genCfg, logger)

	planner := generator.NewPlanner(llmService, genCfg, logger)
	articleGen := generator.NewArticleGenerator(llmService, imageStore, genCfg, logger)
	linker := generator.NewLinker(llmService, domainFilter, genCfg, logger)

	orchestrator := generator.NewOrchestrator(
		storageManager.JobStorage(),
		llmService,
		planner,
		articleGen,
		acquirer,
		linker,
		eventService,
		genCfg,
		logger,
	)

	qaGenerator := translation.NewLLMQAGenerator(llmService, storageManager.ContentStorage(), &config.Translation, logger)
	machine := translation.NewMachine(storageManager.ContentStorage(), qaGenerator, eventService, &config.Translation, logger)
	repairer := translation.NewRepairer(storageManager.ContentStorage(), config.Translation.SourceLanguage, logger)

	sweeper := scheduler.NewRecoverySweeper(storageManager.JobStorage(), &config.Recovery, genCfg, logger)

	app := &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		EventService:   eventService,
		LLMService:     llmService,
		ImageService:   imageService,
		Orchestrator:   orchestrator,
		Machine:        machine,
		Repairer:       repairer,
		Sweeper:        sweeper,

		JobHandler:         handlers.NewJobHandler(orchestrator, storageManager.JobStorage(), genCfg, logger),
		TranslationHandler: handlers.NewTranslationHandler(machine, repairer, logger),
		StatusHandler:      handlers.NewStatusHandler(config, logger),
		WSHandler:          handlers.NewWebSocketHandler(eventService, logger),
	}

	return app, nil
}

// Start launches background components. A startup sweep immediately fails
// over jobs orphaned by a previous crash so their cluster claims free up.
func (a *App) Start(ctx context.Context) error {
	if a.Config.Recovery.Enabled {
		if recovered, err := a.Sweeper.Sweep(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Startup recovery sweep failed")
		} else if recovered > 0 {
			a.Logger.Info().Int("recovered", recovered).Msg("Startup recovery sweep marked stalled jobs failed")
		}
		if err := a.Sweeper.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts everything down in reverse dependency order
func (a *App) Close() error {
	if a.Config.Recovery.Enabled {
		a.Sweeper.Stop()
	}
	a.WSHandler.Close()
	a.EventService.Close()

	if err := a.LLMService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("LLM service close failed")
	}
	if err := a.ImageService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Image service close failed")
	}

	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
