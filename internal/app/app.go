// Package app wires configuration, storage, clients, and services into the
// shared application core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nwillis/stockchat/internal/clients/gemini"
	"github.com/nwillis/stockchat/internal/clients/yahoo"
	"github.com/nwillis/stockchat/internal/common"
	"github.com/nwillis/stockchat/internal/interfaces"
	"github.com/nwillis/stockchat/internal/services/analysis"
	"github.com/nwillis/stockchat/internal/services/chat"
	"github.com/nwillis/stockchat/internal/storage"
)

// App holds all initialized services and clients. It is the shared core used
// by cmd/stockchat-server.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	MarketClient    interfaces.MarketDataClient
	LLMClient       interfaces.LLMClient
	ChatService     interfaces.ChatService
	AnalysisService interfaces.AnalysisService
	StartupTime     time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Config resolution: provided path, STOCKCHAT_CONFIG, binary dir, then
	// the development fallback
	if configPath == "" {
		configPath = os.Getenv("STOCKCHAT_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "stockchat.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stockchat.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	marketClient := yahoo.NewClient(
		yahoo.WithLogger(logger),
		yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
		yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
		yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
	)

	var llmClient interfaces.LLMClient
	if config.Clients.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(context.Background(), config.Clients.Gemini.APIKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			llmClient = geminiClient
		}
	} else {
		logger.Warn().Msg("Gemini API key not configured - analysis will be unavailable")
	}

	chatService := chat.NewService(storageManager.ChatStore(), logger)

	var analysisService interfaces.AnalysisService
	if llmClient != nil {
		analysisService = analysis.NewService(
			analysis.NewClassifier(llmClient, logger),
			analysis.NewRouter(marketClient, logger, config.Clients.Yahoo.GetFetchBudget()),
			analysis.NewNarrator(llmClient, logger),
			chatService,
			logger,
		)
	}

	a := &App{
		Config:          config,
		Logger:          logger,
		Storage:         storageManager,
		MarketClient:    marketClient,
		LLMClient:       llmClient,
		ChatService:     chatService,
		AnalysisService: analysisService,
		StartupTime:     startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
