// Package app assembles the application: configuration, database pool,
// migrations, model provider, query engine and input resolver. Commands call
// Setup once and work with the returned container.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digitizerx/digitizerx/db"
	"github.com/digitizerx/digitizerx/internal/ai"
	"github.com/digitizerx/digitizerx/internal/config"
	"github.com/digitizerx/digitizerx/internal/database"
	"github.com/digitizerx/digitizerx/internal/rag"
	"github.com/digitizerx/digitizerx/internal/resolver"
)

// App is the core application container.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Provider *ai.OpenAI
	Engine   *rag.Engine
	Resolver *resolver.Resolver
}

// Setup creates and initializes the application. Call Close to release
// resources; on setup failure everything already initialized is cleaned up.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.Pool = pool

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	provider, err := ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating model provider: %w", err)
	}
	a.Provider = provider

	searcher := rag.NewPostgresSearcher(pool)
	a.Engine = rag.New(provider, searcher, searcher, rag.Options{
		ChatModel:      cfg.ChatModel,
		RewriteModel:   cfg.RewriteModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    float64(cfg.Temperature),
		Pricing: rag.Pricing{
			ChatIn:  cfg.PriceChatIn,
			ChatOut: cfg.PriceChatOut,
			Embed:   cfg.PriceEmbed,
		},
		MMRLambda:  cfg.MMRLambda,
		RelaxDelta: cfg.RelaxDelta,
	}, logger)

	a.Resolver = resolver.New(resolver.NewPostgresDirectory(pool), cfg.DefaultPlant, logger)

	return a, nil
}

// Close releases all resources held by the container.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
