package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/yangwenmai/leadsniper/internal/config"
	"github.com/yangwenmai/leadsniper/internal/connector"
	"github.com/yangwenmai/leadsniper/internal/engine"
	"github.com/yangwenmai/leadsniper/internal/events"
	"github.com/yangwenmai/leadsniper/internal/gateway"
	"github.com/yangwenmai/leadsniper/internal/leads"
	"github.com/yangwenmai/leadsniper/internal/logger"
	"github.com/yangwenmai/leadsniper/internal/quality"
	"github.com/yangwenmai/leadsniper/internal/store"
)

// app is the wired service graph shared by every subcommand.
type app struct {
	cfg    config.Config
	svc    *leads.Service
	bus    *events.InMemoryBus
	feed   *events.NotificationFeed
	closer io.Closer
}

// loadConfig reads configuration and installs the default logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	open, closer, err := store.Open(ctx, store.Options{
		Backend:  cfg.StoreBackend,
		DBPath:   cfg.DBPath,
		RedisURL: cfg.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gw, err := gateway.New(open, &gateway.MockProvider{}, gateway.Options{
		BaseURL:   cfg.PayBaseURL,
		Price:     cfg.AssetPrice,
		Currency:  cfg.AssetCurrency,
		Threshold: cfg.ApprovalThreshold,
		TokenTTL:  cfg.TokenTTL,
	})
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}
	validator := quality.New(cfg.IntentKeywords)
	pipeline, err := engine.NewPipeline(gen, validator, cfg.ApprovalThreshold)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	leadKV, err := open("leads")
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("opening lead store: %w", err)
	}

	bus := events.NewInMemoryBus(slog.Default())
	feed := events.NewNotificationFeed(0)
	bus.Subscribe(events.HighValueLeadReady{}.EventName(), feed)

	orch := leads.NewOrchestrator(pipeline, leads.NewRepository(leadKV), gw,
		leads.WithThreshold(cfg.ApprovalThreshold),
		leads.WithBus(bus),
	)
	svc := leads.NewService(orch, validator,
		leads.WithFetcher(connector.NewURLSource(cfg.HTTPTimeout)),
		leads.WithConcurrency(cfg.BatchConcurrency),
	)

	slog.Info("service ready",
		"store", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider,
		"stubs", cfg.UseStubs(),
		"threshold", cfg.ApprovalThreshold,
	)
	return &app{cfg: cfg, svc: svc, bus: bus, feed: feed, closer: closer}, nil
}

// Close waits for in-flight event handlers and releases the store.
func (a *app) Close() error {
	a.bus.Wait()
	return a.closer.Close()
}

// newGenerator selects the LLM backend. Without credentials the deterministic stub is used.
func newGenerator(ctx context.Context, cfg config.Config) (engine.Generator, error) {
	if cfg.UseStubs() {
		slog.Warn("no LLM credentials configured, using stub generator", "provider", cfg.LLMProvider)
		return &engine.StubGenerator{}, nil
	}
	switch cfg.LLMProvider {
	case "claude":
		return engine.NewClaudeClient(cfg.AnthropicKey,
			engine.WithClaudeModel(cfg.ClaudeModel),
			engine.WithClaudeTimeout(cfg.HTTPTimeout),
		), nil
	case "gemini":
		c, err := engine.NewGeminiClient(ctx, cfg.GeminiKey, engine.WithGeminiModel(cfg.GeminiModel))
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return c, nil
	case "ollama":
		return engine.NewOllamaClient(cfg.OllamaURL,
			engine.WithOllamaModel(cfg.OllamaModel),
			engine.WithOllamaTimeout(cfg.HTTPTimeout),
		), nil
	default:
		return engine.NewOpenAIClient(cfg.OpenAIKey,
			engine.WithBaseURL(cfg.OpenAIBaseURL),
			engine.WithModel(cfg.OpenAIModel),
			engine.WithTimeout(cfg.HTTPTimeout),
		), nil
	}
}
