package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ai/gemini"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/cryptobox"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/email"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/pipeline"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider/aggregator"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/provider/antibot"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ranking"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/resume"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/secrets"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/store"
)

// buildProviders constructs the provider set: the aggregator always, the
// scraping provider only when configured and enabled.
func buildProviders(config *Config, logger *zap.Logger) ([]provider.JobProvider, *antibot.Provider, error) {
	if config.Aggregator == nil {
		return nil, nil, errors.New("aggregator configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "aggregator api key",
		File: config.Aggregator.APIKeyFile,
		Env:  "AGGREGATOR_API_KEY",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set aggregator.api-key-file or AGGREGATOR_API_KEY)", err)
	}

	providers := []provider.JobProvider{
		aggregator.New(config.Aggregator.APIURL, apiKey, logger),
	}

	scraper, err := buildScraper(config, logger)
	if err != nil {
		return nil, nil, err
	}
	providers = append(providers, scraper)

	return providers, scraper, nil
}

// buildScraper wires the anti-bot provider. The session cookie stays sealed
// at rest; the provider decrypts it just-in-time through the cookie func.
func buildScraper(config *Config, logger *zap.Logger) (*antibot.Provider, error) {
	cfg := antibot.Config{}

	if li := config.LinkedIn; li != nil && li.Enabled {
		masterKey, err := secrets.Load(secrets.Source{
			Name: "credential master key",
			File: config.MasterKeyFile,
			Env:  "JOBMATCH_MASTER_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set master-key-file or JOBMATCH_MASTER_KEY)", err)
		}

		box, err := cryptobox.New(masterKey)
		if err != nil {
			return nil, err
		}

		blob := &cryptobox.Blob{
			Ciphertext: li.CookieCiphertext,
			Nonce:      li.CookieNonce,
			AuthTag:    li.CookieAuthTag,
		}

		cfg = antibot.Config{
			Enabled:          true,
			BaseURL:          li.BaseURL,
			FailureThreshold: li.FailureThreshold,
			Cookie: func(context.Context) (string, error) {
				return box.Open(blob)
			},
		}
	}

	return antibot.New(cfg, &provider.Stats{}, logger), nil
}

// buildCoordinator assembles the full pipeline over the shared stores.
func buildCoordinator(ctx context.Context, config *Config, logger *zap.Logger, runs *store.RunStore, providers []provider.JobProvider) (*pipeline.Coordinator, error) {
	if config.AI == nil || config.AI.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}
	if config.SMTP == nil {
		return nil, errors.New("smtp configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.AI.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.AI.Gemini.Model, config.AI.Gemini.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	extractor := gemini.NewExtractor(generator, logger, config.AI.Gemini.MaxLogLength)

	weights := ranking.Weights{}
	if config.Ranking != nil {
		weights = *config.Ranking
	}
	ranker := ranking.NewRanker(generator, logger, weights)

	smtpConfig := *config.SMTP
	if smtpConfig.Password == "" {
		// Optional; some relays are unauthenticated.
		if pw, err := secrets.Load(secrets.Source{Name: "smtp password", Env: "SMTP_PASSWORD"}); err == nil {
			smtpConfig.Password = pw
		}
	}
	dispatcher := email.NewDispatcher(smtpConfig, logger)

	return pipeline.NewCoordinator(
		runs,
		resume.NewExtractor(logger),
		extractor,
		extractor,
		ranker,
		providers,
		dispatcher,
		logger,
		pipeline.Options{
			TopN:        config.TopJobs,
			SearchLimit: config.SearchLimit,
		},
	), nil
}
