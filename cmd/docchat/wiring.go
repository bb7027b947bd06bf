package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/conversation"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/docserver"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/poller"
)

func newDocServerClient(cfg *config.Config, logger *zap.Logger) *docserver.Client {
	return docserver.New(
		docserver.WithBaseURL(cfg.DocServer.BaseURL),
		docserver.WithTimeout(cfg.DocServer.Timeout()),
		docserver.WithLogger(logger),
	)
}

func pollOptions(cfg config.ChatConfig, logger *zap.Logger) poller.Options {
	return poller.Options{
		InitialDelay:     cfg.PollInitialDelay(),
		Step:             cfg.PollStep(),
		MaxDelay:         cfg.PollMaxDelay(),
		Timeout:          cfg.PollTimeout(),
		ProgressInterval: cfg.ProgressInterval(),
		Logger:           logger,
	}
}

// loadCatalog returns the locale catalog. With a catalog path configured the
// override file is merged on top and watched for edits until ctx is done.
func loadCatalog(ctx context.Context, cfg config.ChatConfig, logger *zap.Logger) (conversation.CatalogProvider, error) {
	base, err := conversation.LoadCatalog(cfg.Locale)
	if err != nil {
		return nil, err
	}
	provider := conversation.NewStaticCatalog(base)
	if cfg.CatalogPath == "" {
		return provider, nil
	}
	watcher, err := conversation.NewCatalogWatcher(cfg.CatalogPath, base, provider, logger)
	if err != nil {
		return nil, err
	}
	go watcher.Run(ctx)
	logger.Info("catalog override loaded", zap.String("path", cfg.CatalogPath))
	return provider, nil
}
