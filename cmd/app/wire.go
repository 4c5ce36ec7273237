//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/pdfchat/internal/bootstrap"
	"github.com/yanqian/pdfchat/internal/infra/config"
	httpiface "github.com/yanqian/pdfchat/internal/interface/http"
	"github.com/yanqian/pdfchat/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideCatalogPool,
		provideBlobStore,
		provideOpenAIClient,
		provideEmbedder,
		provideExtractor,
		provideChunker,
		provideVectorStore,
		provideFileRepository,
		provideConversationRepository,
		provideMessageRepository,
		provideLocker,
		provideIngestService,
		provideRetrievalService,
		provideChatLLM,
		provideAssembler,
		provideChatService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
