package app

import (
	goredis "github.com/courseloop/courseloop-backend/internal/clients/redis"
	"github.com/courseloop/courseloop-backend/internal/platform/gcp"
	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/platform/openai"
	"github.com/courseloop/courseloop-backend/internal/platform/pinecone"
)

type Clients struct {
	OpenAI      openai.Client
	VectorStore pinecone.VectorStore
	Bucket      gcp.BucketService
	BankCache   goredis.BankCache
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, err
	}

	pc, err := pinecone.New(log, pinecone.Config{})
	if err != nil {
		return Clients{}, err
	}
	vec, err := pinecone.NewVectorStore(log, pc)
	if err != nil {
		return Clients{}, err
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, err
	}

	// The cache is optional: without redis, bank reads go straight to
	// blob storage.
	bankCache, err := goredis.NewBankCache(log)
	if err != nil {
		log.Warn("Bank cache disabled", "error", err)
		bankCache = nil
	}

	return Clients{
		OpenAI:      ai,
		VectorStore: vec,
		Bucket:      bucket,
		BankCache:   bankCache,
	}, nil
}
