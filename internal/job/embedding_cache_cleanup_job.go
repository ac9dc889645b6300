package job

import (
	"context"

	"github.com/muhtawa-io/muhtawa/internal/service"
)

type EmbeddingCacheCleanupJob struct {
	embeddings *service.EmbeddingService
	maxAgeDays int
}

func NewEmbeddingCacheCleanupJob(embeddings *service.EmbeddingService, maxAgeDays int) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{embeddings: embeddings, maxAgeDays: maxAgeDays}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.embeddings == nil {
		return nil
	}
	maxAgeDays := j.maxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	_, err := j.embeddings.CleanupEmbeddingCache(ctx, int64(maxAgeDays)*24*3600)
	return err
}
