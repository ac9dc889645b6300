package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/service"
)

type ArticleEmbeddingJob struct {
	embeddings *service.EmbeddingService
}

func NewArticleEmbeddingJob(embeddings *service.EmbeddingService) *ArticleEmbeddingJob {
	return &ArticleEmbeddingJob{embeddings: embeddings}
}

func (j *ArticleEmbeddingJob) Name() string {
	return "article_embedding_sync"
}

func (j *ArticleEmbeddingJob) Run(ctx context.Context) error {
	if j.embeddings == nil {
		return nil
	}
	synced, err := j.embeddings.SyncArticleEmbeddings(ctx)
	if err != nil {
		return err
	}
	if synced > 0 {
		logutil.GetLogger(ctx).Info("article embeddings refreshed", zap.Int("count", synced))
	}
	return nil
}
