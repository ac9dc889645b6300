package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/ai"
	"github.com/muhtawa-io/muhtawa/internal/model"
	"github.com/muhtawa-io/muhtawa/internal/pkg/timeutil"
	"github.com/muhtawa-io/muhtawa/internal/repo"
)

// EmbeddingService keeps the article_embeddings table in step with article
// edits. Each article carries one whole-document vector used only for the
// redirect candidate pre-selection, so freshness matters more than coverage.
type EmbeddingService struct {
	embedder   ai.IEmbedder
	embeddings *repo.ArticleEmbeddingRepo
	cache      *repo.EmbeddingCacheRepo
	batchSize  int
}

func NewEmbeddingService(embedder ai.IEmbedder, embeddings *repo.ArticleEmbeddingRepo, cache *repo.EmbeddingCacheRepo, batchSize int) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &EmbeddingService{embedder: embedder, embeddings: embeddings, cache: cache, batchSize: batchSize}
}

// SyncArticleEmbeddings embeds every article whose content changed since its
// stored vector was computed. A per-article failure is logged and skipped so
// one bad document cannot stall the rest of the batch. Returns how many
// articles were refreshed.
func (s *EmbeddingService) SyncArticleEmbeddings(ctx context.Context) (int, error) {
	stale, err := s.embeddings.ListStaleArticles(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale articles: %w", err)
	}
	synced := 0
	for _, article := range stale {
		if err := s.syncOne(ctx, &article); err != nil {
			logutil.GetLogger(ctx).Error("sync article embedding failed",
				zap.String("article_id", article.ID), zap.Error(err))
			continue
		}
		synced++
	}
	return synced, nil
}

func (s *EmbeddingService) syncOne(ctx context.Context, article *model.Article) error {
	text := article.Title + "\n" + article.Content
	vec, err := s.embedder.Embed(ctx, text, ai.TaskRetrievalDocument)
	if err != nil {
		return err
	}
	sum := sha256.Sum256([]byte(text))
	return s.embeddings.Save(ctx, &model.ArticleEmbedding{
		ArticleID:   article.ID,
		Embedding:   vec,
		ContentHash: hex.EncodeToString(sum[:]),
		Mtime:       timeutil.NowUnix(),
	})
}

// CleanupEmbeddingCache drops cache rows older than the cutoff and returns
// the number removed.
func (s *EmbeddingService) CleanupEmbeddingCache(ctx context.Context, maxAgeSecs int64) (int64, error) {
	cutoff := timeutil.NowUnix() - maxAgeSecs
	return s.cache.DeleteBefore(ctx, cutoff)
}
