package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/ai"
	"github.com/muhtawa-io/muhtawa/internal/model"
	"github.com/muhtawa-io/muhtawa/internal/repo"
)

// RedirectService builds the cross-category candidate pool for redirect
// suggestions. The primary path embeds the query and runs a vector nearest
// search over article embeddings; when no embedding is available the pool
// falls back to recent published articles.
type RedirectService struct {
	embedder   ai.IEmbedder
	embeddings *repo.ArticleEmbeddingRepo
	articles   *repo.ArticleRepo
}

func NewRedirectService(embedder ai.IEmbedder, embeddings *repo.ArticleEmbeddingRepo, articles *repo.ArticleRepo) *RedirectService {
	return &RedirectService{embedder: embedder, embeddings: embeddings, articles: articles}
}

func (s *RedirectService) Pool(ctx context.Context, query string, excludeCategoryID string, limit int) ([]model.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
		if err == nil {
			articles, err := s.embeddings.NearestExcludingCategory(ctx, vec, excludeCategoryID, limit)
			if err == nil && len(articles) > 0 {
				return articles, nil
			}
			if err != nil {
				logutil.GetLogger(ctx).Warn("vector redirect pool failed, falling back to recency", zap.Error(err))
			}
		} else {
			logutil.GetLogger(ctx).Warn("query embedding for redirect pool failed", zap.Error(err))
		}
	}
	return s.articles.ListRecentExcludingCategory(ctx, excludeCategoryID, limit)
}
