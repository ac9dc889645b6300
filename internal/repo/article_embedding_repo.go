package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/muhtawa-io/muhtawa/internal/model"
)

type ArticleEmbeddingRepo struct {
	db *sql.DB
}

func NewArticleEmbeddingRepo(db *sql.DB) *ArticleEmbeddingRepo {
	return &ArticleEmbeddingRepo{db: db}
}

func (r *ArticleEmbeddingRepo) Save(ctx context.Context, emb *model.ArticleEmbedding) error {
	const query = `
		INSERT INTO article_embeddings (article_id, embedding, content_hash, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (article_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.ArticleID,
		pgvector.NewVector(emb.Embedding),
		emb.ContentHash,
		emb.Mtime,
	)
	return err
}

func (r *ArticleEmbeddingRepo) GetByArticleID(ctx context.Context, articleID string) (*model.ArticleEmbedding, error) {
	const query = `
		SELECT article_id, embedding, content_hash, mtime
		FROM article_embeddings
		WHERE article_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, articleID)
	var item model.ArticleEmbedding
	var embedding pgvector.Vector
	if err := row.Scan(&item.ArticleID, &embedding, &item.ContentHash, &item.Mtime); err != nil {
		return nil, err
	}
	item.Embedding = embedding.Slice()
	return &item, nil
}

// ListStaleArticles returns published articles with no embedding row or with
// content newer than their embedding. Consumed by the embedding sync job.
func (r *ArticleEmbeddingRepo) ListStaleArticles(ctx context.Context, limit int) ([]model.Article, error) {
	const query = `
		SELECT a.id, a.category_id, a.client, a.title, a.slug, a.excerpt, a.content, a.published, a.ctime, a.mtime
		FROM articles a
		LEFT JOIN article_embeddings e ON a.id = e.article_id
		WHERE (e.article_id IS NULL OR a.mtime > e.mtime) AND a.published = $1
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, ArticlePublished, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles := make([]model.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// NearestExcludingCategory returns published articles from other categories
// ordered by vector distance to the query embedding. Used to pre-select the
// redirect pool before reranking.
func (r *ArticleEmbeddingRepo) NearestExcludingCategory(ctx context.Context, queryEmbedding []float32, categoryID string, limit int) ([]model.Article, error) {
	const query = `
		SELECT a.id, a.category_id, a.client, a.title, a.slug, a.excerpt, a.content, a.published, a.ctime, a.mtime
		FROM articles a
		JOIN article_embeddings e ON a.id = e.article_id
		WHERE a.category_id <> $1 AND a.published = $2
		ORDER BY e.embedding <=> $3
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, categoryID, ArticlePublished, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles := make([]model.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
