package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/muhtawa-io/muhtawa/internal/model"
	"github.com/muhtawa-io/muhtawa/internal/pkg/dbutil"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
)

const (
	ArticleDraft     = 0
	ArticlePublished = 1
)

var articleFields = []string{"id", "category_id", "client", "title", "slug", "excerpt", "content", "published", "ctime", "mtime"}

type ArticleRepo struct {
	db *sql.DB
}

func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

func scanArticle(rows *sql.Rows) (model.Article, error) {
	var a model.Article
	err := rows.Scan(&a.ID, &a.CategoryID, &a.Client, &a.Title, &a.Slug, &a.Excerpt, &a.Content, &a.Published, &a.Ctime, &a.Mtime)
	return a, err
}

func (r *ArticleRepo) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	where := map[string]interface{}{
		"slug":      slug,
		"published": ArticlePublished,
	}
	sqlStr, args, err := builder.BuildSelect("articles", where, articleFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	a, err := scanArticle(rows)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListPublishedByCategory returns the most recent published articles of a
// category, newest first. This is the in-scope chunk pool source.
func (r *ArticleRepo) ListPublishedByCategory(ctx context.Context, categoryID string, limit int) ([]model.Article, error) {
	where := map[string]interface{}{
		"category_id": categoryID,
		"published":   ArticlePublished,
		"_orderby":    "ctime desc",
		"_limit":      []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("articles", where, articleFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
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

// ListRecentExcludingCategory is the redirect-pool fallback when article
// embeddings are not available: recent published articles from every other
// category.
func (r *ArticleRepo) ListRecentExcludingCategory(ctx context.Context, categoryID string, limit int) ([]model.Article, error) {
	const query = `
		SELECT id, category_id, client, title, slug, excerpt, content, published, ctime, mtime
		FROM articles
		WHERE category_id <> $1 AND published = $2
		ORDER BY ctime DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, categoryID, ArticlePublished, limit)
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

func (r *ArticleRepo) ListBySlugs(ctx context.Context, slugs []string) ([]model.Article, error) {
	if len(slugs) == 0 {
		return []model.Article{}, nil
	}
	values := make([]interface{}, 0, len(slugs))
	for _, slug := range slugs {
		values = append(values, slug)
	}
	where := map[string]interface{}{
		"slug in": values,
	}
	sqlStr, args, err := builder.BuildSelect("articles", where, articleFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles := make([]model.Article, 0, len(slugs))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
