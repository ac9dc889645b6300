package service

import (
	"context"

	"github.com/muhtawa-io/muhtawa/internal/repo"
)

// ContentResolver resolves stored slugs against the live content tables.
type ContentResolver struct {
	articles   *repo.ArticleRepo
	categories *repo.CategoryRepo
}

func NewContentResolver(articles *repo.ArticleRepo, categories *repo.CategoryRepo) *ContentResolver {
	return &ContentResolver{articles: articles, categories: categories}
}

func (r *ContentResolver) ResolveArticles(ctx context.Context, slugs []string) (map[string]string, error) {
	articles, err := r.articles.ListBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(articles))
	for _, article := range articles {
		titles[article.Slug] = article.Title
	}
	return titles, nil
}

func (r *ContentResolver) ResolveCategories(ctx context.Context, slugs []string) (map[string]string, error) {
	categories, err := r.categories.ListBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(categories))
	for _, cat := range categories {
		titles[cat.Slug] = cat.Name
	}
	return titles, nil
}
