package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/muhtawa-io/muhtawa/internal/model"
	"github.com/muhtawa-io/muhtawa/internal/pkg/dbutil"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
)

var categoryFields = []string{"id", "slug", "name", "ctime"}

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	where := map[string]interface{}{
		"slug": slug,
	}
	sqlStr, args, err := builder.BuildSelect("categories", where, categoryFields)
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
	var cat model.Category
	if err := rows.Scan(&cat.ID, &cat.Slug, &cat.Name, &cat.Ctime); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*model.Category, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect("categories", where, categoryFields)
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
	var cat model.Category
	if err := rows.Scan(&cat.ID, &cat.Slug, &cat.Name, &cat.Ctime); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *CategoryRepo) ListBySlugs(ctx context.Context, slugs []string) ([]model.Category, error) {
	if len(slugs) == 0 {
		return []model.Category{}, nil
	}
	values := make([]interface{}, 0, len(slugs))
	for _, slug := range slugs {
		values = append(values, slug)
	}
	where := map[string]interface{}{
		"slug in": values,
	}
	sqlStr, args, err := builder.BuildSelect("categories", where, categoryFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cats := make([]model.Category, 0, len(slugs))
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Slug, &cat.Name, &cat.Ctime); err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}
