package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/model"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
	"github.com/muhtawa-io/muhtawa/internal/pkg/timeutil"
)

const recordTimeout = 5 * time.Second

// ChatMessageStore is the persistence surface the history service needs.
type ChatMessageStore interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	ListByUser(ctx context.Context, userID string, beforeCtime int64, beforeID string, limit int) ([]model.ChatMessage, error)
}

// SlugResolver maps slugs to display titles for presenting stored exchanges.
type SlugResolver interface {
	ResolveArticles(ctx context.Context, slugs []string) (map[string]string, error)
	ResolveCategories(ctx context.Context, slugs []string) (map[string]string, error)
}

// HistoryService records completed exchanges and serves them back in
// reverse chronological pages.
type HistoryService struct {
	store    ChatMessageStore
	resolver SlugResolver
	pageCap  int
}

func NewHistoryService(store ChatMessageStore, resolver SlugResolver, pageCap int) *HistoryService {
	return &HistoryService{store: store, resolver: resolver, pageCap: pageCap}
}

type RecordInput struct {
	UserID       string
	Query        string
	Response     string
	ScopeType    string
	ArticleSlug  string
	CategorySlug string
	Outcome      string
	Source       string
	WebSources   []model.WebSource
}

// Record persists one finished exchange. It runs on its own deadline,
// detached from the request context, and never surfaces a failure: history
// is best-effort bookkeeping and must not affect a delivered response.
func (s *HistoryService) Record(in RecordInput) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	msg := &model.ChatMessage{
		ID:                newID(),
		UserID:            in.UserID,
		UserQuery:         in.Query,
		AssistantResponse: in.Response,
		ScopeType:         in.ScopeType,
		ArticleSlug:       in.ArticleSlug,
		CategorySlug:      in.CategorySlug,
		Outcome:           in.Outcome,
		Source:            in.Source,
		WebSources:        in.WebSources,
		Ctime:             timeutil.NowUnixMilli(),
	}
	if err := s.store.Create(ctx, msg); err != nil {
		logutil.GetLogger(ctx).Error("record chat exchange failed",
			zap.String("user_id", in.UserID), zap.Error(err))
	}
}

// HistoryItem is one stored exchange with slugs resolved to live titles.
// A slug whose record no longer exists resolves to the raw slug so older
// history stays readable after content changes.
type HistoryItem struct {
	ID                string            `json:"id"`
	UserQuery         string            `json:"userQuery"`
	AssistantResponse string            `json:"assistantResponse"`
	ScopeType         string            `json:"scopeType"`
	ArticleSlug       string            `json:"articleSlug,omitempty"`
	ArticleTitle      string            `json:"articleTitle,omitempty"`
	CategorySlug      string            `json:"categorySlug,omitempty"`
	CategoryTitle     string            `json:"categoryTitle,omitempty"`
	Outcome           string            `json:"outcome"`
	Source            string            `json:"source,omitempty"`
	WebSources        []model.WebSource `json:"webSources,omitempty"`
	Ctime             int64             `json:"ctime"`
}

type HistoryPage struct {
	Items      []HistoryItem
	NextCursor string
}

// List returns one page of the user's exchanges, newest first. A non-empty
// cursor resumes after the exchange it encodes; the returned NextCursor is
// empty on the last page.
func (s *HistoryService) List(ctx context.Context, userID string, cursor string, limit int) (*HistoryPage, error) {
	if limit <= 0 || limit > s.pageCap {
		limit = s.pageCap
	}
	beforeCtime, beforeID, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	// Fetch one extra row to learn whether another page exists.
	rows, err := s.store.ListByUser(ctx, userID, beforeCtime, beforeID, limit+1)
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	items, err := s.present(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{Items: items}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.NextCursor = encodeCursor(last.Ctime, last.ID)
	}
	return page, nil
}

func (s *HistoryService) present(ctx context.Context, rows []model.ChatMessage) ([]HistoryItem, error) {
	articleSlugs := make([]string, 0, len(rows))
	categorySlugs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ArticleSlug != "" {
			articleSlugs = append(articleSlugs, row.ArticleSlug)
		}
		if row.CategorySlug != "" {
			categorySlugs = append(categorySlugs, row.CategorySlug)
		}
	}
	articleTitles, err := s.resolveOrEmpty(ctx, articleSlugs, s.resolver.ResolveArticles)
	if err != nil {
		return nil, err
	}
	categoryTitles, err := s.resolveOrEmpty(ctx, categorySlugs, s.resolver.ResolveCategories)
	if err != nil {
		return nil, err
	}
	items := make([]HistoryItem, 0, len(rows))
	for _, row := range rows {
		item := HistoryItem{
			ID:                row.ID,
			UserQuery:         row.UserQuery,
			AssistantResponse: row.AssistantResponse,
			ScopeType:         row.ScopeType,
			ArticleSlug:       row.ArticleSlug,
			CategorySlug:      row.CategorySlug,
			Outcome:           row.Outcome,
			Source:            row.Source,
			WebSources:        row.WebSources,
			Ctime:             row.Ctime,
		}
		if row.ArticleSlug != "" {
			item.ArticleTitle = titleOrSlug(articleTitles, row.ArticleSlug)
		}
		if row.CategorySlug != "" {
			item.CategoryTitle = titleOrSlug(categoryTitles, row.CategorySlug)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *HistoryService) resolveOrEmpty(ctx context.Context, slugs []string, resolve func(context.Context, []string) (map[string]string, error)) (map[string]string, error) {
	if len(slugs) == 0 {
		return map[string]string{}, nil
	}
	return resolve(ctx, slugs)
}

func titleOrSlug(titles map[string]string, slug string) string {
	if title, ok := titles[slug]; ok && title != "" {
		return title
	}
	return slug
}

func encodeCursor(ctime int64, id string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d:%s", ctime, id)))
}

func decodeCursor(cursor string) (int64, string, error) {
	if cursor == "" {
		return 0, "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", fmt.Errorf("%w: malformed cursor", appErr.ErrInvalid)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", fmt.Errorf("%w: malformed cursor", appErr.ErrInvalid)
	}
	ctime, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ctime <= 0 {
		return 0, "", fmt.Errorf("%w: malformed cursor", appErr.ErrInvalid)
	}
	return ctime, parts[1], nil
}
