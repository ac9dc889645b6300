package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/muhtawa-io/muhtawa/internal/model"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
)

type fakeChatStore struct {
	rows    []model.ChatMessage
	created []*model.ChatMessage
	err     error
}

func (f *fakeChatStore) Create(ctx context.Context, msg *model.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, msg)
	return nil
}

func (f *fakeChatStore) ListByUser(ctx context.Context, userID string, beforeCtime int64, beforeID string, limit int) ([]model.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	rows := f.rows
	if beforeCtime > 0 {
		filtered := rows[:0:0]
		for _, row := range rows {
			if row.Ctime < beforeCtime || (row.Ctime == beforeCtime && row.ID < beforeID) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type fakeResolver struct {
	articleTitles  map[string]string
	categoryTitles map[string]string
}

func (f *fakeResolver) ResolveArticles(ctx context.Context, slugs []string) (map[string]string, error) {
	return f.articleTitles, nil
}

func (f *fakeResolver) ResolveCategories(ctx context.Context, slugs []string) (map[string]string, error) {
	return f.categoryTitles, nil
}

func historyRows(n int) []model.ChatMessage {
	rows := make([]model.ChatMessage, 0, n)
	// Newest first, matching the store's ordering contract.
	for i := n; i >= 1; i-- {
		rows = append(rows, model.ChatMessage{
			ID:           fmt.Sprintf("msg-%03d", i),
			UserID:       "user-1",
			UserQuery:    fmt.Sprintf("question %d", i),
			ScopeType:    model.ScopeTypeCategory,
			CategorySlug: "tech",
			Outcome:      model.OutcomeMessage,
			Ctime:        int64(1000 + i),
		})
	}
	return rows
}

func TestHistoryListPagination(t *testing.T) {
	store := &fakeChatStore{rows: historyRows(5)}
	resolver := &fakeResolver{categoryTitles: map[string]string{"tech": "التقنية"}}
	svc := NewHistoryService(store, resolver, 50)

	page1, err := svc.List(context.Background(), "user-1", "", 2)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	require.Equal(t, "msg-005", page1.Items[0].ID)
	require.Equal(t, "msg-004", page1.Items[1].ID)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := svc.List(context.Background(), "user-1", page1.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	// No overlap across page boundaries.
	require.Equal(t, "msg-003", page2.Items[0].ID)
	require.Equal(t, "msg-002", page2.Items[1].ID)
	require.NotEmpty(t, page2.NextCursor)

	page3, err := svc.List(context.Background(), "user-1", page2.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	require.Equal(t, "msg-001", page3.Items[0].ID)
	require.Empty(t, page3.NextCursor)
}

func TestHistoryListCapsLimit(t *testing.T) {
	store := &fakeChatStore{rows: historyRows(10)}
	svc := NewHistoryService(store, &fakeResolver{}, 3)

	page, err := svc.List(context.Background(), "user-1", "", 1000)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	page, err = svc.List(context.Background(), "user-1", "", 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
}

func TestHistoryListMalformedCursor(t *testing.T) {
	svc := NewHistoryService(&fakeChatStore{}, &fakeResolver{}, 50)
	for _, cursor := range []string{"not-base64!", "bm9jb2xvbg==", "OjppZA=="} {
		_, err := svc.List(context.Background(), "user-1", cursor, 10)
		require.ErrorIs(t, err, appErr.ErrInvalid, "cursor %q", cursor)
	}
}

func TestHistoryListResolvesTitlesWithSlugFallback(t *testing.T) {
	store := &fakeChatStore{rows: []model.ChatMessage{
		{ID: "m1", UserID: "user-1", ScopeType: model.ScopeTypeArticle, ArticleSlug: "live-article", Outcome: model.OutcomeMessage, Ctime: 100},
		{ID: "m2", UserID: "user-1", ScopeType: model.ScopeTypeArticle, ArticleSlug: "deleted-article", Outcome: model.OutcomeMessage, Ctime: 99},
	}}
	resolver := &fakeResolver{articleTitles: map[string]string{"live-article": "عنوان حي"}}
	svc := NewHistoryService(store, resolver, 50)

	page, err := svc.List(context.Background(), "user-1", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "عنوان حي", page.Items[0].ArticleTitle)
	// A slug with no live record falls back to the raw slug.
	require.Equal(t, "deleted-article", page.Items[1].ArticleTitle)
}

func TestRecordNeverPanicsOnStoreFailure(t *testing.T) {
	store := &fakeChatStore{err: fmt.Errorf("db down")}
	svc := NewHistoryService(store, &fakeResolver{}, 50)
	require.NotPanics(t, func() {
		svc.Record(RecordInput{UserID: "user-1", Query: "q", Response: "a", Outcome: model.OutcomeMessage})
	})
}

func TestRecordPersistsExchange(t *testing.T) {
	store := &fakeChatStore{}
	svc := NewHistoryService(store, &fakeResolver{}, 50)
	svc.Record(RecordInput{
		UserID:       "user-1",
		Query:        "سؤال",
		Response:     "جواب",
		ScopeType:    model.ScopeTypeCategory,
		CategorySlug: "tech",
		Outcome:      model.OutcomeMessage,
		Source:       model.SourceCorpus,
	})
	require.Len(t, store.created, 1)
	created := store.created[0]
	require.NotEmpty(t, created.ID)
	require.Equal(t, "سؤال", created.UserQuery)
	require.Equal(t, "جواب", created.AssistantResponse)
	require.Positive(t, created.Ctime)
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := encodeCursor(1234, "msg-1")
	ctime, id, err := decodeCursor(cursor)
	require.NoError(t, err)
	require.Equal(t, int64(1234), ctime)
	require.Equal(t, "msg-1", id)

	ctime, id, err = decodeCursor("")
	require.NoError(t, err)
	require.Zero(t, ctime)
	require.Empty(t, id)
}
