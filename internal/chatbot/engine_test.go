package chatbot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/muhtawa-io/muhtawa/internal/ai"
	"github.com/muhtawa-io/muhtawa/internal/model"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
	"github.com/muhtawa-io/muhtawa/internal/search"
)

// scoreEmbedder returns one vector for queries and another for documents so
// tests can pin the retrieval score exactly.
type scoreEmbedder struct {
	queryVec []float32
	docVec   []float32
	err      error
}

func (f *scoreEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if taskType == ai.TaskRetrievalQuery {
		return f.queryVec, nil
	}
	return f.docVec, nil
}

func (f *scoreEmbedder) ModelName() string { return "score-embed" }

type fakeArticles struct {
	bySlug map[string]*model.Article
	pool   []model.Article
}

func (f *fakeArticles) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	article, ok := f.bySlug[slug]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return article, nil
}

func (f *fakeArticles) ListPublishedByCategory(ctx context.Context, categoryID string, limit int) ([]model.Article, error) {
	return f.pool, nil
}

type fakeCategories struct {
	bySlug map[string]*model.Category
}

func (f *fakeCategories) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	cat, ok := f.bySlug[slug]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return cat, nil
}

func (f *fakeCategories) GetByID(ctx context.Context, id string) (*model.Category, error) {
	for _, cat := range f.bySlug {
		if cat.ID == id {
			return cat, nil
		}
	}
	return nil, appErr.ErrNotFound
}

type fakeRedirects struct {
	pool []model.Article
	err  error
}

func (f *fakeRedirects) Pool(ctx context.Context, query string, excludeCategoryID string, limit int) ([]model.Article, error) {
	return f.pool, f.err
}

type fakeJudge struct {
	outOfScope bool
	err        error
	called     bool
}

func (f *fakeJudge) IsOutOfScope(ctx context.Context, query string, sc ScopeContext) (bool, error) {
	f.called = true
	return f.outOfScope, f.err
}

type fakeReranker struct {
	indices []int
	err     error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]int, error) {
	return f.indices, f.err
}

type fakeSearcher struct {
	results []search.Result
	err     error
	called  bool
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	f.called = true
	return f.results, f.err
}

type fakeChatter struct {
	text       string
	deltas     []string
	streamErr  error
	err        error
	lastSystem string
}

func (f *fakeChatter) Chat(ctx context.Context, system string, msgs []model.Message) (string, error) {
	f.lastSystem = system
	return f.text, f.err
}

func (f *fakeChatter) ChatStream(ctx context.Context, system string, msgs []model.Message) (<-chan ai.Delta, error) {
	f.lastSystem = system
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan ai.Delta)
	go func() {
		defer close(out)
		for _, text := range f.deltas {
			out <- ai.Delta{Text: text}
		}
		if f.streamErr != nil {
			out <- ai.Delta{Err: f.streamErr}
		}
	}()
	return out, nil
}

type engineFixture struct {
	articles   *fakeArticles
	categories *fakeCategories
	redirects  *fakeRedirects
	judge      *fakeJudge
	reranker   *fakeReranker
	searcher   *fakeSearcher
	chatter    *fakeChatter
	embedder   *scoreEmbedder
}

func newEngineFixture() *engineFixture {
	article := model.Article{
		ID:         "art-1",
		CategoryID: "cat-1",
		Title:      "شرح البرمجة",
		Slug:       "intro-to-programming",
		Excerpt:    "مقدمة في البرمجة",
		Content:    "## Basics\n\nVariables hold values. Functions group logic.",
		Published:  1,
	}
	return &engineFixture{
		articles: &fakeArticles{
			bySlug: map[string]*model.Article{article.Slug: &article},
			pool:   []model.Article{article},
		},
		categories: &fakeCategories{
			bySlug: map[string]*model.Category{
				"tech": {ID: "cat-1", Slug: "tech", Name: "التقنية"},
			},
		},
		redirects: &fakeRedirects{pool: []model.Article{
			{ID: "other-1", Title: "مقال آخر", Slug: "other-article", Excerpt: "نبذة", CategoryID: "cat-2"},
			{ID: "other-2", Title: "مقال ثانٍ", Slug: "second-article", Excerpt: "نبذة أخرى", CategoryID: "cat-3"},
		}},
		judge:    &fakeJudge{},
		reranker: &fakeReranker{indices: []int{1, 0}},
		searcher: &fakeSearcher{results: []search.Result{
			{Title: "Web hit", Snippet: "snippet", Link: "https://example.com"},
		}},
		chatter:  &fakeChatter{text: "إجابة"},
		embedder: &scoreEmbedder{queryVec: []float32{1, 0}, docVec: []float32{1, 0}},
	}
}

func (f *engineFixture) build() *Engine {
	return NewEngine(
		f.articles,
		f.categories,
		f.redirects,
		ai.NewChunker(),
		NewRetriever(f.embedder),
		f.judge,
		f.reranker,
		f.searcher,
		f.chatter,
		Config{
			RelevanceThreshold: 0.55,
			ScopeArticleLimit:  20,
			RedirectPoolLimit:  30,
			RedirectTopN:       5,
			WebResultLimit:     5,
			TopGroundingChunks: 6,
			MaxQueryChars:      2000,
			JudgeTimeout:       time.Second,
			ChatTimeout:        time.Second,
		},
	)
}

func askInput(query string) AskInput {
	return AskInput{
		UserID:       "user-1",
		CategorySlug: "tech",
		Messages:     []model.Message{{Role: model.RoleUser, Content: query}},
	}
}

func TestAskValidation(t *testing.T) {
	engine := newEngineFixture().build()
	ctx := context.Background()

	_, err := engine.Ask(ctx, AskInput{CategorySlug: "tech", Messages: []model.Message{{Role: model.RoleUser, Content: "q"}}})
	require.ErrorIs(t, err, appErr.ErrUnauthorized)

	_, err = engine.Ask(ctx, AskInput{UserID: "u", CategorySlug: "tech"})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = engine.Ask(ctx, AskInput{UserID: "u", CategorySlug: "tech", Messages: []model.Message{{Role: model.RoleAssistant, Content: "hi"}}})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = engine.Ask(ctx, AskInput{UserID: "u", Messages: []model.Message{{Role: model.RoleUser, Content: "q"}}})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = engine.Ask(ctx, AskInput{UserID: "u", CategorySlug: "tech", ArticleSlug: "intro-to-programming", Messages: []model.Message{{Role: model.RoleUser, Content: "q"}}})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	long := strings.Repeat("س", 2001)
	_, err = engine.Ask(ctx, AskInput{UserID: "u", CategorySlug: "tech", Messages: []model.Message{{Role: model.RoleUser, Content: long}}})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = engine.Ask(ctx, AskInput{UserID: "u", CategorySlug: "missing", Messages: []model.Message{{Role: model.RoleUser, Content: "q"}}})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestAskInScopeAnswer(t *testing.T) {
	fx := newEngineFixture()
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("ما هي المتغيرات؟"))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeMessage, result.Outcome)
	require.Equal(t, model.SourceCorpus, result.Source)
	require.Equal(t, "إجابة", result.Text)
	require.Empty(t, result.Articles)
	require.Empty(t, result.WebSources)
	// High retrieval score must short-circuit the classifier.
	require.False(t, fx.judge.called)
	require.Contains(t, fx.chatter.lastSystem, "<document")
	require.NotContains(t, fx.chatter.lastSystem, "web search")
}

func TestAskRedirect(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.docVec = []float32{0, 1} // below threshold
	fx.judge.outOfScope = true
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال عن الطبخ"))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeRedirect, result.Outcome)
	require.NotEmpty(t, result.Articles)
	require.Equal(t, RedirectNote, result.Note)
	require.Empty(t, result.Text)
	require.Nil(t, result.Stream)
	// Rerank order, not pool order.
	require.Equal(t, "other-2", result.Articles[0].ID)
	require.Equal(t, "other-1", result.Articles[1].ID)
	require.False(t, fx.searcher.called)
}

func TestAskRedirectRerankFailureKeepsPoolOrder(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.docVec = []float32{0, 1}
	fx.judge.outOfScope = true
	fx.reranker.indices = nil
	fx.reranker.err = fmt.Errorf("rerank down")
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال"))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeRedirect, result.Outcome)
	require.Equal(t, "other-1", result.Articles[0].ID)
	require.Equal(t, "other-2", result.Articles[1].ID)
}

func TestAskEmptyRedirectPoolFallsToWeb(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.docVec = []float32{0, 1}
	fx.judge.outOfScope = true
	fx.redirects.pool = nil
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال"))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeMessage, result.Outcome)
	require.Equal(t, model.SourceWeb, result.Source)
	require.True(t, fx.searcher.called)
	require.NotEmpty(t, result.WebSources)
}

func TestAskInScopeJudgeLeadsToWeb(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.docVec = []float32{0, 1}
	fx.judge.outOfScope = false
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال"))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeMessage, result.Outcome)
	require.Equal(t, model.SourceWeb, result.Source)
	require.Equal(t, []model.WebSource{{Title: "Web hit", Link: "https://example.com"}}, result.WebSources)
	require.Contains(t, fx.chatter.lastSystem, "المصدر: نتائج بحث الويب")
}

func TestAskJudgeFailureTreatedAsInScope(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.docVec = []float32{0, 1}
	fx.judge.err = fmt.Errorf("judge down")
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال"))
	require.NoError(t, err)
	// Conservative default: answer, never a redirect, on judge failure.
	require.Equal(t, model.OutcomeMessage, result.Outcome)
	require.True(t, fx.searcher.called)
}

func TestAskSearchFailureAnswersUngrounded(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.docVec = []float32{0, 1}
	fx.searcher.err = fmt.Errorf("search down")
	fx.searcher.results = nil
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال"))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeMessage, result.Outcome)
	require.Empty(t, result.Source)
	require.Empty(t, result.WebSources)
	require.NotContains(t, fx.chatter.lastSystem, "<document")
}

func TestAskRetrievalFailureDegradesToClassifier(t *testing.T) {
	fx := newEngineFixture()
	fx.embedder.err = fmt.Errorf("embed down")
	fx.judge.outOfScope = true
	engine := fx.build()
	result, err := engine.Ask(context.Background(), askInput("سؤال"))
	require.NoError(t, err)
	require.True(t, fx.judge.called)
	require.Equal(t, model.OutcomeRedirect, result.Outcome)
}

func TestAskArticleScope(t *testing.T) {
	fx := newEngineFixture()
	engine := fx.build()
	result, err := engine.Ask(context.Background(), AskInput{
		UserID:      "user-1",
		ArticleSlug: "intro-to-programming",
		Messages:    []model.Message{{Role: model.RoleUser, Content: "اشرح لي"}},
	})
	require.NoError(t, err)
	require.Equal(t, model.ScopeTypeArticle, result.ScopeType)
	require.Equal(t, "intro-to-programming", result.ArticleSlug)
	require.Empty(t, result.CategorySlug)
}

func TestAskStreamDeliversDeltasAndCloses(t *testing.T) {
	fx := newEngineFixture()
	fx.chatter.deltas = []string{"مر", "حبا"}
	engine := fx.build()
	in := askInput("ما هي المتغيرات؟")
	in.Stream = true
	result, err := engine.Ask(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, result.Stream)
	var got []string
	for delta := range result.Stream {
		require.NoError(t, delta.Err)
		got = append(got, delta.Text)
	}
	require.Equal(t, []string{"مر", "حبا"}, got)
}

func TestAskStreamTerminalError(t *testing.T) {
	fx := newEngineFixture()
	fx.chatter.deltas = []string{"جزء"}
	fx.chatter.streamErr = fmt.Errorf("generation aborted")
	engine := fx.build()
	in := askInput("سؤال")
	in.Stream = true
	result, err := engine.Ask(context.Background(), in)
	require.NoError(t, err)
	var sawErr bool
	for delta := range result.Stream {
		if delta.Err != nil {
			sawErr = true
		}
	}
	require.True(t, sawErr)
}
