package chatbot

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/ai"
	"github.com/muhtawa-io/muhtawa/internal/model"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
	"github.com/muhtawa-io/muhtawa/internal/search"
)

// state names the stops of the cascade. Transitions are logged so an
// exchange's routing can be reconstructed from the request log alone.
type state string

const (
	stateValidating      state = "validating"
	stateScopedRetrieval state = "scoped-retrieval"
	stateInScopeAnswer   state = "in-scope-answer"
	stateClassifying     state = "classifying"
	stateRedirectPending state = "redirect-pending"
	stateWebAnswer       state = "web-answer"
)

// ArticleSource is the narrow read interface onto the content store.
type ArticleSource interface {
	GetBySlug(ctx context.Context, slug string) (*model.Article, error)
	ListPublishedByCategory(ctx context.Context, categoryID string, limit int) ([]model.Article, error)
}

type CategorySource interface {
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
	GetByID(ctx context.Context, id string) (*model.Category, error)
}

// RedirectSource supplies the broader cross-category candidate pool for the
// redirect tier.
type RedirectSource interface {
	Pool(ctx context.Context, query string, excludeCategoryID string, limit int) ([]model.Article, error)
}

type Config struct {
	RelevanceThreshold float32
	ScopeArticleLimit  int
	RedirectPoolLimit  int
	RedirectTopN       int
	WebResultLimit     int
	TopGroundingChunks int
	MaxQueryChars      int
	JudgeTimeout       time.Duration
	ChatTimeout        time.Duration
}

type Engine struct {
	articles   ArticleSource
	categories CategorySource
	redirects  RedirectSource
	chunker    *ai.Chunker
	retriever  *Retriever
	judge      IScopeJudge
	reranker   ai.IReranker
	searcher   search.ISearcher
	chat       ai.IChatter
	cfg        Config
}

func NewEngine(
	articles ArticleSource,
	categories CategorySource,
	redirects RedirectSource,
	chunker *ai.Chunker,
	retriever *Retriever,
	judge IScopeJudge,
	reranker ai.IReranker,
	searcher search.ISearcher,
	chat ai.IChatter,
	cfg Config,
) *Engine {
	return &Engine{
		articles:   articles,
		categories: categories,
		redirects:  redirects,
		chunker:    chunker,
		retriever:  retriever,
		judge:      judge,
		reranker:   reranker,
		searcher:   searcher,
		chat:       chat,
		cfg:        cfg,
	}
}

// AskInput is one inbound chatbot request. Exactly one of CategorySlug and
// ArticleSlug must be set.
type AskInput struct {
	UserID       string
	CategorySlug string
	ArticleSlug  string
	Messages     []model.Message
	Stream       bool
}

// Result is the terminal outcome of the cascade. For a streamed message
// outcome Stream is non-nil and Text empty; the caller drains the channel.
// For a redirect outcome Articles is non-empty and no narrative is produced.
type Result struct {
	Outcome      string
	Source       string
	ScopeType    string
	ArticleSlug  string
	CategorySlug string
	Query        string
	Text         string
	Stream       <-chan ai.Delta
	Articles     []model.RedirectArticle
	WebSources   []model.WebSource
	Note         string
}

// Ask runs the full cascade for one request. Validation and auth failures
// return sentinel errors before any retrieval work; degradable upstream
// failures are absorbed into the documented fallback tiers; only a
// generation failure with no further tier escapes as an error.
func (e *Engine) Ask(ctx context.Context, in AskInput) (*Result, error) {
	logutil.GetLogger(ctx).Debug("transition", zap.String("state", string(stateValidating)))
	query, err := e.validate(in)
	if err != nil {
		return nil, err
	}

	scope, err := e.resolveScope(ctx, in)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("scope_type", scope.scopeType),
		zap.String("category", scope.categoryName),
	)

	logger.Debug("transition", zap.String("state", string(stateScopedRetrieval)))
	candidates, topScore := e.scopedRetrieval(ctx, query, scope.pool)
	logger.Info("scoped retrieval done",
		zap.Int("chunks", len(candidates)),
		zap.Float32("top_score", topScore),
		zap.Float32("threshold", e.cfg.RelevanceThreshold),
	)

	if topScore >= e.cfg.RelevanceThreshold && len(candidates) > 0 {
		logger.Debug("transition", zap.String("state", string(stateInScopeAnswer)))
		docs := groundingFromCandidates(candidates, e.cfg.TopGroundingChunks)
		return e.answer(ctx, in, scope, query, docs, nil)
	}

	logger.Debug("transition", zap.String("state", string(stateClassifying)))
	outOfScope := e.classify(ctx, query, scope)

	if outOfScope {
		logger.Debug("transition", zap.String("state", string(stateRedirectPending)))
		articles := e.redirectCandidates(ctx, query, scope)
		if len(articles) > 0 {
			return &Result{
				Outcome:      model.OutcomeRedirect,
				ScopeType:    scope.scopeType,
				ArticleSlug:  scope.articleSlug,
				CategorySlug: scope.categorySlug,
				Query:        query,
				Articles:     articles,
				Note:         RedirectNote,
			}, nil
		}
		// Never show a dead-end redirect while a web fallback exists.
		logger.Info("redirect pool empty, falling through to web tier")
	}

	logger.Debug("transition", zap.String("state", string(stateWebAnswer)))
	docs, webSources := e.webGrounding(ctx, query)
	return e.answer(ctx, in, scope, query, docs, webSources)
}

type resolvedScope struct {
	scopeType    string
	articleSlug  string
	categorySlug string
	categoryID   string
	categoryName string
	pool         []model.Article
}

func (e *Engine) validate(in AskInput) (string, error) {
	if in.UserID == "" {
		return "", appErr.ErrUnauthorized
	}
	if len(in.Messages) == 0 {
		return "", fmt.Errorf("%w: messages are required", appErr.ErrInvalid)
	}
	last := in.Messages[len(in.Messages)-1]
	if last.Role != model.RoleUser {
		return "", fmt.Errorf("%w: last message must be from the user", appErr.ErrInvalid)
	}
	query := last.Content
	if query == "" {
		return "", fmt.Errorf("%w: empty query", appErr.ErrInvalid)
	}
	if len([]rune(query)) > e.cfg.MaxQueryChars {
		return "", fmt.Errorf("%w: query exceeds %d characters", appErr.ErrInvalid, e.cfg.MaxQueryChars)
	}
	if (in.CategorySlug == "") == (in.ArticleSlug == "") {
		return "", fmt.Errorf("%w: exactly one of categorySlug and articleSlug is required", appErr.ErrInvalid)
	}
	return query, nil
}

func (e *Engine) resolveScope(ctx context.Context, in AskInput) (*resolvedScope, error) {
	if in.ArticleSlug != "" {
		article, err := e.articles.GetBySlug(ctx, in.ArticleSlug)
		if err != nil {
			return nil, err
		}
		scope := &resolvedScope{
			scopeType:    model.ScopeTypeArticle,
			articleSlug:  article.Slug,
			categoryID:   article.CategoryID,
			categoryName: article.Title,
			pool:         []model.Article{*article},
		}
		if cat, err := e.categories.GetByID(ctx, article.CategoryID); err == nil {
			scope.categoryName = cat.Name
		}
		return scope, nil
	}
	cat, err := e.categories.GetBySlug(ctx, in.CategorySlug)
	if err != nil {
		return nil, err
	}
	pool, err := e.articles.ListPublishedByCategory(ctx, cat.ID, e.cfg.ScopeArticleLimit)
	if err != nil {
		return nil, err
	}
	return &resolvedScope{
		scopeType:    model.ScopeTypeCategory,
		categorySlug: cat.Slug,
		categoryID:   cat.ID,
		categoryName: cat.Name,
		pool:         pool,
	}, nil
}

// scopedRetrieval chunks the in-scope pool and ranks the chunks against the
// query. A retrieval failure is loud in the logs but degrades to the
// classifying branch instead of aborting the request.
func (e *Engine) scopedRetrieval(ctx context.Context, query string, pool []model.Article) ([]Candidate, float32) {
	var chunks []Chunk
	for _, article := range pool {
		for i, span := range e.chunker.Chunk(article.Content) {
			chunks = append(chunks, Chunk{
				SourceID: fmt.Sprintf("article:%s#%d", article.ID, i),
				Text:     article.Title + "\n" + span,
			})
		}
	}
	candidates, topScore, err := e.retriever.Retrieve(ctx, query, chunks)
	if err != nil {
		logutil.GetLogger(ctx).Error("retrieval failed, degrading to classifier", zap.Error(err))
		return nil, 0
	}
	return candidates, topScore
}

// classify asks the scope judge whether the query is out of scope. A judge
// failure means in-scope: attempting a web-grounded answer beats telling the
// reader the topic does not exist.
func (e *Engine) classify(ctx context.Context, query string, scope *resolvedScope) bool {
	judgeCtx, cancel := context.WithTimeout(ctx, e.cfg.JudgeTimeout)
	defer cancel()
	excerpt := ""
	if len(scope.pool) > 0 {
		excerpt = scope.pool[0].Excerpt
		if excerpt == "" {
			excerpt = scope.pool[0].Content
		}
	}
	outOfScope, err := e.judge.IsOutOfScope(judgeCtx, query, ScopeContext{
		CategoryName:   scope.categoryName,
		ArticleExcerpt: excerpt,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("scope judge failed, treating query as in scope", zap.Error(err))
		return false
	}
	return outOfScope
}

// redirectCandidates fetches the broader cross-category pool and reranks it
// down to the few best suggestions. Any failure collapses the tier to empty,
// which the caller turns into a web fallback.
func (e *Engine) redirectCandidates(ctx context.Context, query string, scope *resolvedScope) []model.RedirectArticle {
	pool, err := e.redirects.Pool(ctx, query, scope.categoryID, e.cfg.RedirectPoolLimit)
	if err != nil {
		logutil.GetLogger(ctx).Warn("redirect pool fetch failed", zap.Error(err))
		return nil
	}
	if len(pool) == 0 {
		return nil
	}
	docs := make([]string, 0, len(pool))
	for _, article := range pool {
		docs = append(docs, article.Title+" - "+truncateRunes(article.Excerpt, maxExcerptChars))
	}
	judgeCtx, cancel := context.WithTimeout(ctx, e.cfg.JudgeTimeout)
	defer cancel()
	indices, err := e.reranker.Rerank(judgeCtx, query, docs, e.cfg.RedirectTopN)
	if err != nil {
		// Rerank failures fall back to the pool's own order.
		logutil.GetLogger(ctx).Warn("rerank failed, keeping pool order", zap.Error(err))
		indices = indices[:0]
		for i := 0; i < len(pool) && i < e.cfg.RedirectTopN; i++ {
			indices = append(indices, i)
		}
	}
	articles := make([]model.RedirectArticle, 0, len(indices))
	for _, idx := range indices {
		article := pool[idx]
		articles = append(articles, model.RedirectArticle{
			ID:      article.ID,
			Title:   article.Title,
			Slug:    article.Slug,
			Excerpt: article.Excerpt,
			Client:  article.Client,
		})
	}
	return articles
}

// webGrounding turns web search hits into provenance-marked grounding
// documents. A search failure degrades to an empty grounding set; an
// ungrounded general answer beats a hard error at this tier.
func (e *Engine) webGrounding(ctx context.Context, query string) ([]GroundingDocument, []model.WebSource) {
	results, err := e.searcher.Search(ctx, query, e.cfg.WebResultLimit)
	if err != nil {
		logutil.GetLogger(ctx).Warn("web search failed, answering ungrounded", zap.Error(err))
		return nil, nil
	}
	docs := make([]GroundingDocument, 0, len(results))
	sources := make([]model.WebSource, 0, len(results))
	for i, r := range results {
		docs = append(docs, GroundingDocument{
			ID:   fmt.Sprintf("%s%d", WebDocPrefix, i),
			Text: r.Title + "\n" + r.Snippet + "\n" + r.Link,
		})
		sources = append(sources, model.WebSource{Title: r.Title, Link: r.Link})
	}
	return docs, sources
}

func (e *Engine) answer(ctx context.Context, in AskInput, scope *resolvedScope, query string, docs []GroundingDocument, webSources []model.WebSource) (*Result, error) {
	system := systemPromptFor(docs)
	source := ""
	if hasWebDoc(docs) {
		source = model.SourceWeb
	} else if len(docs) > 0 {
		source = model.SourceCorpus
	}
	res := &Result{
		Outcome:      model.OutcomeMessage,
		Source:       source,
		ScopeType:    scope.scopeType,
		ArticleSlug:  scope.articleSlug,
		CategorySlug: scope.categorySlug,
		Query:        query,
		WebSources:   webSources,
	}
	if !in.Stream {
		genCtx, cancel := context.WithTimeout(ctx, e.cfg.ChatTimeout)
		defer cancel()
		text, err := e.chat.Chat(genCtx, system, in.Messages)
		if err != nil {
			return nil, fmt.Errorf("%w: chat generation: %v", appErr.ErrInternal, err)
		}
		res.Text = text
		return res, nil
	}
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.ChatTimeout)
	upstream, err := e.chat.ChatStream(genCtx, system, in.Messages)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: chat generation: %v", appErr.ErrInternal, err)
	}
	out := make(chan ai.Delta)
	go func() {
		defer cancel()
		defer close(out)
		for delta := range upstream {
			select {
			case out <- delta:
			case <-ctx.Done():
				return
			}
			if delta.Err != nil {
				return
			}
		}
	}()
	res.Stream = out
	return res, nil
}

func groundingFromCandidates(candidates []Candidate, topK int) []GroundingDocument {
	if topK > len(candidates) {
		topK = len(candidates)
	}
	docs := make([]GroundingDocument, 0, topK)
	for _, cand := range candidates[:topK] {
		docs = append(docs, GroundingDocument{ID: cand.ID, Text: cand.Text})
	}
	return docs
}
