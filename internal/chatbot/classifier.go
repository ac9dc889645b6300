package chatbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/muhtawa-io/muhtawa/internal/ai"
)

const maxExcerptChars = 300

// ScopeContext is the minimal context the classifier needs: the category
// label plus a short excerpt of in-scope content. It is deliberately not the
// full candidate pool.
type ScopeContext struct {
	CategoryName   string
	ArticleExcerpt string
}

// IScopeJudge decides whether a query is topically out of scope for a
// category. It is consulted only when the top retrieval score falls below
// the relevance threshold.
type IScopeJudge interface {
	IsOutOfScope(ctx context.Context, query string, sc ScopeContext) (bool, error)
}

type llmScopeJudge struct {
	gen ai.IGenerator
}

func NewScopeJudge(gen ai.IGenerator) IScopeJudge {
	return &llmScopeJudge{gen: gen}
}

func (j *llmScopeJudge) IsOutOfScope(ctx context.Context, query string, sc ScopeContext) (bool, error) {
	if j.gen == nil {
		return false, fmt.Errorf("scope judge not configured")
	}
	excerpt := truncateRunes(sc.ArticleExcerpt, maxExcerptChars)
	prompt := fmt.Sprintf(`You are a topical scope classifier for a content platform.
A reader is chatting inside the category %q. A short excerpt of that category's content follows.
Decide whether the reader's question is topically OUTSIDE this category.
- Answer with exactly one word: "out_of_scope" or "in_scope".
- A question about the category's domain is in_scope even if the excerpt does not mention it.

EXCERPT:
%s

QUESTION:
%s`, sc.CategoryName, excerpt, query)
	result, err := j.gen.Generate(ctx, prompt)
	if err != nil {
		return false, err
	}
	return parseScopeVerdict(result)
}

func parseScopeVerdict(output string) (bool, error) {
	verdict := strings.ToLower(strings.TrimSpace(output))
	switch {
	case strings.Contains(verdict, "out_of_scope"):
		return true, nil
	case strings.Contains(verdict, "in_scope"):
		return false, nil
	}
	return false, fmt.Errorf("unrecognized scope verdict: %q", output)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
