package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// IReranker reorders candidate documents by relevance to a query using a
// model distinct from the first-stage retrieval scorer. Rerank returns the
// indices of the topN most relevant documents, most relevant first. On error
// callers should fall back to the original candidate order.
type IReranker interface {
	Rerank(ctx context.Context, query string, docs []string, topN int) ([]int, error)
}

type llmReranker struct {
	gen IGenerator
}

func NewLLMReranker(gen IGenerator) IReranker {
	return &llmReranker{gen: gen}
}

func (r *llmReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]int, error) {
	if r.gen == nil {
		return nil, fmt.Errorf("reranker not configured")
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(docs) {
		topN = len(docs)
	}
	var sb strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&sb, "[%d] %s\n", i, doc)
	}
	prompt := fmt.Sprintf(`You are a relevance ranking assistant.
Given a user query and a numbered list of documents, pick the %d documents most relevant to the query.
- Return a JSON array of document numbers, most relevant first.
- Return ONLY the JSON array. No extra text.
- Only include numbers that appear in the list.

QUERY:
%s

DOCUMENTS:
%s`, topN, query, sb.String())
	result, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseIndices(result, len(docs), topN)
}

func parseIndices(output string, docCount, topN int) ([]int, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	var raw []int
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("parse rerank indices: %w", err)
	}
	seen := make(map[int]bool, len(raw))
	indices := make([]int, 0, topN)
	for _, idx := range raw {
		if idx < 0 || idx >= docCount || seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
		if len(indices) == topN {
			break
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("rerank returned no usable indices")
	}
	return indices, nil
}
