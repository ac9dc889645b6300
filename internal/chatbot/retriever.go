package chatbot

import (
	"context"
	"math"
	"sort"

	"github.com/muhtawa-io/muhtawa/internal/ai"
)

// Chunk is one retrievable span of a source article, already prefixed with
// the article title for context. Chunks are recomputed per request and never
// persisted.
type Chunk struct {
	SourceID string
	Text     string
}

// Candidate is a chunk scored against the active query.
type Candidate struct {
	ID    string
	Text  string
	Score float32
}

// Retriever ranks chunks against a query by embedding similarity.
type Retriever struct {
	embedder ai.IEmbedder
}

func NewRetriever(embedder ai.IEmbedder) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve embeds every chunk in document mode and the query in query mode,
// scores each chunk by cosine similarity and returns the candidates sorted by
// non-increasing score. The top score is returned separately so the caller
// can gate on the relevance threshold without re-deriving it. Empty input
// yields no candidates and a top score of 0.
func (r *Retriever) Retrieve(ctx context.Context, query string, chunks []Chunk) ([]Candidate, float32, error) {
	if len(chunks) == 0 {
		return nil, 0, nil
	}
	queryEmb, err := r.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, 0, err
	}
	candidates := make([]Candidate, 0, len(chunks))
	for _, chunk := range chunks {
		chunkEmb, err := r.embedder.Embed(ctx, chunk.Text, ai.TaskRetrievalDocument)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, Candidate{
			ID:    chunk.SourceID,
			Text:  chunk.Text,
			Score: cosineSimilarity(queryEmb, chunkEmb),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, candidates[0].Score, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
