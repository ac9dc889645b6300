package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIndices(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		docCount int
		topN     int
		want     []int
		wantErr  bool
	}{
		{
			name:     "plain array",
			output:   "[2, 0, 1]",
			docCount: 3,
			topN:     3,
			want:     []int{2, 0, 1},
		},
		{
			name:     "fenced json",
			output:   "```json\n[1, 3]\n```",
			docCount: 5,
			topN:     2,
			want:     []int{1, 3},
		},
		{
			name:     "surrounding prose",
			output:   "The most relevant documents are: [4, 2] based on the query.",
			docCount: 5,
			topN:     2,
			want:     []int{4, 2},
		},
		{
			name:     "out of range and duplicates dropped",
			output:   "[7, 1, 1, -2, 0]",
			docCount: 3,
			topN:     5,
			want:     []int{1, 0},
		},
		{
			name:     "truncated to topN",
			output:   "[0, 1, 2, 3]",
			docCount: 4,
			topN:     2,
			want:     []int{0, 1},
		},
		{
			name:     "no usable indices",
			output:   "[9, 10]",
			docCount: 3,
			topN:     2,
			wantErr:  true,
		},
		{
			name:     "not json",
			output:   "I cannot rank these.",
			docCount: 3,
			topN:     2,
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIndices(tt.output, tt.docCount, tt.topN)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

type stubGenerator struct {
	output string
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.output, s.err
}

func TestLLMRerankerEmptyDocs(t *testing.T) {
	r := NewLLMReranker(&stubGenerator{output: "[0]"})
	got, err := r.Rerank(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLLMRerankerPropagatesGeneratorError(t *testing.T) {
	r := NewLLMReranker(&stubGenerator{err: fmt.Errorf("model down")})
	_, err := r.Rerank(context.Background(), "q", []string{"a", "b"}, 2)
	require.Error(t, err)
}
