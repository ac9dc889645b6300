package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkerDeterministic(t *testing.T) {
	c := NewChunker()
	content := "# Title\n\nSome intro paragraph.\n\n## Section\n\nSection body text."
	first := c.Chunk(content)
	second := c.Chunk(content)
	require.Equal(t, first, second)
	require.NotEmpty(t, first)
}

func TestChunkerEmptyContent(t *testing.T) {
	c := NewChunker()
	require.Nil(t, c.Chunk(""))
	require.Nil(t, c.Chunk("   \n\t  "))
}

func TestChunkerHeadingContext(t *testing.T) {
	c := NewChunker()
	content := "## Installation\n\nRun the installer.\n\n## Usage\n\nStart the app."
	chunks := c.Chunk(content)
	require.Len(t, chunks, 2)
	require.True(t, strings.HasPrefix(chunks[0], "Installation"))
	require.Contains(t, chunks[0], "Run the installer.")
	require.True(t, strings.HasPrefix(chunks[1], "Usage"))
	require.Contains(t, chunks[1], "Start the app.")
}

func TestChunkerKeepsCodeFence(t *testing.T) {
	c := NewChunker()
	content := "## Example\n\n```go\nfmt.Println(\"hi\")\n```\n"
	chunks := c.Chunk(content)
	require.Len(t, chunks, 1)
	require.Contains(t, chunks[0], "```go")
	require.Contains(t, chunks[0], `fmt.Println("hi")`)
}

func TestChunkerBoundsLongContent(t *testing.T) {
	c := NewChunker()
	var sb strings.Builder
	sb.WriteString("## Long\n\n")
	// Each paragraph is 100 words so several paragraphs must split.
	for p := 0; p < 20; p++ {
		sb.WriteString(strings.Repeat("word ", 100))
		sb.WriteString("\n\n")
	}
	chunks := c.Chunk(sb.String())
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		require.NotEmpty(t, strings.TrimSpace(chunk))
	}
	// The tail paragraph must not be lost to the bound.
	joined := strings.Join(chunks, "\n")
	require.Equal(t, 20*100, strings.Count(joined, "word"))
}

func TestChunkerFallbackForUnparseableBlocks(t *testing.T) {
	c := NewChunker()
	content := "![alt](https://example.com/img.png)"
	chunks := c.Chunk(content)
	require.NotEmpty(t, chunks)
}

func TestEstimateTokensArabic(t *testing.T) {
	// Arabic counts characters, not words, so a long Arabic sentence is not
	// underestimated as a couple of tokens.
	latin := estimateTokens("two words")
	require.Equal(t, 2, latin)
	arabic := estimateTokens("مرحبا")
	require.GreaterOrEqual(t, arabic, 5)
}
