package ai

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const defaultChunkTokens = 400

// Chunker splits markdown content into bounded, retrievable text spans.
// It is a pure function of its input: the same content always yields the
// same chunk sequence, which retrieval tests depend on.
type Chunker struct {
	maxTokens int
}

func NewChunker() *Chunker {
	return &Chunker{maxTokens: defaultChunkTokens}
}

func (c *Chunker) Chunk(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	md := goldmark.New()
	reader := text.NewReader([]byte(content))
	doc := md.Parser().Parse(reader)

	var chunks []string
	var currentChunk []string
	var currentTokens int
	var currentHeading string

	flush := func() {
		if len(currentChunk) == 0 {
			return
		}
		body := strings.Join(currentChunk, "\n\n")
		// Heading context is important for all chunks
		if currentHeading != "" {
			body = currentHeading + "\n" + body
		}
		chunks = append(chunks, body)
		currentChunk = nil
		currentTokens = 0
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading := string(n.Text(reader.Source()))
			if n.Level <= 2 {
				flush()
				currentHeading = heading
			} else {
				currentChunk = append(currentChunk, heading)
				currentTokens += estimateTokens(heading)
			}
		case *ast.FencedCodeBlock:
			lang := string(n.Language(reader.Source()))
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(reader.Source()))
			}
			fenced := "```" + lang + "\n" + code.String() + "```"
			tokens := estimateTokens(fenced)
			if currentTokens+tokens > c.maxTokens {
				flush()
			}
			currentChunk = append(currentChunk, fenced)
			currentTokens += tokens
		default:
			txt := extractText(n, reader.Source())
			if txt == "" {
				continue
			}
			tokens := estimateTokens(txt)
			if currentTokens+tokens > c.maxTokens {
				flush()
			}
			currentChunk = append(currentChunk, txt)
			currentTokens += tokens
		}
	}
	flush()

	// Content that parses to no textual block (a lone image, raw markup the
	// parser swallows) still has to produce a chunk.
	if len(chunks) == 0 {
		chunks = append(chunks, strings.TrimSpace(content))
	}
	return chunks
}

// estimateTokens counts words for Latin text and characters for everything
// outside ASCII, which tracks Arabic and CJK content closely enough for
// bounding chunk sizes.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	words := strings.Fields(text)
	count += len(words)
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Type() == ast.TypeBlock || node.Type() == ast.TypeInline {
			if node.Kind() == ast.KindText {
				sb.Write(node.(*ast.Text).Segment.Value(source))
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
