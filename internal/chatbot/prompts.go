package chatbot

import (
	"fmt"
	"strings"
)

// WebDocPrefix marks a grounding document as coming from the open web.
// The system prompt, and with it the citation footer, is chosen purely from
// this provenance marker.
const WebDocPrefix = "web:"

// GroundingDocument is a text passage handed to the answer-generation call.
type GroundingDocument struct {
	ID   string
	Text string
}

const corpusSystemPrompt = `You are the reading assistant of an Arabic content platform.
Answer the reader's question using ONLY the documents below.
- Answer in the language of the question; default to Arabic.
- If the documents do not contain the answer, say so explicitly: "لم أجد إجابة لسؤالك في المقالات المتاحة." Do not invent facts.
- Keep answers concise and grounded in the documents.`

const webSystemPrompt = `You are the reading assistant of an Arabic content platform.
The platform's own articles did not cover this question, so the documents below come from a live web search.
- Answer in the language of the question; default to Arabic.
- Ground your answer in the documents below.
- End your answer with this exact footer on its own line: "المصدر: نتائج بحث الويب"`

const generalSystemPrompt = `You are the reading assistant of an Arabic content platform.
No reference documents are available for this question.
- Answer in the language of the question; default to Arabic.
- Give a careful general answer and say that the platform's articles do not cover the topic.`

// RedirectNote is the user-facing message attached to a redirect outcome.
const RedirectNote = "يبدو أن سؤالك خارج نطاق هذا القسم، لكن قد تجد ما يفيدك في هذه المقالات:"

// GenericErrorMessage is the only error text end users ever see for
// generation failures.
const GenericErrorMessage = "عذراً، حدث خطأ ما. حاول مرة أخرى لاحقاً."

// systemPromptFor selects the system prompt from grounding provenance and
// renders the documents into it. Any web-origin document switches the whole
// request to the web prompt with its citation footer.
func systemPromptFor(docs []GroundingDocument) string {
	if len(docs) == 0 {
		return generalSystemPrompt
	}
	base := corpusSystemPrompt
	if hasWebDoc(docs) {
		base = webSystemPrompt
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nDOCUMENTS:\n")
	for _, doc := range docs {
		fmt.Fprintf(&sb, "<document id=%q>\n%s\n</document>\n", doc.ID, doc.Text)
	}
	return sb.String()
}

func hasWebDoc(docs []GroundingDocument) bool {
	for _, doc := range docs {
		if strings.HasPrefix(doc.ID, WebDocPrefix) {
			return true
		}
	}
	return false
}
