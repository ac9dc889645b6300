package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	ScopeTypeArticle  = "article"
	ScopeTypeCategory = "category"
)

const (
	OutcomeMessage    = "message"
	OutcomeRedirect   = "redirect"
	OutcomeOutOfScope = "outOfScope"
)

const (
	SourceCorpus = "corpus"
	SourceWeb    = "web"
)

// Message is one turn of the conversation as sent by the client. The last
// user message is the active query; earlier turns are context for the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type WebSource struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ChatMessage is one completed exchange. Rows are append-only: written once
// when the exchange finishes and never mutated. ArticleSlug/CategorySlug are
// denormalized at write time and resolved against live records on read.
type ChatMessage struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	UserQuery         string      `json:"user_query"`
	AssistantResponse string      `json:"assistant_response"`
	ScopeType         string      `json:"scope_type"`
	ArticleSlug       string      `json:"article_slug,omitempty"`
	CategorySlug      string      `json:"category_slug,omitempty"`
	Outcome           string      `json:"outcome"`
	Source            string      `json:"source,omitempty"`
	WebSources        []WebSource `json:"web_sources,omitempty"`
	Ctime             int64       `json:"ctime"`
}

// RedirectArticle is one suggestion in a redirect outcome.
type RedirectArticle struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Excerpt string `json:"excerpt"`
	Client  string `json:"client"`
}
