package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/chatbot"
	"github.com/muhtawa-io/muhtawa/internal/model"
	"github.com/muhtawa-io/muhtawa/internal/pkg/response"
	"github.com/muhtawa-io/muhtawa/internal/service"
)

type ChatHandler struct {
	engine  *chatbot.Engine
	history *service.HistoryService
}

func NewChatHandler(engine *chatbot.Engine, history *service.HistoryService) *ChatHandler {
	return &ChatHandler{engine: engine, history: history}
}

// chatRequest is the inbound chat body. Stream defaults to true when the
// field is absent.
type chatRequest struct {
	CategorySlug string          `json:"categorySlug"`
	ArticleSlug  string          `json:"articleSlug"`
	Messages     []model.Message `json:"messages"`
	Stream       *bool           `json:"stream"`
}

// streamEvent is one NDJSON line of a streamed answer. A stream is zero or
// more delta events followed by exactly one done or error event.
type streamEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}
	userID := getUserID(c)
	result, err := h.engine.Ask(c.Request.Context(), chatbot.AskInput{
		UserID:       userID,
		CategorySlug: req.CategorySlug,
		ArticleSlug:  req.ArticleSlug,
		Messages:     req.Messages,
		Stream:       stream,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	switch {
	case result.Outcome == model.OutcomeRedirect:
		// A redirect carries no narrative, so it is plain JSON even when the
		// client asked for a stream, and the recorded exchange keeps an empty
		// response. The outcome and slugs identify it.
		h.record(userID, result, "")
		response.Success(c, gin.H{
			"outcome":  result.Outcome,
			"note":     result.Note,
			"articles": result.Articles,
		})
	case result.Stream != nil:
		h.writeStream(c, userID, result)
	default:
		h.record(userID, result, result.Text)
		response.Success(c, gin.H{
			"outcome":    result.Outcome,
			"text":       result.Text,
			"source":     result.Source,
			"webSources": result.WebSources,
		})
	}
}

// writeStream relays generation deltas to the client as NDJSON. The exchange
// is recorded only when the stream ends cleanly; a partial answer is not
// history.
func (h *ChatHandler) writeStream(c *gin.Context, userID string, result *chatbot.Result) {
	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	var full []byte
	for delta := range result.Stream {
		if delta.Err != nil {
			logutil.GetLogger(c.Request.Context()).Error("stream generation failed", zap.Error(delta.Err))
			h.writeEvent(c, streamEvent{Type: "error", Error: chatbot.GenericErrorMessage})
			return
		}
		full = append(full, delta.Text...)
		if !h.writeEvent(c, streamEvent{Type: "delta", Text: delta.Text}) {
			return
		}
	}
	h.writeEvent(c, streamEvent{Type: "done"})
	h.record(userID, result, string(full))
}

func (h *ChatHandler) writeEvent(c *gin.Context, ev streamEvent) bool {
	line, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	if _, err := c.Writer.Write(append(line, '\n')); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func (h *ChatHandler) record(userID string, result *chatbot.Result, text string) {
	go h.history.Record(service.RecordInput{
		UserID:       userID,
		Query:        result.Query,
		Response:     text,
		ScopeType:    result.ScopeType,
		ArticleSlug:  result.ArticleSlug,
		CategorySlug: result.CategorySlug,
		Outcome:      result.Outcome,
		Source:       result.Source,
		WebSources:   result.WebSources,
	})
}

func (h *ChatHandler) History(c *gin.Context) {
	userID := getUserID(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	page, err := h.history.List(c.Request.Context(), userID, c.Query("cursor"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"messages":   page.Items,
		"nextCursor": page.NextCursor,
	})
}
