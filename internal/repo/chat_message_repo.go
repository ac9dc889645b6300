package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/muhtawa-io/muhtawa/internal/model"
	"github.com/muhtawa-io/muhtawa/internal/pkg/dbutil"
)

type ChatMessageRepo struct {
	db *sql.DB
}

func NewChatMessageRepo(db *sql.DB) *ChatMessageRepo {
	return &ChatMessageRepo{db: db}
}

// Create appends one completed exchange. Rows are never updated afterwards.
func (r *ChatMessageRepo) Create(ctx context.Context, msg *model.ChatMessage) error {
	var sources interface{}
	if len(msg.WebSources) > 0 {
		blob, err := json.Marshal(msg.WebSources)
		if err != nil {
			return err
		}
		sources = blob
	}
	data := map[string]interface{}{
		"id":                 msg.ID,
		"user_id":            msg.UserID,
		"user_query":         msg.UserQuery,
		"assistant_response": msg.AssistantResponse,
		"scope_type":         msg.ScopeType,
		"article_slug":       msg.ArticleSlug,
		"category_slug":      msg.CategorySlug,
		"outcome":            msg.Outcome,
		"source":             msg.Source,
		"web_sources":        sources,
		"ctime":              msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chat_messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListByUser pages a user's exchanges reverse-chronologically. The cursor is
// the (ctime, id) pair of the last row of the previous page; zero values mean
// "from the top". Keyset pagination keeps pages stable under concurrent
// inserts, unlike offsets.
func (r *ChatMessageRepo) ListByUser(ctx context.Context, userID string, beforeCtime int64, beforeID string, limit int) ([]model.ChatMessage, error) {
	const head = `
		SELECT id, user_id, user_query, assistant_response, scope_type,
		       article_slug, category_slug, outcome, source, web_sources, ctime
		FROM chat_messages
		WHERE user_id = $1
	`
	query := head + ` ORDER BY ctime DESC, id DESC LIMIT $2`
	args := []interface{}{userID, limit}
	if beforeID != "" {
		query = head + ` AND (ctime, id) < ($2, $3) ORDER BY ctime DESC, id DESC LIMIT $4`
		args = []interface{}{userID, beforeCtime, beforeID, limit}
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	messages := make([]model.ChatMessage, 0, limit)
	for rows.Next() {
		var msg model.ChatMessage
		var sources []byte
		if err := rows.Scan(
			&msg.ID, &msg.UserID, &msg.UserQuery, &msg.AssistantResponse, &msg.ScopeType,
			&msg.ArticleSlug, &msg.CategorySlug, &msg.Outcome, &msg.Source, &sources, &msg.Ctime,
		); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.WebSources); err != nil {
				return nil, err
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
