package model

type ArticleEmbedding struct {
	ArticleID   string    `json:"article_id"`
	Embedding   []float32 `json:"embedding"`
	ContentHash string    `json:"content_hash"`
	Mtime       int64     `json:"mtime"`
}

type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
