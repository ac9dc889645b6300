package model

type Category struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Ctime int64  `json:"ctime"`
}

type Article struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Client     string `json:"client"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Excerpt    string `json:"excerpt"`
	Content    string `json:"content"`
	Published  int    `json:"published"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}
