package models

// ScoredDocument is a knowledge-base document ranked for a query.
type ScoredDocument struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Category string  `json:"category"`
	Source   string  `json:"source,omitempty"`
}
