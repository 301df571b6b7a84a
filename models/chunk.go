package models

// Chunk is a bounded span of document text with its provenance. The ID is
// empty until the vector index assigns one.
type Chunk struct {
	ID       string                 `json:"id,omitempty"`
	Text     string                 `json:"text"`
	Source   string                 `json:"source"`
	Page     int                    `json:"page"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Metadata keys stored alongside every chunk in the vector index.
const (
	MetaSource = "source"
	MetaPage   = "page"
)
