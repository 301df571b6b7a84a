package models

import "io"

// AskRequest is the body of GET|POST /get_answer.
type AskRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// UploadedFile is one named byte stream received for ingestion.
type UploadedFile struct {
	Name    string
	Content io.Reader
}
