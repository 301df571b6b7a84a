package models

// AskResponse is the body returned by /get_answer. Docs and Pages are index
// aligned with the chunks the answer was generated from. Pages are 1-based.
type AskResponse struct {
	Answer    string   `json:"answer"`
	Docs      []string `json:"docs"`
	Pages     []int    `json:"pages"`
	SessionID string   `json:"session_id"`
}

// AnswerResult is what the question answering pipeline produces before it is
// projected into an AskResponse.
type AnswerResult struct {
	Question           string
	StandaloneQuestion string
	Answer             string
	Chunks             []Chunk
	SessionID          string
}

// Response flattens the result into the wire format.
func (r *AnswerResult) Response() *AskResponse {
	resp := &AskResponse{
		Answer:    r.Answer,
		Docs:      make([]string, 0, len(r.Chunks)),
		Pages:     make([]int, 0, len(r.Chunks)),
		SessionID: r.SessionID,
	}
	for _, c := range r.Chunks {
		resp.Docs = append(resp.Docs, c.Source)
		resp.Pages = append(resp.Pages, c.Page)
	}
	return resp
}
