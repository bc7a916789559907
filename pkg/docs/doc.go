// Package docs reads, processes and writes documents for the first
// pipeline stage.
package docs

// Doc is one document flowing through stage 1. OriginalText preserves
// the unprocessed text for the document store while Text carries the
// processed form used for indexing; only Text is serialized.
type Doc struct {
	ID   string `json:"id"`
	Lang string `json:"lang"`
	Date string `json:"date,omitempty"`
	Text string `json:"text"`

	OriginalText string `json:"-"`
}
