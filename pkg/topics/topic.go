// Package topics reads topics and turns them into the queries used by
// the second pipeline stage.
package topics

// Topic is one raw topic from the topic file.
type Topic struct {
	ID    string `json:"id"`
	Lang  string `json:"lang"`
	Title string `json:"title"`
	Desc  string `json:"desc,omitempty"`
}

// Query is the searchable form of a topic. Query carries the processed
// text handed to retrievers; Text keeps the unprocessed form and is
// never stemmed.
type Query struct {
	ID     string `json:"id"`
	Lang   string `json:"lang"`
	Query  string `json:"query"`
	Text   string `json:"text"`
	Report string `json:"report,omitempty"`
}
