// Package results defines retrieval results and their writers: a JSONL
// artifact for downstream tasks and the TREC format report for
// evaluation tools.
package results

import "github.com/wehubfusion/Severn/pkg/topics"

// Result is a single ranked document.
type Result struct {
	DocID string  `json:"doc_id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// Results is the ranked list for one query.
type Results struct {
	Query   topics.Query `json:"query"`
	DocLang string       `json:"doc_lang"`
	System  string       `json:"system"`
	Results []Result     `json:"results"`
}
