package results

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wehubfusion/Severn/pkg/topics"
)

func sample(qid string, docs ...string) *Results {
	res := &Results{
		Query:   topics.Query{ID: qid, Lang: "eng", Query: "q", Text: "q"},
		DocLang: "rus",
		System:  "severn",
	}
	for i, id := range docs {
		res.Results = append(res.Results, Result{DocID: id, Rank: i + 1, Score: float64(len(docs) - i)})
	}
	return res
}

func TestTrecWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.txt")
	w := NewTrecWriter(path)
	if err := w.Begin(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Process(sample("1", "d1", "d2")); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	fields := strings.Fields(lines[0])
	if fields[0] != "1" || fields[1] != "Q0" || fields[2] != "d1" || fields[3] != "1" || fields[5] != "severn" {
		t.Errorf("line = %q", lines[0])
	}
}

func TestTrecReduce(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	// queries 1..4 split across 2 shards by i mod 2
	s0 := write("s0.txt", "1 Q0 d1 1 2.0 x\n1 Q0 d2 2 1.0 x\n3 Q0 d5 1 1.0 x\n")
	s1 := write("s1.txt", "2 Q0 d3 1 1.0 x\n4 Q0 d4 1 1.0 x\n")

	out := filepath.Join(dir, "results.txt")
	w := NewTrecWriter(out)
	if err := w.Reduce([]string{s0, s1}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "1 Q0 d1 1 2.0 x\n1 Q0 d2 2 1.0 x\n2 Q0 d3 1 1.0 x\n3 Q0 d5 1 1.0 x\n4 Q0 d4 1 1.0 x\n"
	if string(data) != want {
		t.Errorf("merged = %q, want %q", data, want)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.jsonl")

	// write directly without the artifact wrapper
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"query":{"id":"1","lang":"eng","query":"q","text":"q"},"doc_lang":"rus","system":"severn","results":[{"doc_id":"d1","rank":1,"score":2.5}]}` + "\n")
	f.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	item, err := reader.Next()
	if err != nil {
		t.Fatal(err)
	}
	res := item.(*Results)
	if res.Query.ID != "1" || res.DocLang != "rus" || len(res.Results) != 1 {
		t.Errorf("results = %+v", res)
	}
	if res.Results[0].DocID != "d1" || res.Results[0].Score != 2.5 {
		t.Errorf("result = %+v", res.Results[0])
	}
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}
