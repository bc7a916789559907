package topics

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/wehubfusion/Severn/pkg/config"
)

func TestTopicReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topics.jsonl")
	content := `{"id":"EN-1","title":"climate change","desc":"effects of warming"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	reader, err := NewTopicReader(config.TopicsInput{Format: "jsonl", Lang: "eng", Path: path})
	if err != nil {
		t.Fatal(err)
	}
	item, err := reader.Next()
	if err != nil {
		t.Fatal(err)
	}
	topic := item.(*Topic)
	if topic.ID != "EN-1" || topic.Lang != "eng" || topic.Title != "climate change" {
		t.Errorf("topic = %+v", topic)
	}
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestExtractor(t *testing.T) {
	topic := &Topic{ID: "EN-7", Lang: "eng", Title: "solar power", Desc: "photovoltaic adoption"}

	t.Run("title", func(t *testing.T) {
		e := NewExtractor(&config.TopicsConfig{Fields: "title"})
		out, err := e.Process(topic)
		if err != nil {
			t.Fatal(err)
		}
		q := out.(*Query)
		if q.Query != "solar power" || q.Text != "solar power" {
			t.Errorf("query = %+v", q)
		}
	})

	t.Run("title plus desc", func(t *testing.T) {
		e := NewExtractor(&config.TopicsConfig{Fields: "title+desc"})
		out, err := e.Process(topic)
		if err != nil {
			t.Fatal(err)
		}
		if got := out.(*Query).Query; got != "solar power photovoltaic adoption" {
			t.Errorf("query = %q", got)
		}
	})

	t.Run("prefix stripped", func(t *testing.T) {
		e := NewExtractor(&config.TopicsConfig{
			Fields: "title",
			Input:  config.TopicsInput{Prefix: "EN-"},
		})
		out, err := e.Process(topic)
		if err != nil {
			t.Fatal(err)
		}
		if got := out.(*Query).ID; got != "7" {
			t.Errorf("id = %q, want 7", got)
		}
	})
}

func TestProcessor(t *testing.T) {
	p, err := NewProcessor(config.TextProcessConfig{
		Normalize: config.NormalizeConfig{Lowercase: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Process(&Query{ID: "1", Query: "Solar  Power", Text: "Solar  Power"})
	if err != nil {
		t.Fatal(err)
	}
	q := out.(*Query)
	if q.Query != "solar power" {
		t.Errorf("query = %q", q.Query)
	}
	if q.Text != "Solar  Power" {
		t.Errorf("text should stay unprocessed, got %q", q.Text)
	}
}
