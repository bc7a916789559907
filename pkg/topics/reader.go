package topics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/pipeline"
)

// NewTopicReader opens the configured topic file and returns an
// iterator of *Topic.
func NewTopicReader(input config.TopicsInput) (pipeline.Iterator, error) {
	f, err := os.Open(input.Path)
	if err != nil {
		return nil, fmt.Errorf("opening topics: %w", err)
	}
	switch input.Format {
	case "jsonl":
		return &topicJSONLReader{file: f, scanner: newLineScanner(f), lang: input.Lang}, nil
	case "tsv":
		return &topicTSVReader{file: f, scanner: newLineScanner(f), lang: input.Lang}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("unknown topic format '%s'", input.Format)
	}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return s
}

type topicJSONLReader struct {
	file    *os.File
	scanner *bufio.Scanner
	lang    string
}

func (r *topicJSONLReader) Next() (interface{}, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading topics: %w", err)
		}
		r.file.Close()
		return nil, io.EOF
	}
	topic := &Topic{}
	if err := json.Unmarshal(r.scanner.Bytes(), topic); err != nil {
		return nil, fmt.Errorf("parsing topic: %w", err)
	}
	if topic.Lang == "" {
		topic.Lang = r.lang
	}
	return topic, nil
}

type topicTSVReader struct {
	file    *os.File
	scanner *bufio.Scanner
	lang    string
}

func (r *topicTSVReader) Next() (interface{}, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading topics: %w", err)
		}
		r.file.Close()
		return nil, io.EOF
	}
	line := r.scanner.Text()
	id, title, found := strings.Cut(line, "\t")
	if !found {
		return nil, fmt.Errorf("malformed tsv topic line: %q", line)
	}
	return &Topic{ID: id, Lang: r.lang, Title: title}, nil
}

// NewQueryReader reads a queries.jsonl file, either a pre-built input
// or the artifact of an earlier task.
func NewQueryReader(path string) (pipeline.Iterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening queries: %w", err)
	}
	return &queryReader{file: f, scanner: newLineScanner(f)}, nil
}

type queryReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (r *queryReader) Next() (interface{}, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading queries: %w", err)
		}
		r.file.Close()
		return nil, io.EOF
	}
	query := &Query{}
	if err := json.Unmarshal(r.scanner.Bytes(), query); err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}
	return query, nil
}
