package docs

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

// NewReader opens the configured document collection and returns an
// iterator of *Doc. The format field selects the reader.
func NewReader(input config.DocumentsInput) (pipeline.Iterator, error) {
	if err := checkEncoding(input.Encoding); err != nil {
		return nil, err
	}
	f, err := os.Open(input.Path)
	if err != nil {
		return nil, fmt.Errorf("opening document collection: %w", err)
	}
	switch input.Format {
	case "jsonl":
		return &jsonlReader{file: f, scanner: newLineScanner(f), lang: input.Lang}, nil
	case "tsv":
		return &tsvReader{file: f, scanner: newLineScanner(f), lang: input.Lang}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("unknown document format '%s'", input.Format)
	}
}

func checkEncoding(encoding string) error {
	switch strings.ToLower(encoding) {
	case "", "utf8", "utf-8":
		return nil
	}
	return fmt.Errorf("unsupported encoding '%s'", encoding)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return s
}

// jsonlReader reads one JSON document per line.
type jsonlReader struct {
	file    *os.File
	scanner *bufio.Scanner
	lang    string
}

func (r *jsonlReader) Next() (interface{}, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading documents: %w", err)
		}
		r.file.Close()
		return nil, io.EOF
	}
	doc := &Doc{}
	if err := json.Unmarshal(r.scanner.Bytes(), doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if doc.Lang == "" {
		doc.Lang = r.lang
	}
	return doc, nil
}

// tsvReader reads id<TAB>text lines.
type tsvReader struct {
	file    *os.File
	scanner *bufio.Scanner
	lang    string
}

func (r *tsvReader) Next() (interface{}, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading documents: %w", err)
		}
		r.file.Close()
		return nil, io.EOF
	}
	line := r.scanner.Text()
	id, text, found := strings.Cut(line, "\t")
	if !found {
		return nil, fmt.Errorf("malformed tsv document line: %q", line)
	}
	return &Doc{ID: id, Lang: r.lang, Text: text}, nil
}

// NewProcessedReader reads a documents.jsonl artifact produced by a
// previous run, for resuming downstream tasks.
func NewProcessedReader(path string) (pipeline.Iterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening processed documents: %w", err)
	}
	return &jsonlReader{file: f, scanner: newLineScanner(f)}, nil
}
