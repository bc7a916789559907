package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wehubfusion/Severn/pkg/pipeline"
)

// NewReader reads a results.jsonl artifact, for resuming rerank or
// score tasks from a completed retrieve artifact.
func NewReader(path string) (pipeline.Iterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results: %w", err)
	}
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &reader{file: f, scanner: s}, nil
}

type reader struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (r *reader) Next() (interface{}, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading results: %w", err)
		}
		r.file.Close()
		return nil, io.EOF
	}
	res := &Results{}
	if err := json.Unmarshal(r.scanner.Bytes(), res); err != nil {
		return nil, fmt.Errorf("parsing results: %w", err)
	}
	return res, nil
}
