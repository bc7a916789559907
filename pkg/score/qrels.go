// Package score evaluates result lists against relevance judgments.
package score

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Qrels holds relevance judgments: query id to document id to
// relevance grade.
type Qrels map[string]map[string]int

// ReadQrels reads TREC format judgments (qid 0 docid rel) from every
// file matching the pattern. A pattern matching no files is an error.
func ReadQrels(pattern string) (Qrels, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad qrels pattern: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no qrels files match %s", pattern)
	}
	qrels := Qrels{}
	for _, path := range paths {
		if err := readQrelsFile(path, qrels); err != nil {
			return nil, err
		}
	}
	return qrels, nil
}

func readQrelsFile(path string, qrels Qrels) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening qrels: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return fmt.Errorf("malformed qrels line in %s: %q", path, line)
		}
		rel, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("malformed relevance in %s: %q", path, line)
		}
		qid := fields[0]
		if qrels[qid] == nil {
			qrels[qid] = map[string]int{}
		}
		qrels[qid][fields[2]] = rel
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading qrels: %w", err)
	}
	return nil
}
