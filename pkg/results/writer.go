package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/run"
)

// FileName is the results artifact file.
const FileName = "results.jsonl"

// JSONWriter writes results to a retrieve or rerank artifact.
type JSONWriter struct {
	name     string
	artifact *run.Artifact
	file     *os.File
	buf      *bufio.Writer
}

// NewJSONWriter creates a results writer bound to its artifact
// directory.
func NewJSONWriter(name string, artifact *run.Artifact) *JSONWriter {
	return &JSONWriter{name: name, artifact: artifact}
}

// Name identifies the task in logs and timing.
func (w *JSONWriter) Name() string { return w.name }

// Begin creates the artifact directory and output file.
func (w *JSONWriter) Begin() error {
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(w.artifact.Dir, FileName))
	if err != nil {
		return fmt.Errorf("creating results output: %w", err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return nil
}

// Process writes one query's results as a JSON line and passes them
// through.
func (w *JSONWriter) Process(item interface{}) (interface{}, error) {
	res, ok := item.(*Results)
	if !ok {
		return nil, fmt.Errorf("results writer received %T", item)
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding results for query %s: %w", res.Query.ID, err)
	}
	if _, err := w.buf.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("writing results for query %s: %w", res.Query.ID, err)
	}
	return res, nil
}

// End flushes the output and finalizes the artifact.
func (w *JSONWriter) End() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing results output: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing results output: %w", err)
	}
	w.file = nil
	return w.artifact.End()
}

// Reduce merges shard result files by round-robin interleave and
// finalizes the merged artifact.
func (w *JSONWriter) Reduce(shardDirs []string) error {
	paths := make([]string, len(shardDirs))
	for i, dir := range shardDirs {
		paths[i] = filepath.Join(dir, FileName)
	}
	if err := pipeline.CheckShards(paths); err != nil {
		return err
	}
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	if err := pipeline.InterleaveFiles(filepath.Join(w.artifact.Dir, FileName), paths); err != nil {
		return err
	}
	return w.artifact.End()
}

// TrecWriter writes the TREC format run file used by standard
// evaluation tools: qid Q0 docid rank score system.
type TrecWriter struct {
	path string
	file *os.File
	buf  *bufio.Writer
}

// NewTrecWriter creates a TREC results writer for the given file.
func NewTrecWriter(path string) *TrecWriter {
	return &TrecWriter{path: path}
}

// Name identifies the task in logs and timing.
func (w *TrecWriter) Name() string { return "results" }

// Begin creates the output file, and its directory for shard runs
// writing under a part directory.
func (w *TrecWriter) Begin() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return nil
}

// Process writes one query's results in TREC format and passes them
// through.
func (w *TrecWriter) Process(item interface{}) (interface{}, error) {
	res, ok := item.(*Results)
	if !ok {
		return nil, fmt.Errorf("trec writer received %T", item)
	}
	for _, r := range res.Results {
		line := fmt.Sprintf("%s Q0 %s %d %f %s\n", res.Query.ID, r.DocID, r.Rank, r.Score, res.System)
		if _, err := w.buf.WriteString(line); err != nil {
			return nil, fmt.Errorf("writing results for query %s: %w", res.Query.ID, err)
		}
	}
	return res, nil
}

// End flushes and closes the results file.
func (w *TrecWriter) End() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing results file: %w", err)
	}
	f := w.file
	w.file = nil
	return f.Close()
}

// Reduce merges shard TREC files by round-robin over per-query line
// groups, restoring the original query order. A query's lines are
// consecutive within a shard, so the group boundaries follow the qid
// column.
func (w *TrecWriter) Reduce(shardPaths []string) error {
	if err := pipeline.CheckShards(shardPaths); err != nil {
		return err
	}
	groups := make([][][]string, len(shardPaths))
	for i, path := range shardPaths {
		g, err := readTrecGroups(path)
		if err != nil {
			return err
		}
		groups[i] = g
	}

	out, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer out.Close()
	buf := bufio.NewWriter(out)
	for active := true; active; {
		active = false
		for i := range groups {
			if len(groups[i]) == 0 {
				continue
			}
			active = true
			for _, line := range groups[i][0] {
				if _, err := buf.WriteString(line + "\n"); err != nil {
					return fmt.Errorf("writing results file: %w", err)
				}
			}
			groups[i] = groups[i][1:]
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return out.Close()
}

// readTrecGroups reads a TREC file as consecutive per-query line
// groups.
func readTrecGroups(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading shard results: %w", err)
	}
	defer f.Close()

	var groups [][]string
	var current []string
	lastQID := ""
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		qid, _, _ := strings.Cut(line, " ")
		if qid != lastQID && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		lastQID = qid
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading shard results: %w", err)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}
