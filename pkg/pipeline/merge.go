package pipeline

import (
	"bufio"
	"fmt"
	"os"
)

// InterleaveFiles merges line-oriented shard files into one output by
// round-robin: one line from each shard per cycle, in job order. When
// shards were produced by a modulo partition of the input, this
// restores the original item order exactly.
func InterleaveFiles(outPath string, shardPaths []string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating merge output: %w", err)
	}
	defer out.Close()

	scanners := make([]*bufio.Scanner, len(shardPaths))
	for i, path := range shardPaths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening shard file: %w", err)
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		s.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		scanners[i] = s
	}

	w := bufio.NewWriter(out)
	active := len(scanners)
	for active > 0 {
		active = 0
		for _, s := range scanners {
			if !s.Scan() {
				continue
			}
			active++
			if _, err := w.WriteString(s.Text()); err != nil {
				return fmt.Errorf("writing merge output: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("writing merge output: %w", err)
			}
		}
	}
	for _, s := range scanners {
		if err := s.Err(); err != nil {
			return fmt.Errorf("reading shard file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing merge output: %w", err)
	}
	return out.Close()
}
