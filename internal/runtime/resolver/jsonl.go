package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoncodec "github.com/bluesky/docrelay/internal/runtime/jsoncodec"
)

// SpecJSONL resolves datums against newline-delimited JSON files.
const SpecJSONL = "JSONL"

// JSONL reads root/resource_path and returns the line selected by the
// "index" parameter, optionally narrowed by "key". Parsed files are cached
// since every datum of a resource points at the same file.
type JSONL struct {
	mu    sync.Mutex
	files map[string][]any
}

// NewJSONL creates a JSONL resolver with an empty file cache.
func NewJSONL() *JSONL {
	return &JSONL{files: make(map[string][]any)}
}

func (j *JSONL) Resolve(ctx context.Context, res Resource, params map[string]any) (any, error) {
	raw, ok := params[ParamIndex]
	if !ok {
		return nil, fmt.Errorf("jsonl: %s parameter is required", ParamIndex)
	}
	idx, err := intParam(ParamIndex, raw)
	if err != nil {
		return nil, fmt.Errorf("jsonl: %w", err)
	}

	lines, err := j.load(filepath.Join(res.Root, res.ResourcePath))
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("jsonl: line %d out of range [0,%d)", idx, len(lines))
	}

	rest := make(map[string]any, 1)
	if key, ok := params[ParamKey]; ok {
		rest[ParamKey] = key
	}
	return selectValue(lines[idx], rest)
}

func (j *JSONL) load(path string) ([]any, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if lines, ok := j.files[path]; ok {
		return lines, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jsonl: %w", err)
	}
	defer f.Close()

	var lines []any
	err = jsoncodec.ForEachLine(f, func(line []byte) error {
		var v any
		if err := jsoncodec.Unmarshal(line, &v); err != nil {
			return fmt.Errorf("jsonl: %s line %d: %w", path, len(lines), err)
		}
		lines = append(lines, v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	j.files[path] = lines
	return lines, nil
}
