package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

// Memory is an in-process catalog. Runs are indexed by their start uid and,
// when present, their scan_id.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]*sliceRun
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*sliceRun)}
}

// Add records a run. The first pair must be its start document.
func (m *Memory) Add(pairs []document.Pair) error {
	if len(pairs) == 0 || pairs[0].Name != document.KindStart {
		return fmt.Errorf("%w: run must begin with a start document", errspkg.ErrMissingField)
	}
	start := pairs[0].Doc
	uid, err := start.Require(document.FieldUID)
	if err != nil {
		return err
	}

	run := &sliceRun{id: uid, pairs: append([]document.Pair(nil), pairs...)}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[uid] = run
	if scanID, ok := document.IDString(start[document.FieldScanID]); ok {
		m.runs[scanID] = run
	}
	return nil
}

func (m *Memory) Lookup(_ context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, notFound(id)
	}
	return run, nil
}
