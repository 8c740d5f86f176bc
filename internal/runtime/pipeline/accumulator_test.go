package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
)

func TestAccumulatorHoldsUntilStop(t *testing.T) {
	acc := NewAccumulator()
	rec := &recorder{}
	ctx := context.Background()
	run := scenarioRun("r1")

	for _, p := range run[:len(run)-1] {
		require.NoError(t, acc.Process(ctx, p, rec.emit))
		assert.Empty(t, rec.pairs, "nothing may leave before stop")
	}
	assert.Equal(t, len(run)-1, acc.Len())

	require.NoError(t, acc.Process(ctx, run[len(run)-1], rec.emit))
	assert.Equal(t, run, rec.pairs)
	assert.Zero(t, acc.Len())
}

func TestAccumulatorKeepsUnsentPairsOnEmitError(t *testing.T) {
	boom := errors.New("publish failed")
	acc := NewAccumulator()
	rec := &recorder{failAt: 3, err: boom}
	ctx := context.Background()
	run := scenarioRun("r1")

	var err error
	for _, p := range run {
		err = acc.Process(ctx, p, rec.emit)
	}
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.pairs, 2)
	assert.Equal(t, len(run)-2, acc.Len())
}

func TestAccumulatorRejectsUnknownKind(t *testing.T) {
	acc := NewAccumulator()
	err := acc.Process(context.Background(), pair("mystery", document.Document{}), (&recorder{}).emit)
	assert.ErrorIs(t, err, errspkg.ErrUnrecognizedDocumentKind)
	assert.Zero(t, acc.Len())
}
