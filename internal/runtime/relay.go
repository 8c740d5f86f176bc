package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bluesky/docrelay/internal/runtime/document"
	errspkg "github.com/bluesky/docrelay/internal/runtime/errors"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	metadatapkg "github.com/bluesky/docrelay/internal/runtime/metadata"
	"github.com/bluesky/docrelay/internal/runtime/pipeline"
)

// Relay is the Watermill handler between the two endpoints. Each inbound
// message is decoded and dispatched to its run's pipeline; whatever the
// pipelines emit while handling it becomes the handler's output, in order.
//
// The first processing error is fatal: it is recorded, reported through
// OnFatal and returned for every message that follows.
type Relay struct {
	mu sync.Mutex

	runs    *pipeline.RunRouter
	logger  loggingpkg.ServiceLogger
	metrics *RelayMetrics

	pending []document.Pair
	fatal   error

	// OnFatal is called once with the first processing error.
	OnFatal func(error)
}

// NewRelay builds a relay whose runs are assembled by factory.
func NewRelay(factory pipeline.Factory, logger loggingpkg.ServiceLogger, metrics *RelayMetrics) (*Relay, error) {
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	r := &Relay{logger: logger, metrics: metrics}
	runs, err := pipeline.NewRunRouter(factory, r.collect, logger)
	if err != nil {
		return nil, err
	}
	r.runs = runs
	return r, nil
}

func (r *Relay) collect(_ context.Context, p document.Pair) error {
	r.pending = append(r.pending, p)
	return nil
}

// Handle implements message.HandlerFunc.
func (r *Relay) Handle(msg *message.Message) ([]*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fatal != nil {
		return nil, r.fatal
	}

	pair, err := document.Decode(msg)
	if err != nil {
		return nil, r.fail(fmt.Errorf("message %s: %w", msg.UUID, err), msg)
	}
	r.metrics.RecordReceived(pair.Name.String())

	runUID := r.runs.RunOf(pair)
	r.pending = nil
	if err := r.runs.Dispatch(msg.Context(), pair); err != nil {
		r.pending = nil
		return nil, r.fail(err, msg)
	}
	r.metrics.SetBacklog(r.runs.OpenRuns(), r.runs.Buffered())

	md := metadatapkg.Forwarded(msg.Metadata).With(metadatapkg.KeyRunUID, runUID)
	out := make([]*message.Message, 0, len(r.pending))
	for _, p := range r.pending {
		encoded, err := document.Encode(p, md)
		if err != nil {
			r.pending = nil
			return nil, r.fail(err, msg)
		}
		out = append(out, encoded)
		r.metrics.RecordEmitted(p.Name.String())
	}
	r.pending = nil

	if pair.Name == document.KindStop {
		r.metrics.RecordRunCompleted()
	}
	if len(out) > 0 {
		r.logger.Debug("Relaying documents", loggingpkg.LogFields{
			"run_uid": runUID,
			"trigger": pair.Name.String(),
			"count":   len(out),
		})
	}
	return out, nil
}

func (r *Relay) fail(err error, msg *message.Message) error {
	r.fatal = err
	r.metrics.RecordFailure()
	r.logger.Error("Relay stopped on processing error", err, loggingpkg.LogFields{
		"message_uuid":   msg.UUID,
		"correlation_id": msg.Metadata.Get(metadatapkg.KeyCorrelationID),
	})
	if r.OnFatal != nil {
		r.OnFatal(err)
	}
	return err
}

// Err returns the error that stopped the relay, if any.
func (r *Relay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// Status reports how many runs are open and how many documents they hold.
func (r *Relay) Status() (openRuns, buffered int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs.OpenRuns(), r.runs.Buffered()
}
