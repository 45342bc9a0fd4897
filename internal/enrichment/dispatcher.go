package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic carries one Request per captured note.
const Topic = "notes.captured"

// Request asks for one note to be enriched.
type Request struct {
	RunID    string   `json:"run_id"`
	NotePath string   `json:"note_path"`
	URLs     []string `json:"urls"`
	Ack      *Ack     `json:"ack,omitempty"`
}

// Enricher is implemented by Orchestrator.
type Enricher interface {
	Enrich(ctx context.Context, notePath string, urls []string, ack *Ack) error
}

// Dispatcher runs enrichment in the background. Requests travel over an
// in-process watermill channel; each one is handled in its own goroutine
// so a slow page never holds up the next capture.
type Dispatcher struct {
	pubsub   *gochannel.GoChannel
	enricher Enricher
	logger   *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending atomic.Int64
	started atomic.Bool
}

func NewDispatcher(enricher Enricher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("dispatch")
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			newWatermillLogger(logger),
		),
		enricher: enricher,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Start subscribes to Topic. Requests dispatched before Start are lost.
func (d *Dispatcher) Start(ctx context.Context) error {
	messages, err := d.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	d.started.Store(true)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for msg := range messages {
			d.handle(msg)
		}
	}()
	return nil
}

// Dispatch queues notePath for enrichment and returns the run ID.
func (d *Dispatcher) Dispatch(notePath string, urls []string, ack *Ack) (string, error) {
	if !d.started.Load() {
		return "", fmt.Errorf("dispatcher not started")
	}
	req := Request{RunID: uuid.NewString(), NotePath: notePath, URLs: urls, Ack: ack}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	msg := message.NewMessage(req.RunID, payload)
	d.pending.Add(1)
	if err := d.pubsub.Publish(Topic, msg); err != nil {
		d.pending.Add(-1)
		return "", fmt.Errorf("publish request: %w", err)
	}
	return req.RunID, nil
}

func (d *Dispatcher) handle(msg *message.Message) {
	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		d.logger.Error("bad enrichment request", zap.String("uuid", msg.UUID), zap.Error(err))
		msg.Ack()
		d.pending.Add(-1)
		return
	}
	// Enrichment is never retried, so ack before running it.
	msg.Ack()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.pending.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("enrichment panic", zap.String("run", req.RunID), zap.Any("panic", r))
			}
		}()

		log := d.logger.With(zap.String("run", req.RunID), zap.String("note", req.NotePath))
		log.Debug("enrichment started")
		if err := d.enricher.Enrich(d.baseCtx, req.NotePath, req.URLs, req.Ack); err != nil {
			log.Error("enrichment failed", zap.Error(err))
			return
		}
		log.Debug("enrichment finished")
	}()
}

// Pending returns the number of dispatched runs that have not finished.
func (d *Dispatcher) Pending() int64 {
	return d.pending.Load()
}

// Close stops accepting requests and waits for running enrichments until
// ctx is done, then cancels them.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.started.Store(false)
	if err := d.pubsub.Close(); err != nil {
		d.logger.Warn("close pubsub", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
