package telemetry

import (
	"context"
	"sync"

	"github.com/okkern/thermactl/internal/events"
	"github.com/okkern/thermactl/internal/logger"
	"github.com/okkern/thermactl/internal/thermal"
)

// Consumer drains governor event feeds into a sink. It never feeds
// anything back into the control loop.
type Consumer struct {
	sink        Sink
	snapshots   *events.Subscription[thermal.Snapshot]
	transitions *events.Subscription[thermal.Transition]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(sink Sink, snapshots *events.Subscription[thermal.Snapshot], transitions *events.Subscription[thermal.Transition]) *Consumer {
	return &Consumer{
		sink:        sink,
		snapshots:   snapshots,
		transitions: transitions,
	}
}

// Start begins draining the feeds. Starting twice is a no-op.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go c.run(runCtx)

	return nil
}

// Stop halts draining and releases the subscriptions. Safe to call more
// than once.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()

	c.snapshots.Close()
	c.transitions.Close()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-c.snapshots.C():
			if !ok {
				return
			}
			if err := c.sink.RecordSnapshot(ctx, snap); err != nil {
				logger.Error().Err(err).Msg("Failed to record snapshot")
			}
		case transition, ok := <-c.transitions.C():
			if !ok {
				return
			}
			if err := c.sink.RecordTransition(ctx, transition); err != nil {
				logger.Error().Err(err).Msg("Failed to record transition")
			}
		}
	}
}
