package ingestor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wawtransit/internal/domain"
	"wawtransit/internal/realtime"
)

// PositionSource is the slice of the service layer the poller consumes.
type PositionSource interface {
	CurrentPositions(ctx context.Context, opts realtime.Options) ([]*domain.VehiclePosition, error)
}

// Broadcaster receives each fresh snapshot; ClientCount lets the poller
// skip upstream work while nobody listens.
type Broadcaster interface {
	Broadcast(positions []*domain.VehiclePosition)
	ClientCount() int
}

// Poller drives the websocket hub: on every tick it pulls the memoized
// current positions and broadcasts them. It performs no schedule
// refresh; the 1-second position memoizer already bounds upstream
// polling, this just pushes the result out.
type Poller struct {
	source      PositionSource
	broadcaster Broadcaster
	interval    time.Duration
	opts        realtime.Options
	logger      *slog.Logger

	ready   bool
	readyMu sync.RWMutex
}

func NewPoller(source PositionSource, broadcaster Broadcaster, interval time.Duration, opts realtime.Options, logger *slog.Logger) *Poller {
	return &Poller{
		source:      source,
		broadcaster: broadcaster,
		interval:    interval,
		opts:        opts,
		logger:      logger.With("component", "position_poller"),
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if p.broadcaster.ClientCount() == 0 {
		return
	}

	positions, err := p.source.CurrentPositions(ctx, p.opts)
	if err != nil {
		p.logger.Error("failed to fetch positions", "error", err)
		return
	}

	p.broadcaster.Broadcast(positions)

	if !p.IsReady() {
		p.setReady(true)
		p.logger.Info("position poller ready", "vehicles", len(positions))
	}

	p.logger.Debug("poll completed", "vehicles", len(positions))
}

func (p *Poller) IsReady() bool {
	p.readyMu.RLock()
	defer p.readyMu.RUnlock()
	return p.ready
}

func (p *Poller) setReady(ready bool) {
	p.readyMu.Lock()
	defer p.readyMu.Unlock()
	p.ready = ready
}
