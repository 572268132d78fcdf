package syncclient

import (
	"context"
	"sync"
	"time"
)

// Poller is the consistency backstop under the socket: a fixed-interval
// re-fetch against the authoritative API that runs regardless of connection
// state, so worst-case staleness stays bounded even when realtime delivery
// fails entirely.
type Poller struct {
	interval time.Duration
	refetch  func(ctx context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

func NewPoller(interval time.Duration, refetch func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		interval: interval,
		refetch:  refetch,
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop. Calling it twice, or after Stop, is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.refetch(ctx)
			}
		}
	}()
}

// Stop is idempotent and safe before Start; a never-started Poller simply
// refuses any later Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-p.done
}
