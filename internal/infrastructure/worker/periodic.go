package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Periodic runs a task on a fixed interval until stopped
type Periodic struct {
	name       string
	interval   time.Duration
	runOnStart bool
	task       func(ctx context.Context) error
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
	failed  int
	lastErr error
}

// NewPeriodic creates a worker that calls task every interval. With runOnStart the task
// also runs once right after Start.
func NewPeriodic(name string, interval time.Duration, runOnStart bool, task func(ctx context.Context) error, logger *zap.Logger) *Periodic {
	return &Periodic{
		name:       name,
		interval:   interval,
		runOnStart: runOnStart,
		task:       task,
		logger:     logger,
	}
}

// Start launches the loop in its own goroutine
func (p *Periodic) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %s", p.name, p.interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("%s already running", p.name)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx, p.done)
	return nil
}

// Stop cancels the loop and waits for a task in flight to return
func (p *Periodic) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info("Periodic worker stopped",
		zap.String("worker_name", p.name),
		zap.Int("runs", p.runs),
		zap.Int("failed", p.failed))
	return nil
}

// Name returns the worker name
func (p *Periodic) Name() string {
	return p.name
}

// Stats returns how many runs happened, how many failed and the last error
func (p *Periodic) Stats() (runs, failed int, lastErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs, p.failed, p.lastErr
}

func (p *Periodic) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if p.runOnStart {
		p.runOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context) {
	err := p.task(ctx)

	p.mu.Lock()
	p.runs++
	if err != nil {
		p.failed++
		p.lastErr = err
	}
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		p.logger.Error("Periodic task failed",
			zap.String("worker_name", p.name),
			zap.Error(err))
	}
}
