// Package worker runs the insight-generation worker pool that drains
// the queue: claim the next request, hand it to the generator, report
// the measured duration back.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/creatorshive/arrisd/internal/arris"
	"github.com/creatorshive/arrisd/internal/metrics"
	"github.com/creatorshive/arrisd/internal/model"
)

// Generator produces insights for one queue item. The real engine is
// an external collaborator; the pool only cares about success/failure
// and how long it took.
type Generator interface {
	Generate(ctx context.Context, item *model.QueueItem) error
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, item *model.QueueItem) error

func (f GeneratorFunc) Generate(ctx context.Context, item *model.QueueItem) error {
	return f(ctx, item)
}

// Options configures a Pool.
type Options struct {
	Count        int
	PollInterval time.Duration
	Logger       *log.Logger
}

// Pool drains the queue with a fixed number of goroutines. Each loop
// claims the head of the combined drain order, runs the generator, and
// completes the request with the wall-clock duration.
type Pool struct {
	svc      *arris.Service
	gen      Generator
	count    int
	interval time.Duration
	logger   *log.Logger
}

func NewPool(svc *arris.Service, gen Generator, opts Options) *Pool {
	count := opts.Count
	if count <= 0 {
		count = 2
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Pool{
		svc:      svc,
		gen:      gen,
		count:    count,
		interval: interval,
		logger:   opts.Logger,
	}
}

// Run blocks until ctx is cancelled. In-flight generations finish
// their completion bookkeeping before return.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.count; i++ {
		id := i + 1
		g.Go(func() error {
			p.loop(ctx, id)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item := p.svc.StartNext()
		if item == nil {
			// Idle: wait one poll interval or cancellation
			timer.Reset(p.interval)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			continue
		}

		p.process(ctx, id, item)
	}
}

func (p *Pool) process(ctx context.Context, id int, item *model.QueueItem) {
	start := time.Now()
	err := p.gen.Generate(ctx, item)
	seconds := time.Since(start).Seconds()

	status := "completed"
	if err != nil {
		status = "failed"
		p.logf("worker=%d generate failed request_id=%s err=%v", id, item.RequestID, err)
	}
	p.svc.CompleteProcessing(item.RequestID, seconds, err == nil)

	metrics.RequestsCompleted.WithLabelValues(string(item.Priority), status).Inc()
	metrics.ProcessingDuration.WithLabelValues(string(item.Priority)).Observe(seconds)

	p.logf("worker=%d %s request_id=%s seconds=%.2f", id, status, item.RequestID, seconds)
}

func (p *Pool) logf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	p.logger.Printf("%s INFO worker: %s", time.Now().Format(time.RFC3339), msg)
}
