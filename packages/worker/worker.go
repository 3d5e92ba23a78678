// Package worker
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simplesapien/redirect-resolver/packages/domain"
	"github.com/simplesapien/redirect-resolver/packages/metrics"
)

type Tracer interface {
	Trace(ctx context.Context, rawURL string) (*domain.Resolution, error)
}

// Pool runs resolutions with instrumentation, and batches of them with at
// most maxWorkers in flight.
type Pool struct {
	tracer     Tracer
	maxWorkers int
}

func New(tracer Tracer, maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Pool{tracer: tracer, maxWorkers: maxWorkers}
}

func (p *Pool) Resolve(ctx context.Context, rawURL string) (*domain.Resolution, error) {
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	start := time.Now()
	res, err := p.tracer.Trace(ctx, rawURL)
	elapsed := time.Since(start)
	metrics.ObserveResolution(res, err, elapsed)

	if err != nil {
		slog.Debug("Resolution failed", "url", rawURL, "error", err, "duration_ms", elapsed.Milliseconds())
		return nil, err
	}
	if res.MaxDepthReached {
		slog.Info("Max redirect depth reached", "url", rawURL, "final_url", res.FinalURL)
	}
	slog.Debug("Resolution finished", "url", rawURL, "final_url", res.FinalURL, "hops", len(res.Hops), "duration_ms", elapsed.Milliseconds())
	return res, nil
}

// ResolveAll resolves every URL and returns one item per input, in input
// order. A failed URL is reported in its item and does not stop the others.
func (p *Pool) ResolveAll(ctx context.Context, urls []string) []domain.BatchItem {
	items := make([]domain.BatchItem, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for i, rawURL := range urls {
		items[i].OriginalURL = rawURL
		g.Go(func() error {
			res, err := p.Resolve(gCtx, rawURL)
			if err != nil {
				slog.Warn("Task failed", "url", rawURL, "error", err)
				items[i].Err = err
				items[i].Error = err.Error()
				return nil
			}
			items[i].FinalURL = res.FinalURL
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("Finished processing batch", "count", len(urls))
	return items
}
