// Package batch renders many labels from a manifest with a bounded worker
// pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ketutoka/printlabel/internal/label"
)

// Renderer composes one label. *label.Composer implements it.
type Renderer interface {
	Compose(ctx context.Context, req label.Request) (*label.RenderedLabel, error)
}

// RendererFactory builds one Renderer per worker, since a composer
// serialises its calls.
type RendererFactory func() Renderer

// Config controls a batch run.
type Config struct {
	// Workers bounds the pool (0 = runtime.NumCPU()).
	Workers int
	// ContinueOnError keeps rendering after a failed entry.
	ContinueOnError bool
	Progress        ProgressCallback
}

// Item is the outcome of one entry, in manifest order.
type Item struct {
	Index int                  `json:"index"`
	ID    string               `json:"id"`
	Label *label.RenderedLabel `json:"label,omitempty"`
	Err   error                `json:"-"`
}

// Result summarises a batch run.
type Result struct {
	Items    []Item
	Duration time.Duration
	Workers  int
}

// Failed returns the number of entries that did not render.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

type job struct {
	index int
	req   label.Request
}

// Run renders every request. Results keep the input order. Without
// ContinueOnError the first failure cancels the entries not yet started and
// is returned; with it, Run only fails when ctx is cancelled.
func Run(ctx context.Context, reqs []label.Request, newRenderer RendererFactory, cfg Config) (*Result, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyManifest
	}
	if newRenderer == nil {
		return nil, errors.New("batch: no renderer factory")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(reqs))
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	progress.OnStart(len(reqs))
	defer progress.OnComplete()

	jobs := make(chan job)
	results := make(chan Item, len(reqs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go worker(runCtx, newRenderer(), jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, r := range reqs {
			select {
			case jobs <- job{index: i, req: r}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	items := make([]Item, len(reqs))
	done := make([]bool, len(reqs))
	var firstErr error
	processed := 0
	for it := range results {
		items[it.Index] = it
		done[it.Index] = true
		processed++
		progress.OnProgress(processed, len(reqs))
		if it.Err != nil {
			progress.OnError(it.Index, it.Err)
			if !cfg.ContinueOnError && firstErr == nil {
				firstErr = fmt.Errorf("label %d (%s): %w", it.Index+1, it.ID, it.Err)
				cancel()
			}
		}
	}

	res := &Result{Items: items, Duration: time.Since(start), Workers: workers}
	for i := range items {
		if !done[i] {
			items[i] = Item{Index: i, ID: reqs[i].ID, Err: context.Canceled}
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, firstErr
}

func worker(ctx context.Context, r Renderer, jobs <-chan job, results chan<- Item, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		it := Item{Index: j.index, ID: j.req.ID}
		if err := ctx.Err(); err != nil {
			it.Err = err
		} else {
			it.Label, it.Err = r.Compose(ctx, j.req)
		}
		results <- it
	}
}
