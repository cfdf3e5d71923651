package server

import (
	"context"
	"time"
)

// rendererPool hands out renderers one request at a time. Renderers are
// created lazily up to the pool size.
type rendererPool struct {
	slots chan Renderer
	newFn func() Renderer
}

func newRendererPool(size int, newFn func() Renderer) *rendererPool {
	p := &rendererPool{slots: make(chan Renderer, size), newFn: newFn}
	for i := 0; i < size; i++ {
		p.slots <- nil
	}
	return p
}

// acquire blocks until a renderer is free or ctx is done.
func (p *rendererPool) acquire(ctx context.Context) (Renderer, error) {
	start := time.Now()
	select {
	case r := <-p.slots:
		composerWait.Observe(time.Since(start).Seconds())
		if r == nil {
			r = p.newFn()
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *rendererPool) release(r Renderer) {
	p.slots <- r
}
