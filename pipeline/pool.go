package pipeline

import (
	"context"
	"sync"
)

// pool is a fixed-size worker pool. Per-video fan-out inside a stage runs
// on it so concurrency against third-party services stays bounded.
type pool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newPool(size int) *pool {
	if size <= 0 {
		size = 1
	}
	p := &pool{tasks: make(chan func(), size*2)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for fn := range p.tasks {
		if fn != nil {
			fn()
		}
	}
}

func (p *pool) submit(fn func()) {
	p.tasks <- fn
}

func (p *pool) stop() {
	p.once.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}

// itemOutcome pairs one fan-out item's output with its error, preserving
// the input index so callers can keep discovery order.
type itemOutcome[O any] struct {
	idx int
	val O
	err error
}

// forEach runs fn over items on the pool and blocks until every item
// finishes or the context dies. Completion order is unspecified; outcomes
// come back indexed. A cancelled context short-circuits items that have
// not started yet.
func forEach[I, O any](ctx context.Context, p *pool, items []I, fn func(context.Context, I) (O, error)) []itemOutcome[O] {
	outcomes := make([]itemOutcome[O], len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		i, item := i, item
		p.submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				outcomes[i] = itemOutcome[O]{idx: i, err: err}
				return
			}
			val, err := fn(ctx, item)
			outcomes[i] = itemOutcome[O]{idx: i, val: val, err: err}
		})
	}
	wg.Wait()
	return outcomes
}
