// Package pipeline runs a function over a stream of items on a pool of
// workers.
package pipeline

import (
	"context"
	"iter"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

const DefaultChunkSize = 64

// Options configures a Map run.
type Options struct {
	// Workers is the number of goroutines running fn. Zero means GOMAXPROCS.
	Workers int
	// ChunkSize is the number of items handed to a worker at once.
	ChunkSize int
	// Ordered emits results in input order. Otherwise results are emitted
	// chunk by chunk as workers finish them.
	Ordered bool
}

// DefaultOptions returns ordered processing on all CPUs.
func DefaultOptions() Options {
	return Options{
		Workers:   runtime.GOMAXPROCS(0),
		ChunkSize: DefaultChunkSize,
		Ordered:   true,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

type batch[T any] struct {
	seq   int
	items []T
}

// Map applies fn to every item of seq and passes the results to emit.
// emit is always called from the calling goroutine. The first error
// returned by emit, or the cancellation of ctx, stops the run and is
// returned.
func Map[In, Out any](ctx context.Context, opts Options, seq iter.Seq[In], fn func(In) Out, emit func(Out) error) error {
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	jobs := make(chan batch[In], opts.Workers)
	results := make(chan batch[Out], opts.Workers)

	eg.Go(func() error {
		defer close(jobs)
		send := func(b batch[In]) error {
			select {
			case jobs <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		cur := batch[In]{}
		for item := range seq {
			if err := ctx.Err(); err != nil {
				return err
			}
			cur.items = append(cur.items, item)
			if len(cur.items) == opts.ChunkSize {
				if err := send(cur); err != nil {
					return err
				}
				cur = batch[In]{seq: cur.seq + 1}
			}
		}
		if len(cur.items) > 0 {
			return send(cur)
		}
		return nil
	})

	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Add(1)
		eg.Go(func() error {
			defer wg.Done()
			for b := range jobs {
				out := batch[Out]{seq: b.seq, items: make([]Out, len(b.items))}
				for i, item := range b.items {
					out.items[i] = fn(item)
				}
				select {
				case results <- out:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	emitErr := collect(results, opts.Ordered, emit)
	if emitErr != nil {
		cancel()
		for range results {
		}
	}
	err := eg.Wait()
	if emitErr != nil {
		return emitErr
	}
	return err
}

func collect[Out any](results <-chan batch[Out], ordered bool, emit func(Out) error) error {
	emitAll := func(items []Out) error {
		for _, o := range items {
			if err := emit(o); err != nil {
				return err
			}
		}
		return nil
	}

	pending := map[int][]Out{}
	next := 0
	for b := range results {
		if !ordered {
			if err := emitAll(b.items); err != nil {
				return err
			}
			continue
		}
		pending[b.seq] = b.items
		for {
			items, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := emitAll(items); err != nil {
				return err
			}
		}
	}
	return nil
}
