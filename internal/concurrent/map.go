// Package concurrent provides a bounded-concurrency map over a slice of
// inputs. It is shared by the content-quality scorer and the enrichment
// orchestrator, each with its own concurrency limit.
package concurrent

import (
	"context"
	"sync"
	"sync/atomic"
)

// Map applies fn to every item with at most limit operations in flight and
// returns outputs in input order. Workers claim the next unclaimed index from
// a shared cursor, so slow and fast items are load-balanced rather than
// statically partitioned.
//
// The first per-item error cancels the context passed to sibling operations
// and is returned once all workers have drained; items already in flight run
// to completion. A limit below 1 is treated as 1. Zero items return
// immediately without spawning workers.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		cursor   atomic.Int64
		firstErr error
		once     sync.Once
		wg       sync.WaitGroup
	)
	cursor.Store(-1)

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1))
				if i >= len(items) {
					return
				}
				out, err := fn(ctx, items[i])
				if err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results[i] = out
			}
		}()
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// MapSettle is like Map but isolates per-item failures: a failing item leaves
// the zero value in its output slot while every other item still runs and
// keeps its result. The returned slice always has len(items) entries. The
// optional onError callback is invoked for each failure.
func MapSettle[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error), onError func(item T, err error)) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	var (
		cursor atomic.Int64
		wg     sync.WaitGroup
	)
	cursor.Store(-1)

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1))
				if i >= len(items) {
					return
				}
				out, err := fn(ctx, items[i])
				if err != nil {
					if onError != nil {
						onError(items[i], err)
					}
					continue
				}
				results[i] = out
			}
		}()
	}

	wg.Wait()
	return results
}
