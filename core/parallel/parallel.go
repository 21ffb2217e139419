// Package parallel splits index ranges across goroutines. Every worker owns a
// disjoint [start, end) range, so callers writing row i of a preallocated
// result get the same output as a sequential loop.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into one contiguous chunk per CPU core and runs fn on each chunk concurrently.
func Parallelize(items int, fn func(start, end int)) {
	_ = ParallelizeErr(items, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeErr is Parallelize for chunk functions that can fail.
// It returns the error of the lowest-indexed failing chunk.
func ParallelizeErr(items int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	errs := make([]error, numWorkers)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, items)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			errs[w] = fn(s, e)
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items is at most threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ParallelizeErrWithThreshold is the error-returning form of ParallelizeWithThreshold.
func ParallelizeErrWithThreshold(items int, threshold int, fn func(start, end int) error) error {
	if items <= threshold {
		return fn(0, items)
	}
	return ParallelizeErr(items, fn)
}
