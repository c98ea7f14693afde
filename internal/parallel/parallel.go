// Package parallel runs indexed work items on a bounded pool of goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Workers resolves a worker-count knob: values <= 0 mean one worker per CPU,
// and the result never exceeds the number of items.
func Workers(requested, items int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ForEach calls fn(i) for every i in [0, n) using up to workers goroutines.
// Every index runs; it returns the error of the lowest index that failed.
func ForEach(n, workers int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	numWorkers := Workers(workers, n)

	errs := make([]error, n)
	var wg sync.WaitGroup
	jobs := make(chan int, n)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
