// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pool provides the bounded worker pools that drive a PACu
// archive's parallel pack (read+compress) and extract
// (decompress+write) pipelines. Every task consumes by-value inputs and
// produces a by-value result; no state crosses goroutine boundaries by
// reference.
package pool

import "context"

// RunPack drives concurrency-bounded, round-based fan-out over paths,
// invoking task once per path. Results are collected in the same order
// paths were supplied, round by round, so that a caller assigning
// monotonically increasing offsets from the result slice produces a
// deterministic archive layout. A task that returns an error is not
// retried; its slot holds whatever value the task returned alongside
// the error, and the error is returned to the caller via the errs slice
// at the same index.
func RunPack[T any](ctx context.Context, paths []string, concurrency int, task func(ctx context.Context, path string) (T, error)) ([]T, []error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]T, len(paths))
	errs := make([]error, len(paths))

	for start := 0; start < len(paths); start += concurrency {
		end := start + concurrency
		if end > len(paths) {
			end = len(paths)
		}
		round := paths[start:end]
		done := make(chan struct{}, len(round))
		for i, p := range round {
			i, p := i, p
			go func() {
				defer func() { done <- struct{}{} }()
				r, err := task(ctx, p)
				results[start+i] = r
				errs[start+i] = err
			}()
		}
		for range round {
			<-done
		}
	}
	return results, errs
}

// RunExtract partitions items into contiguous slices of
// ceil(len(items)/concurrency) items each (so at most concurrency
// slices) and runs one task per slice concurrently, summing
// the per-slice counts each task returns. A slice task's error aborts
// only that slice's remaining work; the partial count it already
// returned is still counted.
func RunExtract[T any](ctx context.Context, items []T, concurrency int, task func(ctx context.Context, slice []T) (int, error)) (int, []error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if len(items) == 0 {
		return 0, nil
	}
	perWorker := (len(items) + concurrency - 1) / concurrency
	if perWorker < 1 {
		perWorker = 1
	}

	type outcome struct {
		n   int
		err error
	}
	var slices [][]T
	for start := 0; start < len(items); start += perWorker {
		end := start + perWorker
		if end > len(items) {
			end = len(items)
		}
		slices = append(slices, items[start:end])
	}

	out := make(chan outcome, len(slices))
	for _, s := range slices {
		s := s
		go func() {
			n, err := task(ctx, s)
			out <- outcome{n: n, err: err}
		}()
	}

	total := 0
	var errs []error
	for range slices {
		o := <-out
		total += o.n
		if o.err != nil {
			errs = append(errs, o.err)
		}
	}
	return total, errs
}
