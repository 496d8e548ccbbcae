// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package discovery

import (
	"context"
	"strconv"

	"github.com/autobrr/discovarr/internal/cache"
	"github.com/autobrr/discovarr/internal/tmdb"
)

// task is a single in-flight fetch. spawn returns the handle immediately;
// join blocks until the fetch has run to completion.
type task[T any] struct {
	value T
	err   error
	done  chan struct{}
}

// spawn starts fn on its own goroutine. The semaphore caps in-flight
// upstream calls across all concurrent fan-outs; acquisition happens inside
// the goroutine so spawning never blocks the caller.
func spawn[T any](sem chan struct{}, fn func() (T, error)) *task[T] {
	t := &task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		if sem != nil {
			sem <- struct{}{}
			defer func() { <-sem }()
		}
		t.value, t.err = fn()
	}()
	return t
}

func (t *task[T]) join() (T, error) {
	<-t.done
	return t.value, t.err
}

type pageFetch func(ctx context.Context, page int) (*tmdb.PageResult, error)

// fetchPages expands a logical page into width consecutive upstream pages
// (base = logicalPage*width, descending), fetches them concurrently through
// the cache, and folds the pages together in launch order. The fold order is
// keyed by launch index, so the merged result is reproducible regardless of
// which fetch completes first.
func (s *Service) fetchPages(ctx context.Context, region string, fetch pageFetch, logicalPage, width int) (*tmdb.PageResult, error) {
	base := logicalPage * width

	tasks := make([]*task[*tmdb.PageResult], 0, width)
	for i := 0; i < width; i++ {
		page := base - i
		tasks = append(tasks, spawn(s.sem, func() (*tmdb.PageResult, error) {
			return cache.GetOrCompute(ctx, s.cache, region, strconv.Itoa(page), func(ctx context.Context) (*tmdb.PageResult, error) {
				return fetch(ctx, page)
			})
		}))
	}

	// Join barrier: every task runs to completion before any result is used,
	// even when an earlier page already failed.
	results := make([]*tmdb.PageResult, len(tasks))
	var firstErr error
	for i, t := range tasks {
		result, err := t.join()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[i] = result
	}
	if firstErr != nil {
		return nil, firstErr
	}

	merged := results[0]
	for _, result := range results[1:] {
		merged = mergeResults(merged, result)
	}
	return merged, nil
}
