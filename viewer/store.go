// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"github.com/gimi9/geocode-web/geocode"
	"github.com/google/uuid"
)

// Store holds the results of the latest committed batch in backend order.
type Store struct {
	results []*geocode.Result
	index   map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: map[string]int{}}
}

// Replace swaps the whole content of the store for batch. Results without
// an ID get a fresh one.
func (s *Store) Replace(batch *geocode.Batch) {
	s.results = make([]*geocode.Result, 0, len(batch.Results))
	s.index = make(map[string]int, len(batch.Results))

	for _, r := range batch.Results {
		if r == nil {
			continue
		}

		if r.ID == "" {
			r.ID = uuid.NewString()
		}

		s.index[r.ID] = len(s.results)
		s.results = append(s.results, r)
	}
}

// Len returns the number of results.
func (s *Store) Len() int {
	return len(s.results)
}

// Results returns the results in order. The slice must not be modified.
func (s *Store) Results() []*geocode.Result {
	return s.results
}

// Get returns the result with the given ID and its position.
func (s *Store) Get(id string) (*geocode.Result, int, bool) {
	pos, ok := s.index[id]
	if !ok {
		return nil, -1, false
	}

	return s.results[pos], pos, true
}
