// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/render"
)

// Status is the outcome shown for a list entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// CSS classes of list entries.
const (
	classItem    = "nav-item"
	classSuccess = "geocode-success"
	classFailed  = "geocode-failed"
	classHidden  = "hide"
)

// Entry is one line of the result list.
type Entry struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Label    string `json:"label"`
	Status   Status `json:"status"`
	Class    string `json:"class"`
	Hidden   bool   `json:"hidden"`
}

// Filter selects which entries are visible.
type Filter struct {
	ShowSuccess bool `json:"success"`
	ShowFailed  bool `json:"failed"`
}

// ShowAll makes every entry visible.
var ShowAll = Filter{ShowSuccess: true, ShowFailed: true}

func (f Filter) hides(s Status) bool {
	if s == StatusSuccess {
		return !f.ShowSuccess
	}

	return !f.ShowFailed
}

// ResultList is the list panel, one entry per stored result.
type ResultList struct {
	entries []Entry
	filter  Filter
}

// NewResultList returns an empty list showing every entry.
func NewResultList() *ResultList {
	return &ResultList{filter: ShowAll}
}

// Rebuild replaces the entries with one per result, in order, applying the
// current filter.
func (l *ResultList) Rebuild(results []*geocode.Result) {
	l.entries = make([]Entry, 0, len(results))

	for pos, r := range results {
		e := Entry{
			ID:       r.ID,
			Position: pos,
			Label:    render.Label(r),
			Status:   StatusFailed,
		}

		if r.Success() {
			e.Status = StatusSuccess
		}

		l.entries = append(l.entries, l.styled(e))
	}
}

// SetFilter changes which statuses are visible. It only toggles the hidden
// flag of entries.
func (l *ResultList) SetFilter(f Filter) {
	l.filter = f

	for i, e := range l.entries {
		l.entries[i] = l.styled(e)
	}
}

// Filter returns the current filter.
func (l *ResultList) Filter() Filter {
	return l.filter
}

// Entries returns a copy of the entries.
func (l *ResultList) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len returns the number of entries, hidden ones included.
func (l *ResultList) Len() int {
	return len(l.entries)
}

func (l *ResultList) styled(e Entry) Entry {
	e.Hidden = l.filter.hides(e.Status)

	e.Class = classItem + " " + classFailed
	if e.Status == StatusSuccess {
		e.Class = classItem + " " + classSuccess
	}

	if e.Hidden {
		e.Class += " " + classHidden
	}

	return e
}
