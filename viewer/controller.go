// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package viewer holds the presentation state of the geocoding map: the
// result store, the map viewport with its layers and the result list. A
// Controller owns one of each and keeps them in lockstep.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gimi9/geocode-web/export"
	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/render"
	"github.com/gimi9/geocode-web/spatial"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrStale is returned when a newer request superseded the one whose
	// response arrived.
	ErrStale = errors.New("response superseded by a newer request")
	// ErrNotFound is returned for an unknown result ID.
	ErrNotFound = errors.New("result not found")
	// ErrNoCoordinates is returned when a located result was required.
	ErrNoCoordinates = errors.New("result has no coordinates")
	// ErrResolution is returned for an H3 resolution outside 1 to
	// spatial.MaxCellResolution.
	ErrResolution = errors.New("invalid cell resolution")
)

// UserInputSample is the sample entry that clears the query instead of
// loading a sample.
const UserInputSample = "user input"

// Source tells how a batch reached the controller.
type Source string

const (
	SourceQuery   Source = "query"
	SourcePreview Source = "preview"
	SourceRestore Source = "restore"
)

// Commit describes a batch that replaced the store.
type Commit struct {
	Generation uint64
	Source     Source
	Name       string
	Query      string
	Batch      *geocode.Batch
	Summary    Summary
}

// CommitHook is called after every commit, outside the controller lock.
type CommitHook func(ctx context.Context, c Commit)

// View is a snapshot of everything the page draws.
type View struct {
	Generation uint64   `json:"generation"`
	Name       string   `json:"name"`
	Hidden     bool     `json:"hidden"`
	Summary    *Summary `json:"summary,omitempty"`
	Map        MapState `json:"map"`
	Entries    []Entry  `json:"entries"`
	Filter     Filter   `json:"filter"`
}

// Selection is the outcome of clicking a list entry.
type Selection struct {
	ID      string   `json:"id"`
	Status  Status   `json:"status"`
	Popup   string   `json:"popup,omitempty"`
	Failure string   `json:"failure,omitempty"`
	Panned  bool     `json:"panned"`
	Map     MapState `json:"map"`
}

// CellCount is the number of located results inside an H3 cell.
type CellCount struct {
	Cell   string        `json:"cell"`
	Center spatial.Point `json:"center"`
	Count  int           `json:"count"`
}

// Controller owns the store, the map view and the result list of one
// workspace. Requests are numbered; a response is committed only if no
// newer request was started in the meantime.
type Controller struct {
	geocoder geocode.Geocoder

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	store      *Store
	mapView    *MapView
	list       *ResultList
	summary    *Summary
	name       string
	hidden     bool
	hooks      []CommitHook
}

// NewController returns a controller with an empty store.
func NewController(g geocode.Geocoder) *Controller {
	return &Controller{
		geocoder: g,
		store:    NewStore(),
		mapView:  NewMapView(),
		list:     NewResultList(),
		name:     export.DefaultName,
	}
}

// OnCommit registers a hook run after each commit.
func (c *Controller) OnCommit(hook CommitHook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, hook)
}

// Query geocodes q and commits the result. On failure the previous state
// is kept and the error returned.
func (c *Controller) Query(ctx context.Context, q string) (*View, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, geocode.ErrEmptyQuery
	}

	gen, reqCtx, done := c.begin(ctx)
	defer done()

	batch, err := c.geocoder.Geocode(reqCtx, q)
	if err != nil {
		if c.isStale(gen) {
			return nil, ErrStale
		}

		return nil, eris.Wrap(err, "running query")
	}

	return c.commit(ctx, gen, batch, Commit{Source: SourceQuery, Query: q})
}

// Preview geocodes a published data portal file. When the backend rejects
// it the result panel is hidden and the previous results are kept.
func (c *Controller) Preview(ctx context.Context, resID, file string) (*View, error) {
	gen, reqCtx, done := c.begin(ctx)
	defer done()

	batch, err := c.geocoder.Preview(reqCtx, resID, file)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()

		if gen != c.generation {
			return nil, ErrStale
		}

		if geocode.IsPreviewError(err) {
			c.hidden = true
			view := c.viewLocked()

			return &view, err
		}

		return nil, eris.Wrapf(err, "previewing %s", resID)
	}

	return c.commit(ctx, gen, batch, Commit{Source: SourcePreview, Name: file})
}

// LoadSample returns the text of a backend sample and makes its name the
// default export name. UserInputSample returns an empty query.
func (c *Controller) LoadSample(ctx context.Context, name string) (string, error) {
	if name == UserInputSample {
		return "", nil
	}

	text, err := c.geocoder.Sample(ctx, name)
	if err != nil {
		return "", eris.Wrapf(err, "loading sample %s", name)
	}

	c.mu.Lock()
	c.name = name
	c.mu.Unlock()

	return text, nil
}

// Restore commits a stored batch without calling the backend. Any request
// in flight is superseded.
func (c *Controller) Restore(ctx context.Context, batch *geocode.Batch, name string) (*View, error) {
	gen, _, done := c.begin(ctx)
	defer done()

	return c.commit(ctx, gen, batch, Commit{Source: SourceRestore, Name: name})
}

// begin starts a new generation and cancels the request of the previous one.
func (c *Controller) begin(ctx context.Context) (uint64, context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.generation++
	c.cancel = cancel

	return c.generation, reqCtx, cancel
}

func (c *Controller) isStale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return gen != c.generation
}

func (c *Controller) commit(ctx context.Context, gen uint64, batch *geocode.Batch, info Commit) (*View, error) {
	c.mu.Lock()

	if gen != c.generation {
		c.mu.Unlock()

		zap.L().Debug("dropping stale response", zap.Uint64("generation", gen), zap.String("source", string(info.Source)))

		return nil, ErrStale
	}

	c.store.Replace(batch)
	c.mapView.RenderResults(c.store.Results())
	c.list.Rebuild(c.store.Results())

	summary := Summarize(batch)
	c.summary = &summary
	c.hidden = false

	if info.Name != "" {
		c.name = info.Name
	}

	view := c.viewLocked()
	hooks := append([]CommitHook(nil), c.hooks...)
	results, entries := c.store.Len(), c.list.Len()

	c.mu.Unlock()

	info.Generation = gen
	info.Name = view.Name
	info.Batch = batch
	info.Summary = summary

	zap.L().Info("committed batch",
		zap.Uint64("generation", gen),
		zap.String("source", string(info.Source)),
		zap.Int("results", results),
		zap.Int("entries", entries),
		zap.Int("located", len(view.Map.Circles)))

	for _, hook := range hooks {
		hook(ctx, info)
	}

	return &view, nil
}

// View returns a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Generation: c.generation,
		Name:       c.name,
		Hidden:     c.hidden,
		Map:        c.mapView.State(),
		Entries:    c.list.Entries(),
		Filter:     c.list.Filter(),
	}

	if c.summary != nil {
		s := *c.summary
		v.Summary = &s
	}

	return v
}

// Name returns the default export name.
func (c *Controller) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.name
}

// Results returns the stored results in order.
func (c *Controller) Results() []*geocode.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*geocode.Result(nil), c.store.Results()...)
}

// SetViewport records the canvas size and, when zoom is positive, the view
// the page moved to.
func (c *Controller) SetViewport(width, height int, center spatial.Point, zoom float64) MapState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mapView.Resize(width, height)

	if zoom > 0 {
		c.mapView.SetView(center, zoom)
	}

	return c.mapView.State()
}

// Select selects a result. A located result gets the single selection
// marker and its popup; a failed one returns its diagnostics and leaves the
// map untouched.
func (c *Controller) Select(id string) (*Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, pos, ok := c.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p, located := r.Point()
	if !located {
		return &Selection{
			ID:      id,
			Status:  StatusFailed,
			Failure: render.Failure(r),
			Map:     c.mapView.State(),
		}, nil
	}

	panned := c.mapView.Select(Marker{ID: id, Position: pos, Point: p})

	return &Selection{
		ID:     id,
		Status: StatusSuccess,
		Popup:  render.Popup(r),
		Panned: panned,
		Map:    c.mapView.State(),
	}, nil
}

// ClosePopup records that the page closed the open popup. The selection
// marker stays.
func (c *Controller) ClosePopup() MapState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mapView.ClosePopup()

	return c.mapView.State()
}

// Popup returns the popup HTML of a located result.
func (c *Controller) Popup(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, _, ok := c.store.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if !r.Success() {
		return "", fmt.Errorf("%w: %s", ErrNoCoordinates, id)
	}

	return render.Popup(r), nil
}

// Failure returns the diagnostics HTML of a result.
func (c *Controller) Failure(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, _, ok := c.store.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return render.Failure(r), nil
}

// SetFilter changes the visible statuses and returns the entries.
func (c *Controller) SetFilter(f Filter) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.list.SetFilter(f)

	return c.list.Entries()
}

// Export serializes the whole store, whatever the filter. An empty name
// falls back to the current default name.
func (c *Controller) Export(format export.Format, name string) (*export.Download, error) {
	c.mu.Lock()
	results := append([]*geocode.Result(nil), c.store.Results()...)
	features := c.featuresLocked()

	if name == "" {
		name = c.name
	}
	c.mu.Unlock()

	d, err := export.Encode(format, name, results, features)
	if err != nil {
		return nil, eris.Wrapf(err, "exporting %s", format)
	}

	return d, nil
}

// featuresLocked joins the circle layer with the store by result ID.
func (c *Controller) featuresLocked() []export.Feature {
	circles := c.mapView.Circles()
	features := make([]export.Feature, 0, len(circles))

	for _, m := range circles {
		r, _, ok := c.store.Get(m.ID)
		if !ok {
			continue
		}

		features = append(features, export.Feature{ID: m.ID, Point: m.Point, Result: r})
	}

	return features
}

// Cells counts the located results per H3 cell at res, most populated
// first.
func (c *Controller) Cells(res int) ([]CellCount, error) {
	if res < 1 || res > spatial.MaxCellResolution {
		return nil, fmt.Errorf("%w: %d", ErrResolution, res)
	}

	c.mu.Lock()
	circles := c.mapView.Circles()
	c.mu.Unlock()

	counts := map[int64]int{}

	for _, m := range circles {
		cells, err := spatial.Cells(m.Point)
		if err != nil {
			return nil, eris.Wrapf(err, "indexing %s", m.ID)
		}

		counts[cells[res-1]]++
	}

	out := make([]CellCount, 0, len(counts))
	for cell, n := range counts {
		center, err := spatial.CellCenter(cell)
		if err != nil {
			return nil, eris.Wrapf(err, "locating cell %s", spatial.CellString(cell))
		}

		out = append(out, CellCount{Cell: spatial.CellString(cell), Center: center, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}

		return out[i].Cell < out[j].Cell
	})

	return out, nil
}
