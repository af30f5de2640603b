// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"math"

	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/spatial"
)

// Viewport defaults.
const (
	DefaultZoom   = 7
	MinZoom       = 6
	MaxZoom       = 19
	DefaultWidth  = 1024
	DefaultHeight = 768
	// FitPadding is kept free on every side when fitting the results.
	FitPadding = 50
)

// DefaultCenter is the initial map center.
var DefaultCenter = spatial.Point{Lat: 37.5, Lng: 127}

// TileLayer describes the base map tiles.
type TileLayer struct {
	URL         string  `json:"url"`
	Attribution string  `json:"attribution"`
	MinZoom     float64 `json:"min_zoom"`
	MaxZoom     float64 `json:"max_zoom"`
}

// BaseTiles is the vworld base map.
var BaseTiles = TileLayer{
	URL:         "https://xdworld.vworld.kr/2d/Base/service/{z}/{x}/{y}.png",
	Attribution: `&copy; <a href="https://xdworld.vworld.kr">브이월드</a>`,
	MinZoom:     MinZoom,
	MaxZoom:     MaxZoom,
}

// CircleStyle is the look of a result marker.
type CircleStyle struct {
	Radius      int     `json:"radius"`
	Fill        bool    `json:"fill"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	Weight      int     `json:"weight"`
}

// ResultStyle is used for every located result.
var ResultStyle = CircleStyle{
	Radius:      8,
	Fill:        true,
	FillColor:   "navy",
	FillOpacity: 0.9,
	Weight:      2,
}

// Marker is a point on one of the map layers bound to a result.
type Marker struct {
	ID       string        `json:"id"`
	Position int           `json:"position"`
	Point    spatial.Point `json:"point"`
}

// MapState is a snapshot of the viewport and its layers.
type MapState struct {
	Center    spatial.Point  `json:"center"`
	Zoom      float64        `json:"zoom"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Bounds    spatial.Bounds `json:"bounds"`
	Tiles     TileLayer      `json:"tiles"`
	Style     CircleStyle    `json:"style"`
	Circles   []Marker       `json:"circles"`
	Selection *Marker        `json:"selection,omitempty"`
	PopupID   string         `json:"popup_id,omitempty"`
}

// MapView is the map viewport with its circle layer, one marker per located
// result, and its selection layer holding at most one marker.
type MapView struct {
	center spatial.Point
	zoom   float64
	width  int
	height int

	circles   []Marker
	selection []Marker
	popupID   string
}

// NewMapView returns a viewport with the default center, zoom and size.
func NewMapView() *MapView {
	return &MapView{
		center: DefaultCenter,
		zoom:   DefaultZoom,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Resize sets the canvas size in pixels. Non positive values are ignored.
func (m *MapView) Resize(width, height int) {
	if width > 0 {
		m.width = width
	}

	if height > 0 {
		m.height = height
	}
}

// SetView moves the viewport, clamping the zoom to the tile range.
func (m *MapView) SetView(center spatial.Point, zoom float64) {
	m.center = center
	m.zoom = clampZoom(zoom)
}

// Center returns the viewport center.
func (m *MapView) Center() spatial.Point {
	return m.center
}

// Zoom returns the viewport zoom.
func (m *MapView) Zoom() float64 {
	return m.zoom
}

// Bounds returns the area currently visible.
func (m *MapView) Bounds() spatial.Bounds {
	return spatial.VisibleBounds(m.center, m.zoom, m.width, m.height)
}

// RenderResults rebuilds the circle layer from results, clears the
// selection and fits the viewport to the circles. An empty layer leaves the
// viewport where it is.
func (m *MapView) RenderResults(results []*geocode.Result) {
	m.circles = m.circles[:0]
	m.selection = nil
	m.popupID = ""

	for pos, r := range results {
		if p, ok := r.Point(); ok {
			m.circles = append(m.circles, Marker{ID: r.ID, Position: pos, Point: p})
		}
	}

	b := m.CircleBounds()
	if !b.IsValid() {
		return
	}

	center, zoom := spatial.FitBounds(b, m.width, m.height, FitPadding, MinZoom, MaxZoom)
	m.SetView(center, zoom)
}

// Circles returns the circle layer in result order.
func (m *MapView) Circles() []Marker {
	out := make([]Marker, len(m.circles))
	copy(out, m.circles)

	return out
}

// CircleBounds returns the bounds of the circle layer.
func (m *MapView) CircleBounds() spatial.Bounds {
	var b spatial.Bounds
	for _, c := range m.circles {
		b = b.Extend(c.Point)
	}

	return b
}

// Select replaces the selection layer with marker and opens its popup. The
// viewport pans to the marker, keeping the zoom, only when it lies outside
// the visible bounds. It reports whether it panned.
func (m *MapView) Select(marker Marker) bool {
	m.selection = []Marker{marker}
	m.popupID = marker.ID

	if m.Bounds().Contains(marker.Point) {
		return false
	}

	m.center = marker.Point

	return true
}

// Selection returns the selected marker.
func (m *MapView) Selection() (Marker, bool) {
	if len(m.selection) == 0 {
		return Marker{}, false
	}

	return m.selection[0], true
}

// ClosePopup closes the open popup.
func (m *MapView) ClosePopup() {
	m.popupID = ""
}

// State returns a snapshot of the viewport.
func (m *MapView) State() MapState {
	s := MapState{
		Center:  m.center,
		Zoom:    m.zoom,
		Width:   m.width,
		Height:  m.height,
		Bounds:  m.Bounds(),
		Tiles:   BaseTiles,
		Style:   ResultStyle,
		Circles: m.Circles(),
		PopupID: m.popupID,
	}

	if sel, ok := m.Selection(); ok {
		s.Selection = &sel
	}

	return s
}

func clampZoom(zoom float64) float64 {
	if math.IsNaN(zoom) {
		return DefaultZoom
	}

	return math.Max(MinZoom, math.Min(MaxZoom, zoom))
}
