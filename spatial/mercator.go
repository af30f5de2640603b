// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import "math"

// TileSize is the pixel size of a map tile at every zoom level.
const TileSize = 256

const maxLatitude = 85.0511287798

// Pixel is a position in the Web Mercator pixel space of some zoom level.
type Pixel struct {
	X float64
	Y float64
}

func scale(zoom float64) float64 {
	return TileSize * math.Pow(2, zoom)
}

// Project converts p into pixel coordinates at zoom.
func Project(p Point, zoom float64) Pixel {
	lat := math.Max(math.Min(p.Lat, maxLatitude), -maxLatitude)
	sinLat := math.Sin(lat * math.Pi / 180)
	s := scale(zoom)

	return Pixel{
		X: (p.Lng + 180) / 360 * s,
		Y: (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * s,
	}
}

// Unproject converts pixel coordinates at zoom back into a point.
func Unproject(px Pixel, zoom float64) Point {
	s := scale(zoom)
	n := math.Pi - 2*math.Pi*px.Y/s

	return Point{
		Lat: 180 / math.Pi * math.Atan(math.Sinh(n)),
		Lng: px.X/s*360 - 180,
	}
}

// VisibleBounds returns the area shown by a viewport of width x height pixels
// centered on center.
func VisibleBounds(center Point, zoom float64, width, height int) Bounds {
	c := Project(center, zoom)
	halfW, halfH := float64(width)/2, float64(height)/2

	return NewBounds(
		Unproject(Pixel{X: c.X - halfW, Y: c.Y + halfH}, zoom),
		Unproject(Pixel{X: c.X + halfW, Y: c.Y - halfH}, zoom),
	)
}

// FitBounds returns the center and the largest whole zoom in [minZoom,
// maxZoom] at which b fits a width x height viewport leaving padding pixels
// on every side.
func FitBounds(b Bounds, width, height, padding int, minZoom, maxZoom float64) (Point, float64) {
	sw := Project(b.SouthWest, 0)
	ne := Project(b.NorthEast, 0)

	availW := math.Max(float64(width-2*padding), 1)
	availH := math.Max(float64(height-2*padding), 1)

	dx, dy := ne.X-sw.X, sw.Y-ne.Y

	zoom := maxZoom

	if dx > 0 || dy > 0 {
		ratio := math.Inf(1)
		if dx > 0 {
			ratio = availW / dx
		}

		if dy > 0 {
			ratio = math.Min(ratio, availH/dy)
		}

		zoom = math.Floor(math.Log2(ratio))
	}

	zoom = math.Max(minZoom, math.Min(maxZoom, zoom))

	mid := Pixel{X: (sw.X + ne.X) / 2, Y: (sw.Y + ne.Y) / 2}

	return Unproject(mid, 0), zoom
}
