// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// MaxCellResolution is the finest H3 resolution kept for geocoded points.
const MaxCellResolution = 8

// Cells returns the H3 cells containing p for resolutions 1 to
// MaxCellResolution. cells[0] is resolution 1.
func Cells(p Point) ([]int64, error) {
	latLng := h3.NewLatLng(p.Lat, p.Lng)
	cells := make([]int64, 0, MaxCellResolution)

	for res := 1; res <= MaxCellResolution; res++ {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return nil, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		cells = append(cells, int64(cell))
	}

	return cells, nil
}

// CellString returns the canonical hexadecimal form of a cell.
func CellString(cell int64) string {
	return h3.Cell(cell).String()
}

// CellCenter returns the center point of a cell.
func CellCenter(cell int64) (Point, error) {
	latLng, err := h3.CellToLatLng(h3.Cell(cell))
	if err != nil {
		return Point{}, fmt.Errorf("error locating h3 cell %x: %w", cell, err)
	}

	return Point{Lat: latLng.Lat, Lng: latLng.Lng}, nil
}
