// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection converts map features into a GeoJSON collection with
// the backend fields of each result as properties.
func FeatureCollection(features []Feature) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(features)),
	}

	for _, f := range features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   point(f),
			Properties: properties(f),
		})
	}

	return fc
}

// WriteGeoJSON writes the features as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, features []Feature) error {
	data, err := json.Marshal(FeatureCollection(features))
	if err != nil {
		return eris.Wrap(err, "encoding feature collection")
	}

	_, err = w.Write(data)

	return err
}

func point(f Feature) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{f.Point.Lng, f.Point.Lat})
}

func properties(f Feature) map[string]any {
	props := map[string]any{}

	if f.Result == nil {
		return props
	}

	for _, field := range f.Result.Fields {
		if len(field.Value) == 0 {
			props[field.Key] = nil

			continue
		}

		props[field.Key] = field.Value
	}

	return props
}
