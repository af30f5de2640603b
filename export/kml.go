// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"io"

	"github.com/gimi9/geocode-web/geocode"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/kml"
	gokml "github.com/twpayne/go-kml/v3"
)

// Document builds a KML document with one Placemark per feature. The
// placemark is named after the input address and carries the backend
// fields as ExtendedData.
func Document(features []Feature) (*gokml.KMLElement, error) {
	placemarks := make([]gokml.Element, 0, len(features))

	for _, f := range features {
		geometry, err := kml.Encode(point(f))
		if err != nil {
			return nil, eris.Wrapf(err, "encoding point %s", f.Point)
		}

		children := []gokml.Element{}

		if f.Result != nil {
			children = append(children, gokml.Name(f.Result.InputAddress))

			if data := extendedData(f.Result); data != nil {
				children = append(children, data)
			}
		}

		children = append(children, geometry)
		placemarks = append(placemarks, gokml.Placemark(children...))
	}

	return gokml.KML(gokml.Document(placemarks...)), nil
}

// WriteKML writes the features as a KML document.
func WriteKML(w io.Writer, features []Feature) error {
	doc, err := Document(features)
	if err != nil {
		return err
	}

	return doc.Write(w)
}

func extendedData(r *geocode.Result) gokml.Element {
	if len(r.Fields) == 0 {
		return nil
	}

	data := make([]gokml.Element, 0, len(r.Fields))

	for _, f := range r.Fields {
		data = append(data, gokml.Data(f.Key, gokml.Value(f.String())))
	}

	return gokml.ExtendedData(data...)
}
