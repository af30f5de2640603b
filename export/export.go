// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package export serializes geocode results into downloadable files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/spatial"
	"github.com/rotisserie/eris"
)

// BOM is prepended to every file so that spreadsheets detect UTF-8.
const BOM = "\ufeff"

// DefaultName is used when no file name was chosen.
const DefaultName = "geocode"

// ErrUnknownFormat is returned for an unsupported export format.
var ErrUnknownFormat = errors.New("unknown export format")

// Format is an export file format.
type Format string

const (
	CSV       Format = "csv"
	JSONLines Format = "json"
	GeoJSON   Format = "geojson"
	KML       Format = "kml"
)

// Formats lists the supported formats.
var Formats = []Format{CSV, JSONLines, GeoJSON, KML}

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return CSV, nil
	case "json", "jl", "jsonl":
		return JSONLines, nil
	case "geojson":
		return GeoJSON, nil
	case "kml":
		return KML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the file name suffix of the format.
func (f Format) Extension() string {
	switch f {
	case CSV:
		return ".geocode.csv"
	case JSONLines:
		return ".geocode.jl"
	case GeoJSON:
		return ".geocode.geojson"
	case KML:
		return ".geocode.kml"
	default:
		return ".geocode"
	}
}

// MIME returns the media type of the format.
func (f Format) MIME() string {
	switch f {
	case CSV:
		return "text/csv"
	case JSONLines, GeoJSON:
		return "application/json"
	case KML:
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// Feature is a located result as drawn on the map.
type Feature struct {
	ID     string
	Point  spatial.Point
	Result *geocode.Result
}

// Download is a ready to serve export file.
type Download struct {
	Filename string
	MIME     string
	// Body starts with the BOM.
	Body []byte
}

// ContentType returns the Content-Type header value of the file.
func (d *Download) ContentType() string {
	return d.MIME + "; charset=UTF-8"
}

// DataURI encodes the file as a data: URI with a percent-encoded BOM.
func (d *Download) DataURI() string {
	body := strings.TrimPrefix(string(d.Body), BOM)

	return "data:" + d.MIME + ";charset=UTF-8," + "%ef%bb%bf" + encodeURIComponent(body)
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Encode serializes every result. results is the whole store and features
// the located subset in map order.
func Encode(format Format, name string, results []*geocode.Result, features []Feature) (*Download, error) {
	if name == "" {
		name = DefaultName
	}

	var buf bytes.Buffer

	buf.WriteString(BOM)

	if err := Write(&buf, format, results, features); err != nil {
		return nil, err
	}

	return &Download{
		Filename: name + format.Extension(),
		MIME:     format.MIME(),
		Body:     buf.Bytes(),
	}, nil
}

// Write serializes results to w without the BOM.
func Write(w io.Writer, format Format, results []*geocode.Result, features []Feature) error {
	var err error

	switch format {
	case CSV:
		err = WriteCSV(w, results)
	case JSONLines:
		err = WriteJSONLines(w, results)
	case GeoJSON:
		err = WriteGeoJSON(w, features)
	case KML:
		err = WriteKML(w, features)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return eris.Wrapf(err, "writing %s export", format)
	}

	return nil
}

// Features returns the located results in order.
func Features(results []*geocode.Result) []Feature {
	features := make([]Feature, 0, len(results))

	for _, r := range results {
		if p, ok := r.Point(); ok {
			features = append(features, Feature{ID: r.ID, Point: p, Result: r})
		}
	}

	return features
}
