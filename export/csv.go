// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gimi9/geocode-web/geocode"
	"github.com/rotisserie/eris"
)

// CSVHeader is the fixed column order of the CSV export.
var CSVHeader = []string{"inputaddr", "lng", "lat", "x", "y", "b", "z", "hc", "lc", "rc", "bn"}

// LineSeparator separates records of the CSV and JSON-lines exports.
const LineSeparator = "\r\n"

// WriteCSV writes the header and one row per result. Every present value is
// written as JSON text, so strings are double quoted, null is written as ""
// and a missing column is left empty.
func WriteCSV(w io.Writer, results []*geocode.Result) error {
	var sb strings.Builder

	sb.WriteString(strings.Join(CSVHeader, ","))

	for _, r := range results {
		sb.WriteString(LineSeparator)

		for i, key := range CSVHeader {
			if i > 0 {
				sb.WriteByte(',')
			}

			cell, err := csvCell(r, key)
			if err != nil {
				return eris.Wrapf(err, "encoding %s of %q", key, r.InputAddress)
			}

			sb.WriteString(cell)
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

func csvCell(r *geocode.Result, key string) (string, error) {
	raw, ok := r.Fields.Get(key)
	if !ok {
		// coordinates read from x_axis/y_axis
		switch {
		case key == geocode.KeyLat && r.Lat != nil:
			return strconv.FormatFloat(*r.Lat, 'f', -1, 64), nil
		case key == geocode.KeyLng && r.Lng != nil:
			return strconv.FormatFloat(*r.Lng, 'f', -1, 64), nil
		default:
			return "", nil
		}
	}

	return jsonText(raw)
}

// jsonText re-encodes a raw backend value the way a browser would
// stringify it: compact, non-ASCII kept verbatim and null as "".
func jsonText(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	if v == nil {
		return `""`, nil
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// WriteJSONLines writes one JSON object per result with every backend field
// in backend order.
func WriteJSONLines(w io.Writer, results []*geocode.Result) error {
	lines := make([]string, 0, len(results))

	for _, r := range results {
		line, err := r.MarshalJSON()
		if err != nil {
			return eris.Wrapf(err, "encoding %q", r.InputAddress)
		}

		var compact bytes.Buffer
		if err := json.Compact(&compact, line); err != nil {
			return eris.Wrapf(err, "compacting %q", r.InputAddress)
		}

		lines = append(lines, compact.String())
	}

	_, err := io.WriteString(w, strings.Join(lines, LineSeparator))

	return err
}
