// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/gimi9/geocode-web/geocode"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `{
	"total_time": 0.5, "total_count": 3, "success_count": 2,
	"results": [
		{"inputaddr": "서울특별시 송파구 송파대로8길 10", "lng": 127.1, "lat": 37.5, "z": "05838", "hc": "1171053000", "bn": null},
		{"inputaddr": "김제 온천길 37", "toksString": "김제\n온천길"},
		{"inputaddr": "부산 \"해운대\"", "x_axis": 129.1, "y_axis": 35.1, "b": 12}
	]
}`

func results(t *testing.T) []*geocode.Result {
	t.Helper()

	var batch geocode.Batch
	require.NoError(t, json.Unmarshal([]byte(batchJSON), &batch))

	for i, r := range batch.Results {
		r.ID = string(rune('a' + i))
	}

	return batch.Results
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"csv":     CSV,
		".CSV":    CSV,
		"jl":      JSONLines,
		"json":    JSONLines,
		"geojson": GeoJSON,
		"kml":     KML,
	}

	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("shp")
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteCSV(t *testing.T) {
	rs := results(t)

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, rs))

	lines := strings.Split(sb.String(), LineSeparator)
	require.Len(t, lines, len(rs)+1)

	want := []string{
		"inputaddr,lng,lat,x,y,b,z,hc,lc,rc,bn",
		`"서울특별시 송파구 송파대로8길 10",127.1,37.5,,,,"05838","1171053000",,,""`,
		`"김제 온천길 37",,,,,,,,,,`,
		`"부산 \"해운대\"",129.1,35.1,,,12,,,,,`,
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSONLines(t *testing.T) {
	rs := results(t)

	var sb strings.Builder
	require.NoError(t, WriteJSONLines(&sb, rs))

	lines := strings.Split(sb.String(), LineSeparator)
	require.Len(t, lines, len(rs))
	assert.True(t, strings.HasPrefix(lines[0], `{"inputaddr":"서울특별시 송파구 송파대로8길 10","lng":127.1,"lat":37.5,`))
	assert.Equal(t, `{"inputaddr":"김제 온천길 37","toksString":"김제\n온천길"}`, lines[1])
}

func TestWriteGeoJSON(t *testing.T) {
	rs := results(t)

	var sb strings.Builder
	require.NoError(t, WriteGeoJSON(&sb, Features(rs)))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(sb.String()), &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	// properties follow the result ID, not the position in the store
	assert.Equal(t, "c", fc.Features[1].ID)
	assert.Equal(t, `부산 "해운대"`, fc.Features[1].Properties["inputaddr"])
	assert.Equal(t, []float64{129.1, 35.1}, fc.Features[1].Geometry.Coordinates)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Nil(t, fc.Features[0].Properties["bn"])
}

func TestWriteKML(t *testing.T) {
	rs := results(t)

	var sb strings.Builder
	require.NoError(t, WriteKML(&sb, Features(rs)))

	got := sb.String()
	assert.Equal(t, 2, strings.Count(got, "<Placemark>"))
	assert.Contains(t, got, "<name>서울특별시 송파구 송파대로8길 10</name>")
	assert.Contains(t, got, `<Data name="hc">`)
	assert.Contains(t, got, "127.1,37.5")
	assert.NotContains(t, got, "김제")
}

func TestEncode(t *testing.T) {
	rs := results(t)

	for _, format := range Formats {
		d, err := Encode(format, "", rs, Features(rs))
		require.NoError(t, err, format)
		assert.True(t, strings.HasPrefix(string(d.Body), BOM), format)
		assert.Equal(t, "geocode"+format.Extension(), d.Filename)
	}

	d, err := Encode(CSV, "address", rs, Features(rs))
	require.NoError(t, err)
	assert.Equal(t, "address.geocode.csv", d.Filename)
	assert.Equal(t, "text/csv; charset=UTF-8", d.ContentType())

	_, err = Encode(Format("shp"), "", rs, nil)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDataURI(t *testing.T) {
	d := &Download{MIME: "text/csv", Body: []byte(BOM + "a b,\"c\"\r\n한")}

	uri := d.DataURI()
	require.True(t, strings.HasPrefix(uri, "data:text/csv;charset=UTF-8,%ef%bb%bf"))

	payload := strings.TrimPrefix(uri, "data:text/csv;charset=UTF-8,%ef%bb%bf")
	assert.NotContains(t, payload, "+")

	decoded, err := url.PathUnescape(payload)
	require.NoError(t, err)
	assert.Equal(t, "a b,\"c\"\r\n한", decoded)
}
