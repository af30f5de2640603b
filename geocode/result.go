// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gimi9/geocode-web/spatial"
	"github.com/rotisserie/eris"
)

// Field is a single key of a backend JSON object, kept with its raw value.
type Field struct {
	Key   string
	Value json.RawMessage
}

// String renders the value the way it is shown to users: strings without
// quotes, null as "null", anything else as its JSON text.
func (f Field) String() string {
	if isNull(f.Value) {
		return "null"
	}

	var s string
	if err := json.Unmarshal(f.Value, &s); err == nil {
		return s
	}

	return string(bytes.TrimSpace(f.Value))
}

// Fields is a JSON object that remembers the order of its keys.
type Fields []Field

// Get returns the raw value for key.
func (fs Fields) Get(key string) (json.RawMessage, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}

	return nil, false
}

// String returns the value of key as a string. Missing keys and nulls are "".
func (fs Fields) String(key string) string {
	v, ok := fs.Get(key)
	if !ok || isNull(v) {
		return ""
	}

	return Field{Key: key, Value: v}.String()
}

// Float returns the numeric value of key, or nil if it is missing, null or
// not a number.
func (fs Fields) Float(key string) *float64 {
	v, ok := fs.Get(key)
	if !ok || isNull(v) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return &f
	}

	// some backends send coordinates as strings
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}

	return nil
}

// UnmarshalJSON decodes an object keeping the key order.
func (fs *Fields) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*fs = nil

		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "reading object start")
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("expected object, got %v", tok)
	}

	out := Fields{}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "reading object key")
		}

		key, ok := tok.(string)
		if !ok {
			return eris.Errorf("expected string key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return eris.Wrapf(err, "reading value of %q", key)
		}

		out = append(out, Field{Key: key, Value: raw})
	}

	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "reading object end")
	}

	*fs = out

	return nil
}

// MarshalJSON encodes the object in the backend's key order.
func (fs Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')

		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)

	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Backend keys of a result.
const (
	KeyInputAddress = "inputaddr"
	KeyLat          = "lat"
	KeyLng          = "lng"
	KeyLatAxis      = "y_axis"
	KeyLngAxis      = "x_axis"
	KeyPostalZone   = "z"
	KeyAdminDong    = "hc"
	KeyColumns      = "cols"
	KeyDiagnostics  = "toksString"
)

// Result is the geocoding outcome of one input address.
type Result struct {
	// ID identifies the result inside its batch. It is assigned when the
	// batch is committed to a workspace and is never sent by the backend.
	ID             string
	InputAddress   string
	Lat            *float64
	Lng            *float64
	PostalZoneCode string
	AdminDongCode  string
	ExtraColumns   Fields
	Diagnostics    string

	// Fields holds every key the backend returned, in order.
	Fields Fields
}

// Success reports whether the address was located.
func (r *Result) Success() bool {
	return r.Lat != nil && r.Lng != nil
}

// Point returns the location of a successful result.
func (r *Result) Point() (spatial.Point, bool) {
	if !r.Success() {
		return spatial.Point{}, false
	}

	return spatial.Point{Lat: *r.Lat, Lng: *r.Lng}, true
}

// UnmarshalJSON keeps every backend field and extracts the known ones.
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return eris.Wrap(err, "decoding result")
	}

	*r = *NewResult(fields)

	return nil
}

// MarshalJSON writes the backend fields back unchanged.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}

	return r.Fields.MarshalJSON()
}

// NewResult builds a result from backend fields.
func NewResult(fields Fields) *Result {
	r := &Result{
		InputAddress:   fields.String(KeyInputAddress),
		Lat:            fields.Float(KeyLat),
		Lng:            fields.Float(KeyLng),
		PostalZoneCode: fields.String(KeyPostalZone),
		AdminDongCode:  fields.String(KeyAdminDong),
		Diagnostics:    fields.String(KeyDiagnostics),
		Fields:         fields,
	}

	if r.Lat == nil && r.Lng == nil {
		r.Lat = fields.Float(KeyLatAxis)
		r.Lng = fields.Float(KeyLngAxis)
	}

	if raw, ok := fields.Get(KeyColumns); ok && !isNull(raw) {
		var cols Fields
		if err := json.Unmarshal(raw, &cols); err == nil {
			r.ExtraColumns = cols
		}
	}

	return r
}

// Batch is the full response to one geocoding query.
type Batch struct {
	TotalTime      float64   `json:"total_time"`
	TotalCount     int       `json:"total_count"`
	SuccessCount   int       `json:"success_count"`
	HdSuccessCount int       `json:"hd_success_count"`
	FailCount      int       `json:"fail_count"`
	Results        []*Result `json:"results"`

	// Error is only set by the preview endpoint.
	Error string `json:"error,omitempty"`
}

// Located returns the number of results carrying both coordinates.
func (b *Batch) Located() int {
	n := 0

	for _, r := range b.Results {
		if r.Success() {
			n++
		}
	}

	return n
}

// Merge appends other to b, adding up the counters.
func (b *Batch) Merge(other *Batch) {
	b.TotalTime += other.TotalTime
	b.TotalCount += other.TotalCount
	b.SuccessCount += other.SuccessCount
	b.HdSuccessCount += other.HdSuccessCount
	b.FailCount += other.FailCount
	b.Results = append(b.Results, other.Results...)
}
