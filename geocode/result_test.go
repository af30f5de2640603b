// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBatch = `{
	"total_time": 0.5,
	"total_count": 2,
	"success_count": 1,
	"hd_success_count": 1,
	"fail_count": 1,
	"results": [
		{"inputaddr": "서울특별시 송파구 송파대로8길 10", "lng": 127.0, "lat": 37.5, "z": "05838", "hc": "1171053000",
		 "cols": {"name": "송파", "floor": 3}},
		{"inputaddr": "김제 온천길 37", "success": false, "errmsg": "NOTFOUND", "toksString": "김제\n온천길\n37", "z": null}
	]
}`

func TestBatchUnmarshal(t *testing.T) {
	var batch Batch
	require.NoError(t, json.Unmarshal([]byte(sampleBatch), &batch))

	assert.InDelta(t, 0.5, batch.TotalTime, 1e-9)
	assert.Equal(t, 2, batch.TotalCount)
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.HdSuccessCount)
	assert.Equal(t, 1, batch.FailCount)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, 1, batch.Located())

	ok := batch.Results[0]
	assert.True(t, ok.Success())
	assert.Equal(t, "서울특별시 송파구 송파대로8길 10", ok.InputAddress)
	assert.Equal(t, "05838", ok.PostalZoneCode)
	assert.Equal(t, "1171053000", ok.AdminDongCode)

	p, located := ok.Point()
	require.True(t, located)
	assert.InDelta(t, 37.5, p.Lat, 1e-9)
	assert.InDelta(t, 127.0, p.Lng, 1e-9)

	require.Len(t, ok.ExtraColumns, 2)
	assert.Equal(t, "name", ok.ExtraColumns[0].Key)
	assert.Equal(t, "송파", ok.ExtraColumns[0].String())
	assert.Equal(t, "floor", ok.ExtraColumns[1].Key)
	assert.Equal(t, "3", ok.ExtraColumns[1].String())

	failed := batch.Results[1]
	assert.False(t, failed.Success())
	assert.Equal(t, "김제\n온천길\n37", failed.Diagnostics)
	assert.Empty(t, failed.PostalZoneCode)

	keys := make([]string, 0, len(failed.Fields))
	for _, f := range failed.Fields {
		keys = append(keys, f.Key)
	}

	if diff := cmp.Diff([]string{"inputaddr", "success", "errmsg", "toksString", "z"}, keys); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestResultAxisFallback(t *testing.T) {
	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"inputaddr":"a","x_axis":126.9,"y_axis":"37.56"}`), &r))

	require.True(t, r.Success())
	assert.InDelta(t, 37.56, *r.Lat, 1e-9)
	assert.InDelta(t, 126.9, *r.Lng, 1e-9)
}

func TestResultOnlyOneCoordinateIsFailure(t *testing.T) {
	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"inputaddr":"a","lat":37.5}`), &r))

	assert.False(t, r.Success())

	_, ok := r.Point()
	assert.False(t, ok)
}

func TestResultMarshalKeepsBackendFields(t *testing.T) {
	in := `{"inputaddr":"a","lng":127,"lat":37.5,"cols":{"b":1,"a":2},"extra":[1,2]}`

	var r Result
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	r.ID = "ignored"

	out, err := json.Marshal(&r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, in, string(out))
}

func TestFieldsRejectsNonObject(t *testing.T) {
	var fs Fields
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &fs))
	require.NoError(t, json.Unmarshal([]byte(`null`), &fs))
	assert.Nil(t, fs)
}

func TestFieldString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"abc"`, "abc"},
		{`12.5`, "12.5"},
		{`null`, "null"},
		{`true`, "true"},
		{`["a","b"]`, `["a","b"]`},
	}

	for _, test := range tests {
		got := Field{Key: "k", Value: json.RawMessage(test.raw)}.String()
		assert.Equal(t, test.want, got, test.raw)
	}
}

func TestBatchMerge(t *testing.T) {
	a := &Batch{TotalTime: 1, TotalCount: 2, SuccessCount: 1, FailCount: 1, Results: []*Result{{InputAddress: "a"}, {InputAddress: "b"}}}
	b := &Batch{TotalTime: 0.5, TotalCount: 1, SuccessCount: 1, HdSuccessCount: 1, Results: []*Result{{InputAddress: "c"}}}

	a.Merge(b)

	assert.InDelta(t, 1.5, a.TotalTime, 1e-9)
	assert.Equal(t, 3, a.TotalCount)
	assert.Equal(t, 2, a.SuccessCount)
	assert.Equal(t, 1, a.HdSuccessCount)
	assert.Equal(t, 1, a.FailCount)
	require.Len(t, a.Results, 3)
	assert.Equal(t, "c", a.Results[2].InputAddress)
}

func TestNormalizeQueryAndChunk(t *testing.T) {
	// decomposed jamo for 김
	decomposed := "김제 온천길 37"

	q := NormalizeQuery("  " + decomposed + "\r\n서울\r\n\n부산  \n")
	assert.Equal(t, "김제 온천길 37\n서울\n\n부산", q)

	chunks := Chunk(q, 2)
	if diff := cmp.Diff([]string{"김제 온천길 37\n서울", "부산"}, chunks); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}

	// blank lines never produce an empty chunk
	if diff := cmp.Diff([]string{"A", "B"}, Chunk("A\n\nB", 1)); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}

	assert.Nil(t, Chunk("", 3))
	assert.Nil(t, Chunk("\n  \n", 3))
	assert.Len(t, Chunk("a\nb", 0), 1)
}

func TestFieldsStringTreatsNullAsEmpty(t *testing.T) {
	var fields Fields
	require.NoError(t, json.Unmarshal([]byte(`{"hc":null,"z":"05838"}`), &fields))

	assert.Empty(t, fields.String("hc"))
	assert.Equal(t, "null", fields[0].String())
	assert.Equal(t, "05838", fields.String("z"))
}
