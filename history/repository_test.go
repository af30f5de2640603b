// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/gimi9/geocode-web/geocode"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batchJSON = `{"total_time": 0.25, "total_count": 3, "success_count": 2, "hd_success_count": 1, "fail_count": 1, "results": [
	{"inputaddr": "서울특별시 중구 세종대로 110", "lat": 37.5665, "lng": 126.978, "z": "04524", "cols": {"상호": "시청"}},
	{"inputaddr": "김제 온천길 37", "toksString": "김제\n온천길\n37"},
	{"inputaddr": "서울특별시 중구 세종대로 111", "y_axis": 37.5666, "x_axis": 126.9781}
]}`

func setupTestDB(t *testing.T) Repository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return repo
}

func testBatch(t *testing.T) *geocode.Batch {
	t.Helper()

	var b geocode.Batch
	require.NoError(t, json.Unmarshal([]byte(batchJSON), &b))

	return &b
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.CreateSchema())

	var tables int

	err := repo.DB().QueryRow(`
		SELECT count(*) FROM information_schema.tables
		WHERE table_name IN ('batches', 'results')
	`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)
}

func TestSaveAndGetBatch(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	batch := testBatch(t)
	batch.Results[0].ID = "first"

	id, err := repo.SaveBatch(ctx, &Record{Session: "s1", Source: "query", Name: "geocode", Query: "q", Batch: batch})
	require.NoError(t, err)
	assert.Positive(t, id)

	for _, r := range batch.Results {
		assert.NotEmpty(t, r.ID, "ids are assigned on save")
	}

	got, err := repo.GetBatch(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, "q", got.Query)
	assert.Equal(t, 3, got.Batch.TotalCount)
	assert.Equal(t, 1, got.Batch.HdSuccessCount)
	require.Len(t, got.Batch.Results, 3)

	assert.Equal(t, "first", got.Batch.Results[0].ID)

	gotAddrs := []string{}
	for _, r := range got.Batch.Results {
		gotAddrs = append(gotAddrs, r.InputAddress)
	}

	wantAddrs := []string{"서울특별시 중구 세종대로 110", "김제 온천길 37", "서울특별시 중구 세종대로 111"}
	if diff := cmp.Diff(wantAddrs, gotAddrs); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	// backend fields survive the round trip in order
	assert.Equal(t, batch.Results[0].Fields, got.Batch.Results[0].Fields)
	assert.Equal(t, "시청", got.Batch.Results[0].ExtraColumns.String("상호"))
	assert.True(t, got.Batch.Results[2].Success())
	assert.False(t, got.Batch.Results[1].Success())

	_, err = repo.GetBatch(ctx, id+100)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLatestAndListBatches(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, session := range []string{"s1", "s2", "s1"} {
		_, err := repo.SaveBatch(ctx, &Record{
			Session:   session,
			Source:    "query",
			Name:      "batch" + string(rune('0'+i)),
			Batch:     testBatch(t),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	latest, err := repo.LatestBatch(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "batch2", latest.Name)
	assert.Len(t, latest.Batch.Results, 3)

	_, err = repo.LatestBatch(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)

	all, err := repo.ListBatches(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "batch2", all[0].Name)
	assert.Empty(t, all[0].Batch.Results)

	s2, err := repo.ListBatches(ctx, "s2", 10)
	require.NoError(t, err)
	require.Len(t, s2, 1)
	assert.Equal(t, "batch1", s2[0].Name)
}

func TestCellCounts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	id, err := repo.SaveBatch(ctx, &Record{Session: "s1", Source: "query", Name: "geocode", Batch: testBatch(t)})
	require.NoError(t, err)

	// both located results are a few meters apart
	counts, err := repo.CellCounts(ctx, id, 5)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)
	assert.Len(t, counts[0].Cell, 15)

	_, err = repo.CellCounts(ctx, id, 0)
	require.Error(t, err)
}
