// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package analytics

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutKeyIsNoop(t *testing.T) {
	tracker, err := New("", "")
	require.NoError(t, err)
	assert.IsType(t, Noop{}, tracker)

	GeocodeExecuted(tracker, "anyone", "0.500초, (4건/초)")
	assert.NoError(t, tracker.Close())
}

func TestGeocodeExecutedReachesPostHog(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reader io.Reader = r.Body

		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}
			defer gz.Close()

			reader = gz
		}

		body, _ := io.ReadAll(reader)

		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()

		_, _ = w.Write([]byte(`{"status": 1}`))
	}))
	defer srv.Close()

	tracker, err := New("phc_test", srv.URL)
	require.NoError(t, err)

	GeocodeExecuted(tracker, "session-1", "0.500초, (4건/초)")
	require.NoError(t, tracker.Close())

	mu.Lock()
	defer mu.Unlock()

	all := strings.Join(bodies, "\n")
	assert.Contains(t, all, EventGeocodeExecute)
	assert.Contains(t, all, "session-1")
	assert.Contains(t, all, AppName)
}
