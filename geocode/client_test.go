// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		switch r.PostForm.Get("q") {
		case "boom":
			http.Error(w, "internal", http.StatusServiceUnavailable)
		case "slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(sampleBatch))
		case "garbage":
			_, _ = w.Write([]byte("<html>"))
		default:
			if r.PostForm.Get("token") != "t0k" {
				http.Error(w, "bad token", http.StatusForbidden)

				return
			}

			_, _ = w.Write([]byte(sampleBatch))
		}
	})
	mux.HandleFunc("POST /api/ckan", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		if r.PostForm.Get("res_id") == "missing" {
			_, _ = w.Write([]byte(`{"error": "resource not found"}`))

			return
		}

		_, _ = w.Write([]byte(sampleBatch))
	})
	mux.HandleFunc("GET /sample/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "address" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte("서울특별시 송파구 송파대로8길 10\n김제 온천길 37"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestClientGeocode(t *testing.T) {
	srv := newBackend(t)

	var trace bytes.Buffer

	client := NewClient(Options{BaseURL: srv.URL + "/", Token: "t0k", Trace: &trace})

	batch, err := client.Geocode(context.Background(), "  서울특별시 송파구 송파대로8길 10\n김제 온천길 37  ")
	require.NoError(t, err)
	assert.Equal(t, 2, batch.TotalCount)
	assert.Len(t, batch.Results, 2)

	assert.Contains(t, trace.String(), "> POST /api")
	assert.NotContains(t, trace.String(), "t0k")
}

func TestClientGeocodeErrors(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(Options{BaseURL: srv.URL, Token: "t0k"})
	ctx := context.Background()

	_, err := client.Geocode(ctx, "   \n ")
	require.ErrorIs(t, err, ErrEmptyQuery)

	_, err = client.Geocode(ctx, "boom")

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, ErrorTypeNetworkError, backendErr.Type)
	assert.Equal(t, http.StatusBadGateway, backendErr.HTTPStatus())

	_, err = client.Geocode(ctx, "garbage")
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, ErrorTypeUnknown, backendErr.Type)

	bad := NewClient(Options{BaseURL: srv.URL, Token: "wrong"})
	_, err = bad.Geocode(ctx, "a")
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, ErrorTypeQuotaExceeded, backendErr.Type)
}

func TestClientGeocodeTimeout(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := client.Geocode(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
}

func TestClientGeocodeCancelled(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(Options{BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Geocode(ctx, "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClientPreview(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1", PreviewURL: srv.URL})
	ctx := context.Background()

	batch, err := client.Preview(ctx, "ebfe9a2c", "식품제조업.xlsx")
	require.NoError(t, err)
	assert.Len(t, batch.Results, 2)

	batch, err = client.Preview(ctx, "missing", "x.csv")
	require.Error(t, err)
	assert.True(t, IsPreviewError(err))
	require.NotNil(t, batch)
	assert.Equal(t, "resource not found", batch.Error)

	_, err = client.Preview(ctx, "", "x.csv")

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, ErrorTypeInvalidRequest, backendErr.Type)
}

func TestClientSample(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(Options{BaseURL: srv.URL})
	ctx := context.Background()

	text, err := client.Sample(ctx, "address")
	require.NoError(t, err)
	assert.Contains(t, text, "김제 온천길 37")

	_, err = client.Sample(ctx, "nope")

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, ErrorTypeNotFound, backendErr.Type)
}

func TestClientRateLimit(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(Options{BaseURL: srv.URL, Token: "t0k", RateLimit: 1, Burst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Geocode(ctx, "a")
	require.NoError(t, err)

	// the second request cannot get a token before the deadline
	_, err = client.Geocode(ctx, "a")
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusForbidden, ErrorTypeQuotaExceeded},
		{http.StatusBadRequest, ErrorTypeInvalidRequest},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusGatewayTimeout, ErrorTypeTimeout},
		{http.StatusBadGateway, ErrorTypeNetworkError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, test := range tests {
		got := ClassifyHTTPError(test.status, "")
		assert.Equal(t, test.want, got.Type, "status %d", test.status)
		assert.NoError(t, got.Err)
	}

	withBody := ClassifyHTTPError(http.StatusTooManyRequests, " slow down ")
	assert.Equal(t, "rate limit reached: slow down", withBody.Error())
	assert.True(t, IsRateLimitError(withBody))
}

func TestAbbreviateKeepsRunes(t *testing.T) {
	body := strings.Repeat("가", 300)

	got := abbreviate(body)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("가", 256)+"…", got)

	assert.Equal(t, "짧은 오류", abbreviate("짧은 오류"))
}
