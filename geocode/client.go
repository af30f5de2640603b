// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode talks to the remote geocoding backend and models its
// result batches.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gimi9/geocode-web/utils/httputils"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Geocoder is the subset of the backend API the map UI needs.
type Geocoder interface {
	// Geocode geocodes a newline-delimited block of addresses.
	Geocode(ctx context.Context, q string) (*Batch, error)
	// Preview geocodes a published data portal resource.
	Preview(ctx context.Context, resID, file string) (*Batch, error)
	// Sample returns one of the sample inputs served by the backend.
	Sample(ctx context.Context, name string) (string, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL serves /api and /sample.
	BaseURL string
	// PreviewURL serves /api/ckan. Defaults to BaseURL.
	PreviewURL string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	// RateLimit is the number of requests per second, 0 disables it.
	RateLimit float64
	Burst     int
	// Trace receives a dump of every request and response when set.
	Trace io.Writer
}

// Client is the HTTP implementation of Geocoder.
type Client struct {
	baseURL    string
	previewURL string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	if opts.PreviewURL == "" {
		opts.PreviewURL = opts.BaseURL
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "geocode-web"
	}

	var transport http.RoundTripper = &httputils.AppendRequestHeadersRoundTripper{
		Transport: http.DefaultTransport,
		Headers:   map[string]string{"User-Agent": opts.UserAgent},
	}
	transport = &httputils.LoggingRoundTripper{
		Transport: transport,
		Writer:    opts.Trace,
		DumpBody:  true,
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.Burst, 1))
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		previewURL: strings.TrimRight(opts.PreviewURL, "/"),
		token:      opts.Token,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: limiter,
	}
}

// Geocode implements Geocoder.
func (c *Client) Geocode(ctx context.Context, q string) (*Batch, error) {
	q = NormalizeQuery(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	form := url.Values{}
	form.Set("q", q)

	batch, err := c.postBatch(ctx, c.baseURL+"/api", form)
	if err != nil {
		return nil, eris.Wrap(err, "geocoding query")
	}

	zap.L().Debug("geocoded query",
		zap.Int("total", batch.TotalCount),
		zap.Int("success", batch.SuccessCount),
		zap.Float64("seconds", batch.TotalTime))

	return batch, nil
}

// Preview implements Geocoder. A batch carrying an error field is returned
// together with a preview BackendError.
func (c *Client) Preview(ctx context.Context, resID, file string) (*Batch, error) {
	if resID == "" {
		return nil, &BackendError{Type: ErrorTypeInvalidRequest, Message: "res_id is required"}
	}

	form := url.Values{}
	form.Set("res_id", resID)
	form.Set("file", file)

	batch, err := c.postBatch(ctx, c.previewURL+"/api/ckan", form)
	if err != nil {
		return nil, eris.Wrapf(err, "previewing resource %s", resID)
	}

	if batch.Error != "" {
		return batch, &BackendError{Type: ErrorTypePreview, Message: "preview rejected", Err: errors.New(batch.Error)}
	}

	return batch, nil
}

// Sample implements Geocoder.
func (c *Client) Sample(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", &BackendError{Type: ErrorTypeInvalidRequest, Message: "sample name is required"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sample/"+url.PathEscape(name), nil)
	if err != nil {
		return "", eris.Wrap(err, "building sample request")
	}

	body, err := c.do(req)
	if err != nil {
		return "", eris.Wrapf(err, "fetching sample %s", name)
	}

	return string(body), nil
}

func (c *Client) postBatch(ctx context.Context, endpoint string, form url.Values) (*Batch, error) {
	if c.token != "" {
		form.Set("token", c.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "building request")
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var batch Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, &BackendError{Type: ErrorTypeUnknown, Message: "decoding response", Err: err}
	}

	return &batch, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}

		return nil, &BackendError{Type: ErrorTypeRateLimit, Message: "waiting for rate limiter", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, cancelled(ctxErr)
		}

		if isTimeout(err) {
			return nil, &BackendError{Type: ErrorTypeTimeout, Message: "request timed out", Err: err}
		}

		return nil, &BackendError{Type: ErrorTypeNetworkError, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Type: ErrorTypeNetworkError, Message: "reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, abbreviate(string(body)))
	}

	return body, nil
}

func cancelled(ctxErr error) *BackendError {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &BackendError{Type: ErrorTypeTimeout, Message: "request timed out", Err: ctxErr}
	}

	return &BackendError{Type: ErrorTypeNetworkError, Message: "request cancelled", Err: ctxErr}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }

	return errors.As(err, &t) && t.Timeout()
}

func abbreviate(s string) string {
	const maxChars = 256

	runes := []rune(s)
	if len(runes) > maxChars {
		return string(runes[:maxChars]) + "…"
	}

	return s
}
