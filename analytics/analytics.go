// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package analytics reports usage events to PostHog.
package analytics

import (
	"github.com/posthog/posthog-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EventGeocodeExecute is sent every time a batch is rendered.
const EventGeocodeExecute = "geocode execute"

// AppName is reported with every event.
const AppName = "geocoder"

// Tracker sends events.
type Tracker interface {
	Track(distinctID, event string, props map[string]any)
	Close() error
}

// New returns a PostHog tracker, or a no-op tracker when key is empty.
func New(key, endpoint string) (Tracker, error) {
	if key == "" {
		return Noop{}, nil
	}

	client, err := posthog.NewWithConfig(key, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return nil, eris.Wrap(err, "creating posthog client")
	}

	return &posthogTracker{client: client}, nil
}

type posthogTracker struct {
	client posthog.Client
}

func (t *posthogTracker) Track(distinctID, event string, props map[string]any) {
	err := t.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	})
	if err != nil {
		zap.L().Warn("failed to enqueue analytics event", zap.String("event", event), zap.Error(err))
	}
}

func (t *posthogTracker) Close() error {
	return t.client.Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Track(string, string, map[string]any) {}

func (Noop) Close() error { return nil }

// GeocodeExecuted reports a rendered batch with its summary text.
func GeocodeExecuted(t Tracker, distinctID, summary string) {
	t.Track(distinctID, EventGeocodeExecute, map[string]any{
		"app_name": AppName,
		"summary":  summary,
	})
}
