// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package viewer

import (
	"fmt"

	"github.com/gimi9/geocode-web/geocode"
)

// Summary is the header of a rendered batch.
type Summary struct {
	TotalTime      float64 `json:"total_time"`
	TotalCount     int     `json:"total_count"`
	SuccessCount   int     `json:"success_count"`
	HdSuccessCount int     `json:"hd_success_count"`
	FailCount      int     `json:"fail_count"`

	// Text is the elapsed time and throughput, e.g. "0.512초, (3906건/초)".
	Text         string `json:"text"`
	SuccessLabel string `json:"success_label"`
	FailureLabel string `json:"failure_label"`
}

// Summarize builds the summary of a batch from its counters. A zero time or
// count yields a zero rate or percentage.
func Summarize(b *geocode.Batch) Summary {
	var rate, percent float64

	if b.TotalTime > 0 {
		rate = float64(b.TotalCount) / b.TotalTime
	}

	if b.TotalCount > 0 {
		percent = float64(b.SuccessCount) / float64(b.TotalCount) * 100
	}

	return Summary{
		TotalTime:      b.TotalTime,
		TotalCount:     b.TotalCount,
		SuccessCount:   b.SuccessCount,
		HdSuccessCount: b.HdSuccessCount,
		FailCount:      b.FailCount,
		Text:           fmt.Sprintf("%.3f초, (%.0f건/초)", b.TotalTime, rate),
		SuccessLabel:   fmt.Sprintf("정상 %d(%.1f%%)", b.SuccessCount, percent),
		FailureLabel:   fmt.Sprintf("오류 %d", b.TotalCount-b.SuccessCount),
	}
}
