// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LinesLimit is the number of addresses the backend geocodes per query;
// extra lines are silently dropped by it.
const LinesLimit = 3000

// NormalizeQuery trims q, unifies line endings and composes Hangul jamo so
// that pasted text from different sources reaches the backend the same way.
func NormalizeQuery(q string) string {
	q = strings.ReplaceAll(q, "\r\n", "\n")
	q = strings.ReplaceAll(q, "\r", "\n")

	return strings.TrimSpace(norm.NFC.String(q))
}

// Chunk splits the lines of a normalized query into queries of at most
// size lines each. Blank lines are dropped, so no chunk is empty.
func Chunk(q string, size int) []string {
	if size <= 0 {
		size = LinesLimit
	}

	var lines []string

	for _, line := range strings.Split(q, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(lines)+size-1)/size)

	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		chunks = append(chunks, strings.Join(lines[start:end], "\n"))
	}

	return chunks
}
