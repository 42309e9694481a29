// Package ocr is the boundary to the external text-recognition engine. The
// engine is modeled as an injected capability behind a small interface so the
// extraction layers above stay unit-testable with synthetic text, independent
// of any real recognition backend.
package ocr

import (
	"context"
	"image"
)

// Result carries the raw recognition output for a single image.
type Result struct {
	// Text is the full recognized text, untrimmed line structure preserved.
	Text string
	// WordConfidences holds one engine score per recognized word in the
	// range [-1, 100], where -1 marks a word the engine could not score.
	WordConfidences []int
}

// Engine defines the contract for a text-recognition backend.
type Engine interface {
	// Name identifies the backend for logs and the service info endpoint.
	Name() string
	// Recognize runs text recognition on a prepared image.
	Recognize(ctx context.Context, img image.Image) (Result, error)
	// Healthy reports whether the engine binding is reachable,
	// independent of any specific scan.
	Healthy(ctx context.Context) error
	// Close releases engine resources.
	Close() error
}

// ScalarConfidence collapses per-word engine scores into a single value in
// [0, 1]: the mean of the strictly positive scores rescaled from the engine's
// 0-100 range. Unscored (-1) and zero-score words are ignored; when nothing
// was scored (a blank page) the confidence is 0. The extractor and assembler
// depend on this normalization.
func ScalarConfidence(confidences []int) float64 {
	var sum, n int
	for _, c := range confidences {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n) / 100
}
