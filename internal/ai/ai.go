// Package ai wraps the external text-enhancement and image-understanding
// services. Both are single-attempt, bounded-wait calls: callers fall
// back locally on any error instead of retrying.
package ai

import "context"

// Enhancement is the result of rewriting raw ad text into marketing copy.
type Enhancement struct {
	EnhancedText     string
	ImprovementScore float64
}

// Enhancer rewrites advertiser text. On error the caller must keep the
// original text; the conversation never stalls on a failed enhancement.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (Enhancement, error)
}

// ImageAnalyzer turns a product photo into an Arabic search description.
type ImageAnalyzer interface {
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)
}
