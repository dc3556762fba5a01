// Package vision extracts meter readings from photos through a hosted
// vision model.
package vision

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("vision: empty model response")
	// ErrUnreadableMeasure is returned when the model text does not carry an
	// integer reading.
	ErrUnreadableMeasure = errors.New("vision: unreadable measure")
)

// Image is a decoded photo to be read
type Image struct {
	Data        []byte
	DisplayName string
}

// FileRef identifies an image held by the vision service
type FileRef struct {
	Name     string
	URI      string
	MIMEType string
}

// Result is the outcome of one extraction: where the image lives and the
// raw text the model answered with.
type Result struct {
	File FileRef
	Text string
}

// Extractor uploads an image and asks the model to read it. A single attempt
// is made; callers bound it with ctx.
type Extractor interface {
	Extract(ctx context.Context, img Image, prompt string) (Result, error)
}
