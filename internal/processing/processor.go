// Package processing defines the external processing-function contract:
// the only effectful computation in the fulfillment path.
package processing

import (
	"context"
	"errors"

	"github.com/voicelane/backend/internal/catalog"
)

// ErrPermanent marks failures that retrying cannot fix (invalid input,
// unsupported payload). The worker routes these straight to FAILED
// instead of letting the queue redeliver.
var ErrPermanent = errors.New("permanent processing failure")

// VoiceRef is the opaque handle to the input payload.
type VoiceRef struct {
	FileID       string
	FileUniqueID string
	Duration     int // seconds
	FileSize     int64
}

// Result is what a successful processing run produces.
type Result struct {
	ProcessedText string // speech-to-text output
	ResponseText  string // category-specific rendering sent to the user
}

// Processor turns a voice payload into text under a catalog pair.
// Implementations may block for tens of seconds; callers bound the call
// with a context deadline and treat expiry as a transient failure.
type Processor interface {
	Process(ctx context.Context, category catalog.Category, subcategory catalog.Subcategory, voice VoiceRef) (*Result, error)
}
