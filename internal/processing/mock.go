package processing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/voicelane/backend/internal/catalog"
)

// Input limits. Payloads beyond these fail permanently.
const (
	MaxVoiceDuration = 300              // seconds
	MaxVoiceFileSize = 20 * 1024 * 1024 // bytes
)

// responder renders the recognized text for one catalog pair. The
// registry below is keyed by the full closed catalog, so adding a
// subcategory without a responder fails loudly at init.
type responder func(text string) string

var responders = map[catalog.Subcategory]responder{
	catalog.SubDialogs: func(text string) string {
		return fmt.Sprintf("Artistic dialog rendering:\n\n— %s\n— Wonderful, let's talk it through.", text)
	},
	catalog.SubNature: func(text string) string {
		return fmt.Sprintf("Nature sketch:\n\nYour words drift like wind over the fields: %q", text)
	},
	catalog.SubMusic: func(text string) string {
		return fmt.Sprintf("Musical reading:\n\nSet to rhythm, your message sounds like this: %q", text)
	},
	catalog.SubPoetry: func(text string) string {
		return fmt.Sprintf("Poetic rendering:\n\nFrom your words, these lines were born:\n%q", text)
	},
	catalog.SubAgreements: func(text string) string {
		return fmt.Sprintf("Agreement summary:\n\nKey clauses extracted from your message: %q", text)
	},
	catalog.SubLaws: func(text string) string {
		return fmt.Sprintf("Legal digest:\n\nRelevant points identified: %q", text)
	},
	catalog.SubPresentations: func(text string) string {
		return fmt.Sprintf("Presentation outline:\n\n1. %s\n2. Discussion\n3. Next steps", text)
	},
	catalog.SubNegotiations: func(text string) string {
		return fmt.Sprintf("Negotiation brief:\n\nPositions heard: %q", text)
	},
	catalog.SubRoutes: func(text string) string {
		return fmt.Sprintf("Route extraction:\n\nWaypoints mentioned: %q", text)
	},
	catalog.SubPhoneNumbers: func(text string) string {
		return fmt.Sprintf("Phone numbers found in: %q", text)
	},
	catalog.SubStatistics: func(text string) string {
		return fmt.Sprintf("Statistical summary of: %q", text)
	},
	catalog.SubCalculations: func(text string) string {
		return fmt.Sprintf("Calculations parsed from: %q", text)
	},
}

func init() {
	for _, c := range catalog.Categories() {
		for _, s := range catalog.Subcategories(c) {
			if _, ok := responders[s]; !ok {
				panic(fmt.Sprintf("processing: no responder for subcategory %q", s))
			}
		}
	}
}

var mockTranscripts = []string{
	"Hi, how are you? I wanted to discuss the new project.",
	"We need to set up a meeting sometime next week.",
	"Tell me about the weather and plans for the weekend.",
	"Help me sort out the documents and the contract.",
	"Phone number 8-800-123-45-67, address: 15 Lenin Street.",
}

// MockProcessor simulates speech recognition and category-specific
// rendering. Latency is drawn from [MinLatency, MaxLatency] to mimic the
// real processing call; context expiry aborts the run.
type MockProcessor struct {
	MinLatency time.Duration
	MaxLatency time.Duration

	// One processor instance serves every queue worker; rand.Rand is not
	// safe for concurrent use.
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMockProcessor(minLatency, maxLatency time.Duration) *MockProcessor {
	return &MockProcessor{
		MinLatency: minLatency,
		MaxLatency: maxLatency,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var _ Processor = (*MockProcessor)(nil)

func (p *MockProcessor) Process(ctx context.Context, category catalog.Category, subcategory catalog.Subcategory, voice VoiceRef) (*Result, error) {
	if voice.Duration <= 0 || voice.Duration > MaxVoiceDuration {
		return nil, fmt.Errorf("voice duration %ds out of range: %w", voice.Duration, ErrPermanent)
	}
	if voice.FileSize > MaxVoiceFileSize {
		return nil, fmt.Errorf("voice file size %d too large: %w", voice.FileSize, ErrPermanent)
	}
	render, ok := responders[subcategory]
	if !ok || !catalog.Valid(category, subcategory) {
		return nil, fmt.Errorf("unknown catalog pair %s/%s: %w", category, subcategory, ErrPermanent)
	}

	if delay := p.latency(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text := p.pickTranscript()
	return &Result{
		ProcessedText: text,
		ResponseText:  render(text),
	}, nil
}

func (p *MockProcessor) pickTranscript() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return mockTranscripts[p.rnd.Intn(len(mockTranscripts))]
}

func (p *MockProcessor) latency() time.Duration {
	if p.MaxLatency <= p.MinLatency {
		return p.MinLatency
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MinLatency + time.Duration(p.rnd.Int63n(int64(p.MaxLatency-p.MinLatency)))
}
