// Package recognizer turns captured audio frames into transcripts.
package recognizer

import "context"

// Kind classifies an engine result.
type Kind int

const (
	KindNone    Kind = iota // no new text for this frame
	KindPartial             // hypothesis for the utterance in progress
	KindFinal               // utterance completed
)

func (k Kind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	default:
		return "none"
	}
}

// Transcript is the text an engine produced for one frame.
type Transcript struct {
	Kind Kind
	Text string
}

// Engine is a streaming speech-to-text engine.
type Engine interface {
	// Feed hands one frame of PCM audio to the engine.
	Feed(ctx context.Context, frame []byte) (Transcript, error)
	// Reset discards accumulated context so the next result starts a new utterance.
	Reset(ctx context.Context) error
	Close() error
}

// FrameSource yields captured frames; audio.Queue satisfies it.
type FrameSource interface {
	Pop(ctx context.Context) ([]byte, error)
}
