package phrase

import (
	"context"
	"log/slog"
	"strings"
)

// Kind is what a transcript asks the supervisor to do.
type Kind int

const (
	None Kind = iota
	StartRequested
	StopRequested
)

func (k Kind) String() string {
	switch k {
	case StartRequested:
		return "start"
	case StopRequested:
		return "stop"
	default:
		return "none"
	}
}

// Source identifies where an intent came from.
type Source string

const (
	SourceVoice      Source = "voice"
	SourceCLI        Source = "cli"
	SourceReconciler Source = "reconciler"
)

// Intent is a start or stop request.
type Intent struct {
	Kind   Kind
	Source Source
	Phrase string // matched phrase, empty for non-voice sources
}

// Resetter discards accumulated recognition context.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Dispatcher matches transcripts against a Set. Stop phrases win over start
// phrases, and a match resets the recognizer so one utterance triggers once.
type Dispatcher struct {
	phrases *Set
	reset   Resetter
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. reset may be nil.
func NewDispatcher(phrases *Set, reset Resetter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{phrases: phrases, reset: reset, logger: logger}
}

// Dispatch returns the intent for a transcript, or an intent of kind None.
func (d *Dispatcher) Dispatch(ctx context.Context, transcript string) Intent {
	text := Normalize(transcript)
	if text == "" {
		return Intent{Kind: None}
	}

	intent := Intent{Kind: None, Source: SourceVoice}
	if p, ok := containsAny(text, d.phrases.stop); ok {
		intent.Kind, intent.Phrase = StopRequested, p
	} else if p, ok := containsAny(text, d.phrases.start); ok {
		intent.Kind, intent.Phrase = StartRequested, p
	} else {
		return Intent{Kind: None}
	}

	d.logger.Info("trigger phrase matched", "intent", intent.Kind.String(), "phrase", intent.Phrase, "transcript", text)
	if d.reset != nil {
		if err := d.reset.Reset(ctx); err != nil {
			d.logger.Warn("recognizer reset failed", "error", err)
		}
	}
	return intent
}

func containsAny(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}
