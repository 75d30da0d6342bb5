package ports

import (
	"context"
	"io"

	"dictation/internal/domain"
)

// RecognizeMode selects whether an engine stops after one utterance.
type RecognizeMode int

const (
	RecognizeSingle RecognizeMode = iota
	RecognizeMultiple
)

func (m RecognizeMode) String() string {
	switch m {
	case RecognizeSingle:
		return "single"
	case RecognizeMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// Slot names one native callback category of an engine.
type Slot string

const (
	SlotHypothesis Slot = "hypothesis"
	SlotRecognized Slot = "recognized"
	// SlotCompleted fires once when a run ends without RecognizeAsyncStop.
	SlotCompleted Slot = "completed"
)

// Callback receives recognition results on the engine's goroutine.
type Callback func(domain.Result)

// Binding identifies one callback registration. The zero value is never issued.
type Binding uint64

// Engine is the recognition backend a dictation session drives.
type Engine interface {
	SetInputToDefaultDevice() error
	SetInputToFile(path string) error
	LoadGrammar(g *domain.Grammar) error
	UnloadGrammar(g *domain.Grammar) error
	UnloadAllGrammars() error
	// RecognizeAsyncStart begins recognition and returns without waiting for speech.
	RecognizeAsyncStart(mode RecognizeMode) error
	// RecognizeAsyncStop requests the run to end and returns without waiting
	// for it to drain. It is a no-op when nothing is running.
	RecognizeAsyncStop() error
	Bind(slot Slot, cb Callback) (Binding, error)
	Unbind(slot Slot, binding Binding) error
	Destroy() error
}

// ActivityReporter is implemented by engines that can tell whether a run is
// still active.
type ActivityReporter interface {
	Recognizing() bool
}

// EngineFactory creates one engine handle per session.
type EngineFactory interface {
	NewEngine() (Engine, error)
}

// AudioConfig describes how audio should be captured. InputFile, when set,
// replaces the live device.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	InputFile   string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	Keywords       []string
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.Result
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}
