package domain

import "time"

// SessionState models the dictation session lifecycle.
type SessionState string

const (
	SessionStateIdle        SessionState = "idle"
	SessionStateRecognizing SessionState = "recognizing"
	SessionStateDisposed    SessionState = "disposed"
)

// SourceKind identifies where a run reads audio from.
type SourceKind string

const (
	SourceDefaultDevice SourceKind = "device"
	SourceFile          SourceKind = "file"
)

// InputSource selects the audio input for the next run. It is not persisted.
type InputSource struct {
	Kind SourceKind
	Path string
}

// DefaultDevice returns the live-input selector.
func DefaultDevice() InputSource {
	return InputSource{Kind: SourceDefaultDevice}
}

// AudioFile returns a recorded-file selector.
func AudioFile(path string) InputSource {
	return InputSource{Kind: SourceFile, Path: path}
}

// GrammarKind distinguishes open dictation from constrained vocabularies.
type GrammarKind string

const (
	GrammarDictation GrammarKind = "dictation"
	GrammarPhrases   GrammarKind = "phrases"
)

// Grammar is a recognition vocabulary. Engines compare grammars by pointer.
type Grammar struct {
	Name    string
	Kind    GrammarKind
	Phrases []string
}

// NewDictationGrammar returns an open-vocabulary grammar.
func NewDictationGrammar() *Grammar {
	return &Grammar{Name: "dictation", Kind: GrammarDictation}
}

// NewPhraseGrammar returns a grammar biased towards the given phrases.
func NewPhraseGrammar(name string, phrases ...string) *Grammar {
	copied := append([]string(nil), phrases...)
	return &Grammar{Name: name, Kind: GrammarPhrases, Phrases: copied}
}

// ResultKind identifies whether a recognition event is interim or final.
type ResultKind string

const (
	ResultHypothesis ResultKind = "hypothesis"
	ResultRecognized ResultKind = "recognized"
	// ResultCompleted marks a run that ended on its own, for example at the
	// end of a recorded file. It carries no text.
	ResultCompleted ResultKind = "completed"
)

// Result is one recognition event produced by an engine. Native carries the
// backend's own payload and is relayed untouched.
type Result struct {
	Kind     ResultKind    `json:"kind"`
	Text     string        `json:"text"`
	Offset   time.Duration `json:"offset,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Native   any           `json:"-"`
}
