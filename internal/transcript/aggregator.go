// Package transcript folds relayed recognition results into running text.
package transcript

import (
	"strings"
	"sync"

	"dictation/internal/domain"
)

// Aggregator collects final results and remembers the latest hypothesis so a
// transcript is available even when the engine never committed a final.
// It satisfies the session Handler interface and can be subscribed to both
// channels.
type Aggregator struct {
	mu             sync.Mutex
	finals         []string
	lastHypothesis string
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Handle records one recognition result.
func (a *Aggregator) Handle(result domain.Result) {
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if result.Kind == domain.ResultRecognized {
		a.finals = append(a.finals, text)
		a.lastHypothesis = ""
		return
	}
	a.lastHypothesis = text
}

// Finals returns the committed utterances in arrival order.
func (a *Aggregator) Finals() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.finals...)
}

// Text returns the transcript: every final, followed by a trailing
// hypothesis that was never finalized.
func (a *Aggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if a.lastHypothesis == "" {
		return joined
	}
	if joined == "" {
		return a.lastHypothesis
	}
	return joined + " " + a.lastHypothesis
}
