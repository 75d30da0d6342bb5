// Package azure drives the Azure Speech SDK recognizer as a dictation engine.
package azure

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/sirupsen/logrus"

	"dictation/internal/domain"
	"dictation/internal/ports"
	"dictation/internal/slots"
)

var errEngineDestroyed = errors.New("azure engine destroyed")

// Config holds the subscription used for every engine the factory creates.
type Config struct {
	SubscriptionKey string
	Region          string
	Language        string
	StartTimeout    time.Duration
	Logger          *logrus.Entry
}

// NativeResult is the Azure payload relayed with each result.
type NativeResult struct {
	ResultID string
	Reason   common.ResultReason
	Text     string
	JSON     string
}

type Factory struct {
	cfg Config
}

func NewFactory(cfg Config) *Factory {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Factory{cfg: cfg}
}

func (f *Factory) NewEngine() (ports.Engine, error) {
	if f.cfg.SubscriptionKey == "" || f.cfg.Region == "" {
		return nil, fmt.Errorf("%w: azure requires a subscription key and region", domain.ErrEngineUnavailable)
	}

	speechConfig, err := speech.NewSpeechConfigFromSubscription(f.cfg.SubscriptionKey, f.cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}
	if f.cfg.Language != "" {
		if err := speechConfig.SetSpeechRecognitionLanguage(f.cfg.Language); err != nil {
			speechConfig.Close()
			return nil, fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
		}
	}

	return &Engine{
		speechConfig: speechConfig,
		cfg:          f.cfg,
		log:          f.cfg.Logger.WithFields(logrus.Fields{"engine": "azure", "region": f.cfg.Region}),
		slots:        slots.NewTable(),
		input:        domain.DefaultDevice(),
	}, nil
}

// Engine wraps one SpeechRecognizer per run. Phrase grammars become the
// recognizer's phrase list and can change while a run is active.
type Engine struct {
	speechConfig *speech.SpeechConfig
	cfg          Config
	log          *logrus.Entry
	slots        *slots.Table

	mu        sync.Mutex
	input     domain.InputSource
	grammars  []*domain.Grammar
	run       *recognitionRun
	destroyed bool
}

type recognitionRun struct {
	mode        ports.RecognizeMode
	audioConfig *audio.AudioConfig
	recognizer  *speech.SpeechRecognizer
	phrases     *speech.PhraseListGrammar

	finished   chan struct{}
	finishOnce sync.Once
	err        error

	// delivering counts SDK callbacks in progress for this run.
	delivering atomic.Int32
}

func (e *Engine) SetInputToDefaultDevice() error {
	return e.setInput(domain.DefaultDevice())
}

func (e *Engine) SetInputToFile(path string) error {
	return e.setInput(domain.AudioFile(path))
}

func (e *Engine) setInput(source domain.InputSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errEngineDestroyed
	}
	e.input = source
	return nil
}

func (e *Engine) LoadGrammar(g *domain.Grammar) error {
	if g == nil {
		return errors.New("grammar is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errEngineDestroyed
	}
	for _, loaded := range e.grammars {
		if loaded == g {
			return fmt.Errorf("grammar %q is already loaded", g.Name)
		}
	}
	e.grammars = append(e.grammars, g)
	return e.syncPhrasesLocked()
}

func (e *Engine) UnloadGrammar(g *domain.Grammar) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errEngineDestroyed
	}
	for i, loaded := range e.grammars {
		if loaded == g {
			e.grammars = append(e.grammars[:i], e.grammars[i+1:]...)
			return e.syncPhrasesLocked()
		}
	}
	return errors.New("grammar is not loaded")
}

func (e *Engine) UnloadAllGrammars() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return errEngineDestroyed
	}
	e.grammars = nil
	return e.syncPhrasesLocked()
}

func (e *Engine) phrasesLocked() []string {
	var out []string
	for _, g := range e.grammars {
		if g.Kind == domain.GrammarDictation {
			continue
		}
		out = append(out, g.Phrases...)
	}
	return out
}

// syncPhrasesLocked rewrites the phrase list of the active run, if any.
func (e *Engine) syncPhrasesLocked() error {
	if e.run == nil {
		return nil
	}
	phrases := e.phrasesLocked()
	if e.run.phrases == nil {
		if len(phrases) == 0 {
			return nil
		}
		list, err := speech.NewPhraseListGrammarFromRecognizer(e.run.recognizer)
		if err != nil {
			return err
		}
		e.run.phrases = list
	}
	if err := e.run.phrases.Clear(); err != nil {
		return err
	}
	for _, phrase := range phrases {
		if err := e.run.phrases.AddPhrase(phrase); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) RecognizeAsyncStart(mode ports.RecognizeMode) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return errEngineDestroyed
	}
	previous := e.run
	e.run = nil
	input := e.input
	e.mu.Unlock()

	if previous != nil {
		e.stopRun(previous)
	}

	audioConfig, err := newAudioConfig(input)
	if err != nil {
		return fmt.Errorf("could not create audio config: %w", err)
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(e.speechConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		return err
	}

	run := &recognitionRun{
		mode:        mode,
		audioConfig: audioConfig,
		recognizer:  recognizer,
		finished:    make(chan struct{}),
	}
	e.attachHandlers(run)

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		e.release(run)
		return errEngineDestroyed
	}
	e.run = run
	err = e.syncPhrasesLocked()
	e.mu.Unlock()
	if err != nil {
		e.abandon(run)
		return fmt.Errorf("could not apply phrase list: %w", err)
	}

	log := e.log.WithFields(logrus.Fields{"mode": mode.String(), "source": input.Kind})
	if mode == ports.RecognizeSingle {
		outcomes := recognizer.RecognizeOnceAsync()
		go func() {
			outcome := <-outcomes
			defer outcome.Close()
			if outcome.Error != nil {
				log.WithError(outcome.Error).Warn("azure single recognition failed")
			}
		}()
		log.Info("azure recognition started")
		return nil
	}

	select {
	case err := <-recognizer.StartContinuousRecognitionAsync():
		if err != nil {
			e.abandon(run)
			return fmt.Errorf("could not start continuous recognition: %w", err)
		}
	case <-time.After(e.cfg.StartTimeout):
		e.abandon(run)
		return fmt.Errorf("continuous recognition did not start within %s", e.cfg.StartTimeout)
	}
	log.Info("azure recognition started")
	return nil
}

func newAudioConfig(input domain.InputSource) (*audio.AudioConfig, error) {
	if input.Kind == domain.SourceFile {
		return audio.NewAudioConfigFromWavFileInput(input.Path)
	}
	return audio.NewAudioConfigFromDefaultMicrophoneInput()
}

func (e *Engine) attachHandlers(run *recognitionRun) {
	recognizer := run.recognizer
	recognizer.Recognizing(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		run.delivering.Add(1)
		defer run.delivering.Add(-1)
		e.slots.Emit(ports.SlotHypothesis, toResult(domain.ResultHypothesis, event.Result))
	})
	recognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		if event.Result.Reason != common.RecognizedSpeech {
			return
		}
		run.delivering.Add(1)
		defer run.delivering.Add(-1)
		e.slots.Emit(ports.SlotRecognized, toResult(domain.ResultRecognized, event.Result))
	})
	recognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		e.log.WithField("details", event.ErrorDetails).Warn("azure recognition canceled")
	})
	recognizer.SessionStopped(func(event speech.SessionEventArgs) {
		defer event.Close()
		// Releasing the recognizer from its own callback would stall the SDK.
		go e.completeRun(run)
	})
}

func toResult(kind domain.ResultKind, result speech.SpeechRecognitionResult) domain.Result {
	return domain.Result{
		Kind:     kind,
		Text:     result.Text,
		Offset:   result.Offset,
		Duration: result.Duration,
		Native: NativeResult{
			ResultID: result.ResultID,
			Reason:   result.Reason,
			Text:     result.Text,
			JSON:     result.Properties.GetProperty(common.SpeechServiceResponseJSONResult, ""),
		},
	}
}

// completeRun reports a run whose recognition session ended on its own.
// Runs detached by stop or destroy are not reported.
func (e *Engine) completeRun(run *recognitionRun) {
	e.mu.Lock()
	current := e.run == run
	if current {
		e.run = nil
	}
	e.mu.Unlock()
	if !current {
		return
	}

	if err := e.finishRun(run); err != nil {
		e.log.WithError(err).Warn("azure recognition ended with an error")
	}
	e.log.Info("azure recognition completed")
	e.slots.Emit(ports.SlotCompleted, domain.Result{Kind: domain.ResultCompleted})
}

// Recognizing reports whether a run is active.
func (e *Engine) Recognizing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

// RecognizeAsyncStop asks the recognizer to stop and returns without waiting
// for the SDK to confirm.
func (e *Engine) RecognizeAsyncStop() error {
	e.mu.Lock()
	run := e.run
	e.run = nil
	e.mu.Unlock()

	if run == nil {
		return nil
	}
	e.stopRun(run)
	return nil
}

func (e *Engine) stopRun(run *recognitionRun) {
	go func() {
		if err := e.finishRun(run); err != nil {
			e.log.WithError(err).Warn("azure recognition did not stop cleanly")
		}
	}()
}

// finishRun stops continuous recognition and releases the native handles.
// Only the first call does work.
func (e *Engine) finishRun(run *recognitionRun) error {
	run.finishOnce.Do(func() {
		defer close(run.finished)

		if run.mode == ports.RecognizeMultiple {
			select {
			case run.err = <-run.recognizer.StopContinuousRecognitionAsync():
			case <-time.After(e.cfg.StartTimeout):
				run.err = fmt.Errorf("continuous recognition did not stop within %s", e.cfg.StartTimeout)
			}
		}
		e.release(run)
		e.log.Info("azure recognition stopped")
	})
	<-run.finished
	return run.err
}

// abandon drops a run that failed to start.
func (e *Engine) abandon(run *recognitionRun) {
	e.mu.Lock()
	if e.run == run {
		e.run = nil
	}
	e.mu.Unlock()
	run.finishOnce.Do(func() {
		defer close(run.finished)
		e.release(run)
	})
}

func (e *Engine) release(run *recognitionRun) {
	run.recognizer.Close()
	run.audioConfig.Close()
}

// awaitRun waits a bounded time for a stopped run. It returns at once when
// called from one of the run's own callbacks.
func (e *Engine) awaitRun(run *recognitionRun) bool {
	if run.delivering.Load() > 0 {
		return false
	}

	timer := time.NewTimer(e.cfg.StartTimeout)
	defer timer.Stop()
	select {
	case <-run.finished:
		return true
	case <-timer.C:
		e.log.Warn("azure run did not stop before destroy returned")
		return false
	}
}

func (e *Engine) Bind(slot ports.Slot, cb ports.Callback) (ports.Binding, error) {
	e.mu.Lock()
	destroyed := e.destroyed
	e.mu.Unlock()
	if destroyed {
		return 0, errEngineDestroyed
	}
	return e.slots.Bind(slot, cb)
}

func (e *Engine) Unbind(slot ports.Slot, binding ports.Binding) error {
	return e.slots.Unbind(slot, binding)
}

func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	run := e.run
	e.run = nil
	e.grammars = nil
	e.mu.Unlock()

	e.slots.Clear()
	if run == nil {
		e.speechConfig.Close()
		return nil
	}

	e.stopRun(run)
	if !e.awaitRun(run) {
		go func() {
			<-run.finished
			e.speechConfig.Close()
		}()
		return nil
	}
	e.speechConfig.Close()
	return run.err
}
