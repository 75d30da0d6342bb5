package deepgram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"dictation/internal/domain"
	"dictation/internal/ports"
	"dictation/internal/slots"
)

var errEngineDestroyed = errors.New("deepgram engine destroyed")

const streamDrainTimeout = 4 * time.Second

// EngineConfig controls how a Deepgram engine captures and streams audio.
type EngineConfig struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	Logger         *logrus.Entry
}

// Factory creates Deepgram-backed engines that share one provider and capture.
type Factory struct {
	provider ports.TranscriptionProvider
	capture  ports.AudioCapture
	cfg      EngineConfig
}

func NewFactory(provider ports.TranscriptionProvider, capture ports.AudioCapture, cfg EngineConfig) *Factory {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Factory{provider: provider, capture: capture, cfg: cfg}
}

func (f *Factory) NewEngine() (ports.Engine, error) {
	if f.provider == nil || f.capture == nil {
		return nil, fmt.Errorf("%w: deepgram engine is not wired", domain.ErrEngineUnavailable)
	}
	if checker, ok := f.provider.(interface{ Ready() error }); ok {
		if err := checker.Ready(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
		}
	}
	return newEngine(f.provider, f.capture, f.cfg), nil
}

// Engine streams audio from ffmpeg to Deepgram and reports interim and final
// transcripts on its hypothesis and recognized slots. Loaded grammar phrases
// are sent as keywords when a run starts.
type Engine struct {
	provider ports.TranscriptionProvider
	capture  ports.AudioCapture
	cfg      EngineConfig
	log      *logrus.Entry
	slots    *slots.Table

	mu        sync.Mutex
	input     domain.InputSource
	grammars  []*domain.Grammar
	run       *recognitionRun
	destroyed bool
}

type recognitionRun struct {
	cancel     context.CancelFunc
	audio      ports.AudioSession
	stream     ports.StreamingSession
	eventsDone chan struct{}
	audioDone  chan struct{}

	// finished closes once finishRun is done; err is readable after that.
	finished   chan struct{}
	finishOnce sync.Once
	err        error

	// delivering counts callbacks in progress on the events goroutine.
	delivering atomic.Int32
}

func newEngine(provider ports.TranscriptionProvider, capture ports.AudioCapture, cfg EngineConfig) *Engine {
	return &Engine{
		provider: provider,
		capture:  capture,
		cfg:      cfg,
		log:      cfg.Logger.WithField("engine", "deepgram"),
		slots:    slots.NewTable(),
		input:    domain.DefaultDevice(),
	}
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
	if e.run != nil {
		e.log.WithField("grammar", g.Name).Debug("grammar loaded during a run applies from the next run")
	}
	return nil
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
			return nil
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
	return nil
}

// keywords collects phrases from every loaded phrase grammar. Dictation
// grammars add nothing: the listen API is open-vocabulary by default.
func (e *Engine) keywords() []string {
	var out []string
	for _, g := range e.grammars {
		if g.Kind == domain.GrammarDictation {
			continue
		}
		out = append(out, g.Phrases...)
	}
	return out
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
	streamCfg := e.cfg.Streaming
	streamCfg.Keywords = e.keywords()
	e.mu.Unlock()

	if previous != nil {
		e.stopRun(previous)
	}

	audioCfg := e.cfg.Audio
	if input.Kind == domain.SourceFile {
		audioCfg.InputFile = input.Path
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := e.provider.StartStreaming(ctx, streamCfg)
	if err != nil {
		cancel()
		return err
	}

	audioSession, err := e.capture.Start(ctx, audioCfg)
	if err != nil {
		_ = stream.Close()
		cancel()
		return err
	}

	run := &recognitionRun{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
		finished:   make(chan struct{}),
	}

	var stopAfterFinal sync.Once
	deliver := func(result domain.Result) {
		run.delivering.Add(1)
		defer run.delivering.Add(-1)

		switch result.Kind {
		case domain.ResultHypothesis:
			e.slots.Emit(ports.SlotHypothesis, result)
		case domain.ResultRecognized:
			e.slots.Emit(ports.SlotRecognized, result)
			if mode == ports.RecognizeSingle {
				stopAfterFinal.Do(func() {
					_ = audioSession.Stop()
				})
			}
		}
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return errors.Join(errEngineDestroyed, e.finishRunNow(run))
	}
	e.run = run
	e.mu.Unlock()

	go consumeResults(stream, deliver, run.eventsDone)
	go pumpAudioChunks(audioSession, stream, e.cfg.ChunkSize, e.log, run.audioDone)
	go e.watchRun(run)

	e.log.WithFields(logrus.Fields{
		"mode":     mode.String(),
		"source":   input.Kind,
		"keywords": len(streamCfg.Keywords),
	}).Info("deepgram recognition started")
	return nil
}

// RecognizeAsyncStop stops capture and leaves the provider to return its
// trailing results in the background. Events may still be emitted for up to
// StreamingGrace after it returns.
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
	if err := run.audio.Stop(); err != nil {
		e.log.WithError(err).Warn("failed to stop audio capture cleanly")
	}
	go func() {
		if err := e.finishRun(run); err != nil {
			e.log.WithError(err).Warn("deepgram stream ended with an error")
		}
	}()
}

// watchRun reports a run whose stream ended on its own, such as a recorded
// file reaching its end. Runs detached by stop or destroy are not reported.
func (e *Engine) watchRun(run *recognitionRun) {
	<-run.eventsDone

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
		e.log.WithError(err).Warn("deepgram stream ended with an error")
	}
	e.log.Info("deepgram recognition completed")
	e.slots.Emit(ports.SlotCompleted, domain.Result{Kind: domain.ResultCompleted})
}

// Recognizing reports whether a run is active.
func (e *Engine) Recognizing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil
}

// finishRun stops capture, gives the provider StreamingGrace to return the
// trailing results, then closes the stream. Only the first call does work.
func (e *Engine) finishRun(run *recognitionRun) error {
	run.finishOnce.Do(func() {
		defer close(run.finished)
		defer run.cancel()

		if err := run.audio.Stop(); err != nil {
			e.log.WithError(err).Warn("failed to stop audio capture cleanly")
		}

		if e.cfg.StreamingGrace > 0 {
			timer := time.NewTimer(e.cfg.StreamingGrace)
			select {
			case <-timer.C:
			case <-run.eventsDone:
				timer.Stop()
			}
		}

		_ = run.stream.CloseSend()
		run.err = waitForStream(run.stream, streamDrainTimeout)
		<-run.eventsDone
		<-run.audioDone

		e.log.Info("deepgram recognition stopped")
	})
	<-run.finished
	return run.err
}

// finishRunNow is used for runs that never started their goroutines.
func (e *Engine) finishRunNow(run *recognitionRun) error {
	defer run.cancel()
	_ = run.audio.Stop()
	return run.stream.Close()
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

// Destroy stops any run and drops every binding. Calling it again is a no-op.
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

	var err error
	if run != nil {
		e.stopRun(run)
		err = e.awaitRun(run)
	}
	e.slots.Clear()
	return err
}

// awaitRun waits a bounded time for a stopped run to drain. It returns at
// once when called from a result callback, since that callback is what the
// drain would be waiting on.
func (e *Engine) awaitRun(run *recognitionRun) error {
	if run.delivering.Load() > 0 {
		return nil
	}

	timer := time.NewTimer(e.cfg.StreamingGrace + streamDrainTimeout)
	defer timer.Stop()
	select {
	case <-run.finished:
		return run.err
	case <-timer.C:
		e.log.Warn("deepgram run did not drain before destroy returned")
		return nil
	}
}
