package usecase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dictation/internal/domain"
	"dictation/internal/metrics"
	"dictation/internal/ports"
)

var errNilHandler = errors.New("handler is required")

// Config controls session construction.
type Config struct {
	Logger *logrus.Entry
}

// DictationSession drives one recognition engine: it selects the audio input,
// keeps the active grammar loaded and relays hypothesis and recognized events
// to subscribers. Start, Stop, SetGrammar and Dispose must not be called
// concurrently with each other; Dispose is safe to call repeatedly.
type DictationSession struct {
	id  string
	log *logrus.Entry

	mu       sync.Mutex
	engine   ports.Engine
	grammar  *domain.Grammar
	loaded   bool
	running  bool
	bindings map[ports.Slot]ports.Binding

	disposed atomic.Bool

	hypotheses *eventRelay
	recognized *eventRelay
	completed  *eventRelay
}

// NewDictationSession creates a session whose grammar defaults to open
// dictation on the first start.
func NewDictationSession(factory ports.EngineFactory, cfg Config) (*DictationSession, error) {
	return newDictationSession(factory, nil, cfg)
}

// NewDictationSessionWithGrammar creates a session that loads grammar on start.
// A nil grammar behaves like NewDictationSession.
func NewDictationSessionWithGrammar(factory ports.EngineFactory, grammar *domain.Grammar, cfg Config) (*DictationSession, error) {
	return newDictationSession(factory, grammar, cfg)
}

func newDictationSession(factory ports.EngineFactory, grammar *domain.Grammar, cfg Config) (*DictationSession, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: no engine factory configured", domain.ErrEngineUnavailable)
	}

	engine, err := factory.NewEngine()
	if err != nil {
		if errors.Is(err, domain.ErrEngineUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: factory returned no engine", domain.ErrEngineUnavailable)
	}

	id := uuid.NewString()
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("session", id)

	if err := engine.UnloadAllGrammars(); err != nil {
		_ = engine.Destroy()
		metrics.RecordEngineFailure("unload_all_grammars")
		return nil, domain.WrapEngine("unload_all_grammars", err)
	}

	s := &DictationSession{
		id:         id,
		log:        log,
		engine:     engine,
		grammar:    grammar,
		bindings:   make(map[ports.Slot]ports.Binding),
		hypotheses: newEventRelay(domain.ResultHypothesis),
		recognized: newEventRelay(domain.ResultRecognized),
		completed:  newEventRelay(domain.ResultCompleted),
	}
	metrics.RecordSessionCreated()
	log.Debug("dictation session created")
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *DictationSession) ID() string {
	return s.id
}

// State reports the current lifecycle state.
func (s *DictationSession) State() domain.SessionState {
	if s.disposed.Load() {
		return domain.SessionStateDisposed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return domain.SessionStateRecognizing
	}
	return domain.SessionStateIdle
}

// OnHypothesis subscribes handler to interim recognition guesses.
func (s *DictationSession) OnHypothesis(handler Handler) (*Subscription, error) {
	return s.subscribe(s.hypotheses, handler)
}

// OnRecognized subscribes handler to final recognition results.
func (s *DictationSession) OnRecognized(handler Handler) (*Subscription, error) {
	return s.subscribe(s.recognized, handler)
}

// OnCompleted subscribes handler to runs that end without Stop, such as a
// recorded file reaching its end. The session is idle again when it fires.
func (s *DictationSession) OnCompleted(handler Handler) (*Subscription, error) {
	return s.subscribe(s.completed, handler)
}

func (s *DictationSession) subscribe(relay *eventRelay, handler Handler) (*Subscription, error) {
	if s.disposed.Load() {
		return nil, domain.ErrSessionDisposed
	}
	if handler == nil {
		return nil, errNilHandler
	}
	return relay.add(handler), nil
}

// Start recognizes speech from the default input device.
func (s *DictationSession) Start() error {
	return s.start(domain.DefaultDevice())
}

// StartFile recognizes speech from a recorded audio file. The file is checked
// before the engine is touched.
func (s *DictationSession) StartFile(path string) error {
	if s.disposed.Load() {
		return domain.ErrSessionDisposed
	}
	if err := checkSource(path); err != nil {
		return err
	}
	return s.start(domain.AudioFile(path))
}

func checkSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", domain.ErrSourceNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrSourceNotFound, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrSourceNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrSourceNotFound, path, err)
	}
	return f.Close()
}

func (s *DictationSession) start(source domain.InputSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return domain.ErrSessionDisposed
	}

	if s.running {
		s.log.Info("restarting recognition")
		if err := s.stopLocked(); err != nil {
			return err
		}
	}

	var err error
	if source.Kind == domain.SourceFile {
		err = s.engine.SetInputToFile(source.Path)
	} else {
		err = s.engine.SetInputToDefaultDevice()
	}
	if err != nil {
		return s.engineFailure("set_input", err)
	}

	if s.grammar == nil {
		s.grammar = domain.NewDictationGrammar()
	}
	if !s.loaded {
		if err := s.engine.LoadGrammar(s.grammar); err != nil {
			return s.engineFailure("load_grammar", err)
		}
		s.loaded = true
	}

	if err := s.rebindLocked(); err != nil {
		return s.engineFailure("bind", err)
	}

	if err := s.engine.RecognizeAsyncStart(ports.RecognizeMultiple); err != nil {
		if uerr := s.engine.UnloadGrammar(s.grammar); uerr == nil {
			s.loaded = false
		}
		return s.engineFailure("recognize_start", err)
	}
	s.running = true

	metrics.RecordStart(string(source.Kind))
	s.log.WithFields(logrus.Fields{
		"source":  source.Kind,
		"path":    source.Path,
		"grammar": s.grammar.Name,
	}).Info("recognition started")
	return nil
}

var sessionSlots = []ports.Slot{ports.SlotHypothesis, ports.SlotRecognized, ports.SlotCompleted}

// rebindLocked leaves exactly one binding per native slot, however many
// times start runs.
func (s *DictationSession) rebindLocked() error {
	for _, slot := range sessionSlots {
		if binding, ok := s.bindings[slot]; ok {
			if err := s.engine.Unbind(slot, binding); err != nil {
				return err
			}
			delete(s.bindings, slot)
		}

		binding, err := s.engine.Bind(slot, s.callbackFor(slot))
		if err != nil {
			return err
		}
		s.bindings[slot] = binding
	}
	return nil
}

func (s *DictationSession) callbackFor(slot ports.Slot) ports.Callback {
	switch slot {
	case ports.SlotHypothesis:
		return s.relayHypothesis
	case ports.SlotCompleted:
		return s.relayCompleted
	default:
		return s.relayRecognized
	}
}

func (s *DictationSession) relayHypothesis(result domain.Result) {
	if s.disposed.Load() {
		return
	}
	s.hypotheses.publish(result)
	metrics.RecordEvent(string(domain.ResultHypothesis))
}

func (s *DictationSession) relayRecognized(result domain.Result) {
	if s.disposed.Load() {
		return
	}
	s.recognized.publish(result)
	metrics.RecordEvent(string(domain.ResultRecognized))
}

// relayCompleted marks the session idle unless a newer run has already
// started, then notifies subscribers.
func (s *DictationSession) relayCompleted(result domain.Result) {
	if s.disposed.Load() {
		return
	}

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return
	}
	if s.running && !engineRecognizing(s.engine) {
		s.running = false
		s.log.Info("recognition completed")
	}
	s.mu.Unlock()

	s.completed.publish(result)
	metrics.RecordEvent(string(domain.ResultCompleted))
}

func engineRecognizing(engine ports.Engine) bool {
	reporter, ok := engine.(ports.ActivityReporter)
	return ok && reporter.Recognizing()
}

// SetGrammar replaces the held grammar. While recognizing, the old grammar is
// unloaded and the new one loaded immediately.
func (s *DictationSession) SetGrammar(grammar *domain.Grammar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return domain.ErrSessionDisposed
	}
	if grammar == nil {
		return errors.New("grammar is required")
	}
	if grammar == s.grammar {
		return nil
	}

	if s.loaded {
		if err := s.engine.UnloadGrammar(s.grammar); err != nil {
			return s.engineFailure("unload_grammar", err)
		}
		s.loaded = false
	}
	s.grammar = grammar

	if s.running {
		if err := s.engine.LoadGrammar(grammar); err != nil {
			return s.engineFailure("load_grammar", err)
		}
		s.loaded = true
	}
	s.log.WithField("grammar", grammar.Name).Info("grammar replaced")
	return nil
}

// Stop unloads the grammar and asks the engine to stop without waiting for it
// to drain. A few events may still arrive while the engine winds down, and
// handlers may call Stop or Dispose themselves.
func (s *DictationSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return domain.ErrSessionDisposed
	}
	return s.stopLocked()
}

func (s *DictationSession) stopLocked() error {
	var errs []error
	if s.grammar != nil && s.loaded {
		if err := s.engine.UnloadGrammar(s.grammar); err != nil {
			errs = append(errs, s.engineFailure("unload_grammar", err))
		} else {
			s.loaded = false
		}
	}
	if err := s.engine.RecognizeAsyncStop(); err != nil {
		errs = append(errs, s.engineFailure("recognize_stop", err))
	}

	if s.running {
		s.log.Info("recognition stopped")
	}
	s.running = false
	return errors.Join(errs...)
}

// Dispose tears the session down. Only the first call has any effect; the
// session counts as disposed even when a teardown step fails.
func (s *DictationSession) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.stopLocked(); err != nil {
		errs = append(errs, err)
	}

	for slot, binding := range s.bindings {
		if err := s.engine.Unbind(slot, binding); err != nil {
			errs = append(errs, s.engineFailure("unbind", err))
		}
	}
	s.bindings = make(map[ports.Slot]ports.Binding)

	s.grammar = nil
	s.loaded = false

	if err := s.engine.UnloadAllGrammars(); err != nil {
		errs = append(errs, s.engineFailure("unload_all_grammars", err))
	}
	if err := s.engine.Destroy(); err != nil {
		errs = append(errs, s.engineFailure("destroy", err))
	}
	s.engine = nil

	s.hypotheses.clear()
	s.recognized.clear()
	s.completed.clear()

	metrics.RecordSessionDisposed()
	if err := errors.Join(errs...); err != nil {
		s.log.WithError(err).Warn("dictation session disposed with errors")
		return err
	}
	s.log.Info("dictation session disposed")
	return nil
}

// Close implements io.Closer.
func (s *DictationSession) Close() error {
	return s.Dispose()
}

func (s *DictationSession) engineFailure(op string, err error) error {
	metrics.RecordEngineFailure(op)
	s.log.WithError(err).WithField("op", op).Error("speech engine failure")
	return domain.WrapEngine(op, err)
}
