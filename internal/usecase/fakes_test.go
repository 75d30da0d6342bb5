package usecase

import (
	"errors"
	"sync"

	"dictation/internal/domain"
	"dictation/internal/ports"
	"dictation/internal/slots"
)

type fakeFactory struct {
	engine *fakeEngine
	err    error
	calls  int
}

func (f *fakeFactory) NewEngine() (ports.Engine, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.engine, nil
}

type fakeEngine struct {
	slots *slots.Table

	mu        sync.Mutex
	calls     []string
	input     domain.InputSource
	loaded    []*domain.Grammar
	loadCount int
	running   bool
	destroyed int
	fail      map[string]error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{slots: slots.NewTable(), fail: make(map[string]error)}
}

func (e *fakeEngine) record(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, op)
	return e.fail[op]
}

func (e *fakeEngine) failOn(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[op] = err
}

func (e *fakeEngine) SetInputToDefaultDevice() error {
	if err := e.record("set_input_device"); err != nil {
		return err
	}
	e.input = domain.DefaultDevice()
	return nil
}

func (e *fakeEngine) SetInputToFile(path string) error {
	if err := e.record("set_input_file"); err != nil {
		return err
	}
	e.input = domain.AudioFile(path)
	return nil
}

func (e *fakeEngine) LoadGrammar(g *domain.Grammar) error {
	if err := e.record("load_grammar"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, loaded := range e.loaded {
		if loaded == g {
			return errors.New("grammar already loaded")
		}
	}
	e.loaded = append(e.loaded, g)
	e.loadCount++
	return nil
}

func (e *fakeEngine) UnloadGrammar(g *domain.Grammar) error {
	if err := e.record("unload_grammar"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, loaded := range e.loaded {
		if loaded == g {
			e.loaded = append(e.loaded[:i], e.loaded[i+1:]...)
			return nil
		}
	}
	return errors.New("grammar not loaded")
}

func (e *fakeEngine) UnloadAllGrammars() error {
	if err := e.record("unload_all_grammars"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = nil
	return nil
}

func (e *fakeEngine) RecognizeAsyncStart(mode ports.RecognizeMode) error {
	if err := e.record("recognize_start_" + mode.String()); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	return nil
}

func (e *fakeEngine) RecognizeAsyncStop() error {
	if err := e.record("recognize_stop"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return nil
}

func (e *fakeEngine) Recognizing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *fakeEngine) setRunning(running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = running
}

func (e *fakeEngine) Bind(slot ports.Slot, cb ports.Callback) (ports.Binding, error) {
	if err := e.record("bind_" + string(slot)); err != nil {
		return 0, err
	}
	return e.slots.Bind(slot, cb)
}

func (e *fakeEngine) Unbind(slot ports.Slot, binding ports.Binding) error {
	if err := e.record("unbind_" + string(slot)); err != nil {
		return err
	}
	return e.slots.Unbind(slot, binding)
}

func (e *fakeEngine) Destroy() error {
	err := e.record("destroy")
	e.mu.Lock()
	e.destroyed++
	e.mu.Unlock()
	e.slots.Clear()
	return err
}

func (e *fakeEngine) emit(slot ports.Slot, result domain.Result) {
	e.slots.Emit(slot, result)
}

func (e *fakeEngine) loadedGrammars() []*domain.Grammar {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*domain.Grammar(nil), e.loaded...)
}

func (e *fakeEngine) snapshotCalls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) count(op string) int {
	n := 0
	for _, call := range e.snapshotCalls() {
		if call == op {
			n++
		}
	}
	return n
}

type recordingHandler struct {
	mu      sync.Mutex
	results []domain.Result
}

func (h *recordingHandler) Handle(result domain.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *recordingHandler) snapshot() []domain.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Result(nil), h.results...)
}
