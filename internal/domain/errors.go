package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable means no recognition engine could be created.
	ErrEngineUnavailable = errors.New("speech recognition engine unavailable")
	// ErrSourceNotFound means the requested audio file does not exist or cannot be read.
	ErrSourceNotFound = errors.New("audio source not found")
	// ErrSessionDisposed is returned by every operation after Dispose.
	ErrSessionDisposed = errors.New("dictation session disposed")
	// ErrEngineInternal marks opaque backend failures during load, start or stop.
	ErrEngineInternal = errors.New("speech engine failure")
)

// EngineError wraps a backend failure with the engine operation that raised it.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is reports ErrEngineInternal for every EngineError.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngineInternal
}

// WrapEngine returns nil for a nil error, otherwise an *EngineError for op.
func WrapEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}
