package deepgram

import (
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"dictation/internal/domain"
	"dictation/internal/ports"
)

// pumpAudioChunks copies captured audio into the stream. End of input closes
// the send side so the provider flushes its last results.
func pumpAudioChunks(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	chunkSize int,
	log *logrus.Entry,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				log.WithError(sendErr).Warn("failed to stream audio")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Warn("audio capture error")
			}
			_ = stream.CloseSend()
			return
		}
	}
}

// consumeResults hands every stream result to deliver until the stream ends.
func consumeResults(
	stream ports.StreamingSession,
	deliver func(domain.Result),
	done chan struct{},
) {
	defer close(done)

	for result := range stream.Events() {
		deliver(result)
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
