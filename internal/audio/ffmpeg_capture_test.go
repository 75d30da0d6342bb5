package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dictation/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFFMPEGCaptureShortFileStaysReadable(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "file.sh", "#!/usr/bin/env bash\nprintf 'pcm-bytes'\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{InputFile: "talk.wav"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	data, err := io.ReadAll(session)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "pcm-bytes" {
		t.Fatalf("unexpected bytes: %q", string(data))
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestFFMPEGCaptureReadAfterStopIsEOF(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	session, err := NewFFMPEGCapture(script).Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	_, err = session.Read(make([]byte, 4))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after stop, got %v", err)
	}
}

func TestBuildArgsDevice(t *testing.T) {
	t.Parallel()

	args := strings.Join(buildArgs(ports.AudioConfig{}), " ")
	for _, want := range []string{"-f pulse -i default", "-ac 1", "-ar 16000", "-f s16le -"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
	if strings.Contains(args, "-re") {
		t.Fatalf("live capture should not pace input: %q", args)
	}

	args = strings.Join(buildArgs(ports.AudioConfig{InputFormat: "alsa", InputDevice: "hw:1", SampleRate: 8000, Channels: 2}), " ")
	if !strings.Contains(args, "-f alsa -i hw:1") || !strings.Contains(args, "-ac 2") || !strings.Contains(args, "-ar 8000") {
		t.Fatalf("unexpected args: %q", args)
	}
}

func TestBuildArgsFile(t *testing.T) {
	t.Parallel()

	args := strings.Join(buildArgs(ports.AudioConfig{InputFile: "/tmp/talk.wav", InputDevice: "ignored"}), " ")
	if !strings.Contains(args, "-re -i /tmp/talk.wav") {
		t.Fatalf("expected file input in %q", args)
	}
	if strings.Contains(args, "ignored") || strings.Contains(args, "pulse") {
		t.Fatalf("device settings leaked into file capture: %q", args)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func TestStringsTrimSpaceSafe(t *testing.T) {
	t.Parallel()

	if got := stringsTrimSpaceSafe("  hi\n"); got != "hi" {
		t.Fatalf("unexpected trim result: %q", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
