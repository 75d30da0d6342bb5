package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dictation/internal/domain"
	"dictation/internal/providers/azure"
	"dictation/internal/providers/deepgram"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DICTATION_CONFIG", "DICTATION_ENGINE", "DEEPGRAM_API_KEY", "AZURE_SPEECH_KEY",
		"AZURE_SPEECH_REGION", "DICTATION_GRAMMAR_PHRASES", "DICTATION_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestBuildSuccess(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	services, err := Build("")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, ok := services.Factory.(*deepgram.Factory); !ok {
		t.Fatalf("expected deepgram factory, got %T", services.Factory)
	}
	if services.Logger == nil {
		t.Fatalf("expected logger")
	}

	session, err := services.NewSession()
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	if session.State() != domain.SessionStateIdle {
		t.Fatalf("expected idle session, got %q", session.State())
	}
	if err := session.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}
}

func TestBuildWithGrammarPhrases(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DICTATION_GRAMMAR_PHRASES", "open file, close file")

	services, err := Build("")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(services.Config.Session.GrammarPhrases) != 2 {
		t.Fatalf("expected two phrases, got %v", services.Config.Session.GrammarPhrases)
	}

	session, err := services.NewSession()
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	defer session.Close()
}

func TestNewSessionWithoutCredentialsIsUnavailable(t *testing.T) {
	isolateEnv(t)

	services, err := Build("")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := services.NewSession(); !errors.Is(err, domain.ErrEngineUnavailable) {
		t.Fatalf("expected engine unavailable, got %v", err)
	}
}

func TestBuildAzureFromConfigFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "dictation.yaml")
	contents := "engine:\n  backend: azure\nazure:\n  region: westeurope\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	services, err := Build(path)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, ok := services.Factory.(*azure.Factory); !ok {
		t.Fatalf("expected azure factory, got %T", services.Factory)
	}
	// No subscription key, so no native recognizer is created.
	if _, err := services.NewSession(); !errors.Is(err, domain.ErrEngineUnavailable) {
		t.Fatalf("expected engine unavailable, got %v", err)
	}
}

func TestBuildFailsOnUnknownBackend(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DICTATION_ENGINE", "sapi")

	if _, err := Build(""); err == nil {
		t.Fatalf("expected build error for unknown backend")
	}
}

func TestBuildFailsOnMissingConfigFile(t *testing.T) {
	isolateEnv(t)

	if _, err := Build(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected build error for missing config file")
	}
}
