package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"OPENAI_API_KEY", "ARK_API_KEY", "LANGFUSE_SECRET_KEY"} {
		if got := SanitiseKey(key, "sk-abc123"); got != "set" {
			t.Errorf("%s: expected 'set', got %q", key, got)
		}
		if got := SanitiseKey(key, ""); got != "unset" {
			t.Errorf("%s: expected 'unset', got %q", key, got)
		}
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "azure"); got != "azure" {
		t.Errorf("expected 'azure', got %q", got)
	}
	if got := SanitiseKey("INDEX_BACKEND", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := home + "/.pdfqa/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.pdfqa/config.yaml" {
			t.Errorf("expected '~/.pdfqa/config.yaml', got %q", got)
		}
	}
}

// TestLogCommandStart_RedactsSecrets verifies the emitted entry never
// carries a credential value.
func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-very-secret")
	t.Setenv("MODEL_PROVIDER", "openai")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "serve", "")

	if bytes.Contains(buf.Bytes(), []byte("sk-very-secret")) {
		t.Fatalf("secret leaked into audit log: %s", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["command"] != "serve" {
		t.Errorf("command: got %v", entry["command"])
	}
	if entry["OPENAI_API_KEY"] != "set" {
		t.Errorf("OPENAI_API_KEY: got %v", entry["OPENAI_API_KEY"])
	}
	if entry["MODEL_PROVIDER"] != "openai" {
		t.Errorf("MODEL_PROVIDER: got %v", entry["MODEL_PROVIDER"])
	}
	if entry["config_file"] != "none" {
		t.Errorf("config_file: got %v", entry["config_file"])
	}
}
