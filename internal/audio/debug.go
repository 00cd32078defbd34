package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteDebugDump stores a payload under $XDG_STATE_HOME/smartspeak/debug and
// returns the written path.
func WriteDebugDump(prefix string, payload Payload) (string, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return "", err
	}
	debugDir := filepath.Join(stateDir, "smartspeak", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}

	ext := "bin"
	if strings.HasPrefix(payload.MediaType, MediaTypeWAV) {
		ext = "wav"
	} else if strings.HasPrefix(payload.MediaType, MediaTypePCM) {
		ext = "pcm"
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, ext))
	if err := os.WriteFile(path, payload.Data, 0o600); err != nil {
		return "", fmt.Errorf("write debug file %q: %w", path, err)
	}
	return path, nil
}

// resolveStateDir returns XDG_STATE_HOME or its ~/.local/state fallback.
func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}
