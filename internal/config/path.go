package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileName = "config.conf"
	appDir   = "smartspeak"

	// PathEnv overrides the config location when --config is not given.
	PathEnv = "SMARTSPEAK_CONFIG"
)

// ResolvePath picks the config file: --config, then $SMARTSPEAK_CONFIG, then
// config.conf under Dir. A leading "~/" is expanded.
func ResolvePath(explicit string) (string, error) {
	for _, candidate := range []string{explicit, os.Getenv(PathEnv)} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return expandHome(candidate)
		}
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Dir returns the smartspeak config directory; .env files are also read from here.
func Dir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDir), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config path")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
