package app

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env from the working directory and then from the config
// directory. Variables already set in the environment win, and the first file
// to define a variable wins over later ones. It returns the files loaded.
func loadDotEnv(configPath string, logger *slog.Logger) []string {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}

	var loaded []string
	seen := map[string]bool{}
	for _, path := range candidates {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			if logger != nil {
				logger.Warn("load env file failed", "path", abs, "error", err.Error())
			}
			continue
		}
		loaded = append(loaded, abs)
	}
	return loaded
}
