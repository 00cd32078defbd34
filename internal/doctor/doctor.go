// Package doctor runs runtime readiness diagnostics for config, audio, the
// local control socket, the indicator backend, and the remote speech API.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/smartspeak/internal/audio"
	"github.com/rbright/smartspeak/internal/config"
	"github.com/rbright/smartspeak/internal/hypr"
	"github.com/rbright/smartspeak/internal/ipc"
	"github.com/rbright/smartspeak/internal/voiceapi"
)

const probeTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Options overrides the probes' transport; zero values use the defaults.
type Options struct {
	HTTPClient *http.Client
}

// Run executes environment, config, and runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, opts Options) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkAPIKey(cfg))
	checks = append(checks, checkRuntimeDir())
	checks = append(checks, checkIndicator(ctx, cfg.Indicator))
	checks = append(checks, checkAudioSelection(ctx, cfg.Audio))
	checks = append(checks, checkSpeechAPI(ctx, cfg, opts.HTTPClient))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q (%s)", loaded.Path, loaded.Format)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(", %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkAPIKey reports only presence; the key itself is never printed.
func checkAPIKey(cfg config.Config) Check {
	name := cfg.OpenAI.APIKeyEnv
	if voiceapi.APIKey(cfg) == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is empty (set it in the environment or a .env file)", name)}
	}
	return Check{Name: name, Pass: true, Message: "API key is set"}
}

func checkRuntimeDir() Check {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return Check{Name: "XDG_RUNTIME_DIR", Pass: false, Message: err.Error()}
	}
	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return Check{Name: "XDG_RUNTIME_DIR", Pass: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "XDG_RUNTIME_DIR", Pass: false, Message: fmt.Sprintf("%s is not a directory", filepath.Dir(path))}
	}
	return Check{Name: "XDG_RUNTIME_DIR", Pass: true, Message: fmt.Sprintf("control socket at %s", path)}
}

func checkIndicator(ctx context.Context, cfg config.IndicatorConfig) Check {
	if !cfg.Enable {
		return Check{Name: "indicator", Pass: true, Message: "disabled"}
	}
	if cfg.Backend == config.IndicatorBackendDesktop {
		return checkBinary("busctl", "desktop notifications")
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	tag, err := hypr.Version(ctx)
	if err != nil {
		return Check{Name: "hyprctl", Pass: false, Message: err.Error()}
	}
	return Check{Name: "hyprctl", Pass: true, Message: fmt.Sprintf("Hyprland %s", tag)}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSpeechAPI lists models to prove the endpoint and credentials work.
func checkSpeechAPI(ctx context.Context, cfg config.Config, httpClient *http.Client) Check {
	opts := voiceapi.OptionsFromConfig(cfg, nil)
	opts.HTTPClient = httpClient
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: probeTimeout}
	}

	client, err := voiceapi.New(opts)
	if errors.Is(err, voiceapi.ErrMissingAPIKey) {
		return Check{Name: "openai", Pass: false, Message: "skipped: no API key, turns use offline replies"}
	}
	if err != nil {
		return Check{Name: "openai", Pass: false, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	count, err := client.Ping(ctx)
	if err != nil {
		return Check{Name: "openai", Pass: false, Message: err.Error()}
	}
	return Check{Name: "openai", Pass: true, Message: fmt.Sprintf("%s reachable (%d models)", cfg.OpenAI.BaseURL, count)}
}
