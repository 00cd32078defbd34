// Package hypr wraps the hyprctl commands used for on-screen notices.
package hypr

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultColor is used when Notify receives an empty color.
const DefaultColor = "rgb(89b4fa)"

// Notify sends a Hyprland notification payload.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = DefaultColor
	}
	_, err := run(ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(icon),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
	return err
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	_, err := run(ctx, "--quiet", "dispatch", "dismissnotify")
	return err
}

// Version reports the running compositor tag; doctor uses it as a liveness probe.
func Version(ctx context.Context) (string, error) {
	out, err := run(ctx, "-j", "version")
	if err != nil {
		return "", err
	}

	var payload struct {
		Tag    string `json:"tag"`
		Commit string `json:"commit_hash"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return "", fmt.Errorf("decode hyprctl version json: %w", err)
	}
	tag := strings.TrimSpace(payload.Tag)
	if tag == "" {
		tag = strings.TrimSpace(payload.Commit)
	}
	if tag == "" {
		return "", fmt.Errorf("hyprctl version returned no tag")
	}
	return tag, nil
}

func run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
