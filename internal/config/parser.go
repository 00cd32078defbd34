package config

import "strings"

// Parse reads JSONC when the document starts with an object, YAML otherwise,
// and overlays the result onto base.
func Parse(content string, base Config) (Config, []Warning, error) {
	var (
		payload fileConfig
		err     error
	)
	if looksLikeJSON(content) {
		payload, err = decodeJSONC(content)
	} else {
		payload, err = decodeYAML(content)
	}
	if err != nil {
		return Config{}, nil, err
	}

	cfg := base
	warnings := payload.applyTo(&cfg)

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}

// looksLikeJSON skips leading whitespace and JSONC comments.
func looksLikeJSON(content string) bool {
	rest := content
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		switch {
		case strings.HasPrefix(rest, "//"):
			idx := strings.IndexByte(rest, '\n')
			if idx < 0 {
				return false
			}
			rest = rest[idx+1:]
		case strings.HasPrefix(rest, "/*"):
			idx := strings.Index(rest, "*/")
			if idx < 0 {
				return false
			}
			rest = rest[idx+2:]
		default:
			return strings.HasPrefix(rest, "{")
		}
	}
}
