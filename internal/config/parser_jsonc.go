package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

func decodeJSONC(content string) (fileConfig, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return fileConfig{}, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return fileConfig{}, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return fileConfig{}, wrapJSONDecodeError(normalized, err)
	}
	return payload, nil
}

// normalizeJSONC blanks out comments and trailing commas so encoding/json can
// decode the document. Every removed byte becomes a space (newlines are kept),
// so decoder offsets still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	inString := false
	escape := false

	for i := 0; i < len(out); i++ {
		ch := out[i]

		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '/':
			end, ok, err := commentEnd(content, i)
			if err != nil {
				return "", err
			}
			if ok {
				blank(out, i, end)
				i = end - 1
			}
		case ',':
			if next := nextSignificant(content, i+1); next < len(content) && (content[next] == '}' || content[next] == ']') {
				out[i] = ' '
			}
		}
	}
	return string(out), nil
}

// commentEnd reports the exclusive end offset of a comment starting at i.
func commentEnd(content string, i int) (int, bool, error) {
	if i+1 >= len(content) {
		return 0, false, nil
	}
	switch content[i+1] {
	case '/':
		if idx := strings.IndexAny(content[i:], "\r\n"); idx >= 0 {
			return i + idx, true, nil
		}
		return len(content), true, nil
	case '*':
		idx := strings.Index(content[i+2:], "*/")
		if idx < 0 {
			return 0, false, errors.New("unterminated block comment in JSONC")
		}
		return i + 2 + idx + 2, true, nil
	default:
		return 0, false, nil
	}
}

// nextSignificant returns the offset of the next byte that is neither
// whitespace nor part of a comment.
func nextSignificant(content string, i int) int {
	for i < len(content) {
		if isJSONWhitespace(content[i]) {
			i++
			continue
		}
		if content[i] == '/' {
			end, ok, err := commentEnd(content, i)
			if ok && err == nil {
				i = end
				continue
			}
		}
		break
	}
	return i
}

func blank(buf []byte, from, to int) {
	for j := from; j < to; j++ {
		if buf[j] != '\n' && buf[j] != '\r' {
			buf[j] = ' '
		}
	}
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64 = -1

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}

	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a 1-based decoder offset to a line and column.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	prefix := content[:max(limit-1, 0)]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
