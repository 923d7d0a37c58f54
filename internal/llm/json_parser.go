package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled code fence patterns. Newlines are optional because models
// don't always emit them.
var (
	codeFenceWholeRegex = regexp.MustCompile("(?s)^`{3}(?:json|javascript|js)?\\s*\\n?(.*?)\\n?`{3}\\s*$")
	codeFenceAnyRegex   = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\\n?(.*?)\\n?`{3}")
)

// ParseResult is the outcome of a tolerant parse.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures Parse.
type ParseOptions struct {
	Context string // prefix for error messages
	// DisableCleanup stops after the direct parse.
	DisableCleanup bool
	MaxInputSize   int // bytes; 0 means the 10MB default
}

const defaultMaxInputSize = 10 * 1024 * 1024

// Parse decodes model output as JSON, trying progressively more lenient
// strategies:
//  1. direct parse
//  2. strip markdown code fences
//  3. remove comments and trailing commas outside string literals
//  4. extract balanced JSON values from surrounding prose
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	maxSize := options.MaxInputSize
	if maxSize == 0 {
		maxSize = defaultMaxInputSize
	}

	if len(text) > maxSize {
		return parseError[T](fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), maxSize),
			truncate(text, 1000), options.Context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseError[T]("empty input", text, options.Context)
	}

	data, err := tryDirectParse[T](trimmed)
	if err == nil {
		return ParseResult[T]{Success: true, Data: data, OriginalText: text}
	}
	if options.DisableCleanup {
		return parseError[T](err.Error(), text, options.Context)
	}

	slog.Debug("Direct JSON parse failed, trying cleanup strategies",
		"error", err,
		"textPreview", truncate(text, 100),
		"context", options.Context)

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if data, err := tryDirectParse[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
	}

	cleaned := cleanupJSON(withoutFences)
	if data, err := tryDirectParse[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: data, OriginalText: text}
	}

	for _, candidate := range jsonCandidates(cleaned) {
		if data, err := tryDirectParse[T](candidate); err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
		// Prose around the value may have hidden comments from cleanup.
		if data, err := tryDirectParse[T](cleanupJSON(candidate)); err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
	}

	return parseError[T]("all JSON parsing strategies failed", text, options.Context)
}

func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown code fences, whether they wrap the whole
// text or appear inside it.
func removeCodeFences(text string) string {
	cleaned := codeFenceWholeRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		if m := codeFenceAnyRegex.FindStringSubmatch(text); m != nil {
			cleaned = m[1]
		}
	}
	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON removes // and /* */ comments and trailing commas before a
// closing brace or bracket. It tracks string literals so that file content
// carried inside JSON strings (which often contains "//" or ",}") is left
// untouched.
func cleanupJSON(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
			if i < len(text) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
			} else {
				i += end + 3
			}
		case c == ',':
			j := i + 1
			for j < len(text) && isJSONSpace(text[j]) {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// extractJSON returns the first balanced object or array in text, or "".
func extractJSON(text string) string {
	if c := jsonCandidates(text); len(c) > 0 {
		return c[0]
	}
	return ""
}

// jsonCandidates returns every top-level balanced object or array in text,
// in order of appearance.
func jsonCandidates(text string) []string {
	var out []string
	start := strings.IndexAny(text, "{[")
	for start >= 0 {
		next := start + 1
		if end := matchingClose(text, start); end > 0 {
			out = append(out, text[start:end+1])
			next = end + 1
		}
		if next >= len(text) {
			break
		}
		i := strings.IndexAny(text[next:], "{[")
		if i < 0 {
			break
		}
		start = next + i
	}
	return out
}

// matchingClose returns the index of the bracket closing text[start], or -1.
func matchingClose(text string, start int) int {
	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func parseError[T any](message, text, context string) ParseResult[T] {
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Error: message, OriginalText: text}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
