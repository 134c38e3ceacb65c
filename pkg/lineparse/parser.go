// Package lineparse provides pure per-line parsers for the processing
// pipeline. Parsers hold no state and perform no I/O; each takes one input
// line and its 1-based line number and returns a Result.
package lineparse

import (
	"encoding/json"
	"strings"
)

// maxRawLen bounds the raw line retained on parse failure.
const maxRawLen = 200

// Result is the outcome of parsing one line.
//
// Exactly one of the following holds:
//   - Skipped: the line was empty after trimming and produced nothing
//   - OK: Data carries the parsed value
//   - neither: Err describes the failure and Raw holds the offending line,
//     truncated to 200 characters
type Result struct {
	LineNumber int
	OK         bool
	Skipped    bool
	Data       any
	Err        string
	Raw        string
}

// Parser parses a single line.
type Parser func(line string, lineNumber int) Result

func skipped(n int) Result {
	return Result{LineNumber: n, Skipped: true}
}

func success(n int, data any) Result {
	return Result{LineNumber: n, OK: true, Data: data}
}

func failure(n int, errMsg, line string) Result {
	return Result{LineNumber: n, Err: errMsg, Raw: truncate(line, maxRawLen)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ParseJSON decodes one line as a JSON value. Empty lines are skipped.
func ParseJSON(line string, lineNumber int) Result {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return skipped(lineNumber)
	}

	var data any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return failure(lineNumber, err.Error(), line)
	}
	return success(lineNumber, data)
}

// ParseCSV splits one line on commas and trims each cell. With headers the
// cells are zipped into a map keyed by header name; without headers the raw
// cell slice is returned.
//
// Quoted commas are not handled: a cell like "a,b" splits incorrectly.
func ParseCSV(line string, lineNumber int, headers []string) Result {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return skipped(lineNumber)
	}

	cells := strings.Split(trimmed, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	if len(headers) > 0 {
		row := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				row[h] = cells[i]
			} else {
				row[h] = ""
			}
		}
		return success(lineNumber, row)
	}

	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return success(lineNumber, values)
}

// ParseText wraps the original, un-trimmed line as {"text": line}.
// Lines that are empty after trimming are skipped.
func ParseText(line string, lineNumber int) Result {
	if strings.TrimSpace(line) == "" {
		return skipped(lineNumber)
	}
	return success(lineNumber, map[string]any{"text": line})
}

// ParseAuto detects the line format: JSON when the trimmed line starts with
// '{' or '[', CSV when it contains a comma, plain text otherwise. A failed
// JSON attempt falls through to CSV or text rather than failing the line.
func ParseAuto(line string, lineNumber int) Result {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return skipped(lineNumber)
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if res := ParseJSON(line, lineNumber); res.OK {
			return res
		}
	}
	if strings.Contains(trimmed, ",") {
		return ParseCSV(line, lineNumber, nil)
	}
	return ParseText(line, lineNumber)
}

// SelectParser picks a parser by substring match on the content type.
// Unknown content types fall back to auto-detection.
func SelectParser(contentType string) Parser {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return ParseJSON
	case strings.Contains(ct, "csv"):
		return func(line string, n int) Result {
			return ParseCSV(line, n, nil)
		}
	case strings.Contains(ct, "text"), strings.Contains(ct, "plain"):
		return ParseText
	default:
		return ParseAuto
	}
}

// Validate reports whether parsed data is acceptable for insertion.
// Non-empty objects and non-empty arrays pass; scalars, nil, and empty
// containers are rejected.
func Validate(data any) bool {
	switch v := data.(type) {
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return false
	}
}
