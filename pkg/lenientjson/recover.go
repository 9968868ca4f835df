// Package lenientjson turns the loosely formatted JSON that the analysis service
// embeds in its "answer" field into a parsed value.
//
// The repair is textual and heuristic. It is not a JSON parser and it can corrupt
// string values that legitimately contain apostrophes or bracket characters.
package lenientjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnrecoverable is returned when the input is empty or cannot be parsed even
// after repair. Callers should skip the record, not abort.
var ErrUnrecoverable = errors.New("unrecoverable json")

var reLineBreaks = regexp.MustCompile(`[\r\n]+`)

// Document is a successfully recovered JSON value together with the repaired text
// it was parsed from.
type Document struct {
	Value any
	Text  string
}

// Recover repairs raw and parses it.
func Recover(raw string) (*Document, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrUnrecoverable)
	}

	text := Repair(raw)

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}
	return &Document{Value: v, Text: text}, nil
}

// Repair applies the textual clean-up steps without parsing. Every step runs
// unconditionally, in order.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, `\n`, "")
	s = strings.ReplaceAll(s, "'", `"`)
	s = reLineBreaks.ReplaceAllString(s, "")

	if strings.HasPrefix(s, "{") && !strings.HasSuffix(s, "}") {
		s = closeTruncated(s)
	}
	return s
}

// closeTruncated appends the brackets and braces a truncated object is missing.
// Counts include characters inside string values.
func closeTruncated(s string) string {
	if n := strings.Count(s, "[") - strings.Count(s, "]"); n > 0 {
		s += strings.Repeat("]", n)
	}
	if n := strings.Count(s, "{") - strings.Count(s, "}"); n > 0 {
		s += strings.Repeat("}", n)
	}
	if !strings.HasSuffix(s, "}") {
		s += "}"
	}
	return s
}

// Get returns the value at path in the repaired text. Object members are visited
// in document order, which a decoded map cannot give.
func (d *Document) Get(path string) gjson.Result {
	return gjson.Get(d.Text, path)
}

// Member returns the top-level object member named key. When the key repeats,
// the last occurrence wins, matching what Value holds. A document that is not
// an object has no members.
func (d *Document) Member(key string) gjson.Result {
	var found gjson.Result
	root := gjson.Parse(d.Text)
	if !root.IsObject() {
		return found
	}
	root.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
		}
		return true
	})
	return found
}
