package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

const measureSchemaJSON = `{
	"type": "object",
	"required": ["measure"],
	"properties": {
		"measure": {
			"oneOf": [
				{"type": "integer", "minimum": 0},
				{"type": "string", "pattern": "^\\s*[0-9]+\\s*$"}
			]
		}
	}
}`

var measureSchema = jsonschema.MustCompileString("measure.json", measureSchemaJSON)

// ParseMeasure reads the integer reading out of the model answer. The answer
// must be a JSON object {"measure": n}, optionally inside a code fence; n may
// be an integer or a string of digits.
func ParseMeasure(text string) (int64, error) {
	payload := stripCodeFence(strings.TrimSpace(text))
	if payload == "" {
		return 0, ErrEmptyResponse
	}
	// a single JSON value, nothing after it
	if !gjson.Valid(payload) {
		return 0, fmt.Errorf("%w: %q is not a single JSON value", ErrUnreadableMeasure, snippet(payload))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return 0, fmt.Errorf("%w: decode %q: %v", ErrUnreadableMeasure, snippet(payload), err)
	}
	if err := measureSchema.Validate(doc); err != nil {
		return 0, fmt.Errorf("%w: %q does not match schema: %v", ErrUnreadableMeasure, snippet(payload), err)
	}

	var raw string
	switch v := doc.(map[string]any)["measure"].(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrUnreadableMeasure, raw, err)
	}
	return value, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
