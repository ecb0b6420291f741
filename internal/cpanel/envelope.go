package cpanel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed marks panel output whose top-level structure could not be
// decoded. Individual bad entries inside a well-formed envelope are the
// collectors' problem and are counted as defects instead.
var ErrMalformed = errors.New("malformed panel response")

// APIError is a failure the panel itself reported inside a well-formed
// envelope (metadata.result == 0 for WHM, result.status == 0 for UAPI).
type APIError struct {
	Tool   Tool
	Errors []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s reported failure: %s", e.Tool, strings.Join(e.Errors, "; "))
}

// FeatureUnavailable reports whether the panel rejected the call because
// the feature is not provisioned for the account, e.g. PostgreSQL not
// installed. That is an expected state, not a collection failure.
func (e *APIError) FeatureUnavailable() bool {
	for _, msg := range e.Errors {
		if strings.Contains(msg, "You do not have the feature") {
			return true
		}
	}
	return false
}

// ParseWHMEnvelope unwraps a WHM API 1 response and returns the data
// payload. Shape: {"metadata": {"result": 1, "reason": ...}, "data": {...}}.
func ParseWHMEnvelope(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty stdout", ErrMalformed)
	}

	var env struct {
		Metadata struct {
			Result int    `json:"result"`
			Reason string `json:"reason"`
		} `json:"metadata"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Metadata.Result != 1 {
		return nil, &APIError{Tool: ToolWHMAPI, Errors: []string{env.Metadata.Reason}}
	}
	return env.Data, nil
}

// ParseUAPIEnvelope unwraps a UAPI response and returns the data payload.
// Shape: {"result": {"status": 1, "errors": null, "data": ...}}.
func ParseUAPIEnvelope(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty stdout", ErrMalformed)
	}

	var env struct {
		Result struct {
			Status int             `json:"status"`
			Errors []string        `json:"errors"`
			Data   json.RawMessage `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Result.Status == 0 {
		apiErr := &APIError{Tool: ToolUAPI, Errors: env.Result.Errors}
		if len(apiErr.Errors) == 0 {
			apiErr.Errors = []string{"status 0 with no error detail"}
		}
		return nil, apiErr
	}
	return env.Result.Data, nil
}

// AsFloat interprets a raw JSON scalar as a number. The panel is
// inconsistent about emitting numbers versus numeric strings, so both
// qualify; anything else reports false.
func AsFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// AsString interprets a raw JSON scalar as a string.
func AsString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
