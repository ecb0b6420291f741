package cpanel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWHMEnvelope(t *testing.T) {
	data, err := ParseWHMEnvelope([]byte(`{"metadata":{"result":1,"reason":"OK"},"data":{"acct":[]}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"acct":[]}`, string(data))
}

func TestParseWHMEnvelopeFailureReported(t *testing.T) {
	_, err := ParseWHMEnvelope([]byte(`{"metadata":{"result":0,"reason":"Access denied"}}`))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ToolWHMAPI, apiErr.Tool)
	assert.Contains(t, apiErr.Error(), "Access denied")
}

func TestParseWHMEnvelopeMalformed(t *testing.T) {
	for name, input := range map[string][]byte{
		"empty":    nil,
		"not json": []byte("Software error: ..."),
		"truncated": []byte(`{"metadata":{"result":1},"data":`),
	} {
		t.Run(name, func(t *testing.T) {
			data, err := ParseWHMEnvelope(input)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, data)
		})
	}
}

func TestParseUAPIEnvelope(t *testing.T) {
	data, err := ParseUAPIEnvelope([]byte(`{"result":{"status":1,"errors":null,"data":[{"database":"bob_wp"}]}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"database":"bob_wp"}]`, string(data))
}

func TestParseUAPIEnvelopeStatusZero(t *testing.T) {
	_, err := ParseUAPIEnvelope([]byte(`{"result":{"status":0,"errors":["You do not have the feature “postgres”."]}}`))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.FeatureUnavailable())
}

func TestParseUAPIEnvelopeStatusZeroOtherError(t *testing.T) {
	_, err := ParseUAPIEnvelope([]byte(`{"result":{"status":0,"errors":["Database server is down"]}}`))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.FeatureUnavailable())
}

func TestParseUAPIEnvelopeStatusZeroNoDetail(t *testing.T) {
	_, err := ParseUAPIEnvelope([]byte(`{"result":{"status":0}}`))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotEmpty(t, apiErr.Errors)
}

func TestParseUAPIEnvelopeMalformed(t *testing.T) {
	_, err := ParseUAPIEnvelope([]byte(`<html>`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  float64
		valid bool
	}{
		{"number", `42.5`, 42.5, true},
		{"integer", `7`, 7, true},
		{"numeric string", `"123.4"`, 123.4, true},
		{"padded string", `" 9 "`, 9, true},
		{"word", `"unlimited"`, 0, false},
		{"null", `null`, 0, false},
		{"object", `{"a":1}`, 0, false},
		{"absent", ``, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsFloat(json.RawMessage(tt.raw))
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAsString(t *testing.T) {
	s, ok := AsString(json.RawMessage(`"8.1.2"`))
	assert.True(t, ok)
	assert.Equal(t, "8.1.2", s)

	_, ok = AsString(json.RawMessage(`12`))
	assert.False(t, ok)

	_, ok = AsString(nil)
	assert.False(t, ok)
}
