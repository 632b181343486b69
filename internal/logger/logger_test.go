package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONInProd(t *testing.T) {
	var buf bytes.Buffer
	log, err := newWithWriter(&buf, "prod", "info")
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("doctor", "1").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "1", line["doctor"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("prod", "loud")
	assert.Error(t, err)
}
