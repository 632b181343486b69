package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsConfigError(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config load")
}

func TestGetInt(t *testing.T) {
	t.Setenv("SEED_DAYS", "3")
	t.Setenv("SEED_PATIENTS", "many")

	assert.Equal(t, 3, getInt("SEED_DAYS", 10))
	assert.Equal(t, 500, getInt("SEED_PATIENTS", 500), "unparsable values fall back")
	assert.Equal(t, 7, getInt("SEED_UNSET_KEY", 7))
}
