package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)

	logger.WithField("mint", "abc").Debug("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "abc", entry["mint"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithOutput_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "warn", "text")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestNewWithOutput_Invalid(t *testing.T) {
	_, err := NewWithOutput(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = NewWithOutput(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
