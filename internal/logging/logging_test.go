package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"trace":   logrus.TraceLevel,
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: "json", Output: &buf})

	logger.Info("dropped")
	logger.WithField("namespace", "main").Warn("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "main", entry["namespace"])
	assert.Equal(t, "warning", entry["level"])
}

func TestConfigureText(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	Configure(logger, Config{Level: "debug", Format: "text", Output: &buf})

	logger.Debug("hello")
	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestEngineLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "debug", Format: "text", Output: &buf})

	badger := NewBadgerLogger(logger)
	badger.Warningf("value log %d", 3)
	badger.Infof("compaction")
	badger.Debugf("not shown at debug")

	pebble := NewPebbleLogger(logger)
	pebble.Errorf("flush failed")
	pebble.Infof("opened")

	out := buf.String()
	assert.Contains(t, out, "[BadgerDB] value log 3")
	assert.Contains(t, out, "[BadgerDB] compaction")
	assert.NotContains(t, out, "not shown at debug")
	assert.Contains(t, out, "[Pebble] flush failed")
	assert.Contains(t, out, "[Pebble] opened")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() { logger.Error("nothing") })
}
