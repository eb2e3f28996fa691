package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleculadb/insertdest/logger"
)

func TestStandardLoggerRespectsVerbosity(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewStandardLogger(&buf)

	l.Debugf("debug message")
	assert.Empty(t, buf.String(), "debug should be suppressed at default verbosity")

	l.Infof("info message %d", 1)
	assert.Contains(t, buf.String(), "INFO:")
	assert.Contains(t, buf.String(), "info message 1")
}

func TestVerboseLoggerIncludesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewVerboseLogger(&buf)

	l.Debugf("debug message")
	assert.Contains(t, buf.String(), "DEBUG:")
	assert.Contains(t, buf.String(), "debug message")
}

func TestWithPrefixDoesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewStandardLogger(&buf)
	prefixed := base.WithPrefix("worker-1: ")

	prefixed.Infof("hello")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "worker-1: ")

	buf.Reset()
	base.Infof("hello")
	assert.NotContains(t, buf.String(), "worker-1: ", "the original logger keeps its own, empty prefix")
}

func TestNopLoggerDiscardsEverything(t *testing.T) {
	l := logger.NopLogger
	require.NotPanics(t, func() {
		l.Debugf("x")
		l.Infof("x")
		l.Warnf("x")
		l.Errorf("x")
		l.WithPrefix("p").Infof("x")
	})
}

func TestBufferLoggerCapturesMessages(t *testing.T) {
	bl := logger.NewBufferLogger()
	bl.Errorf("boom: %s", "oops")

	out, err := bl.ReadAll()
	require.NoError(t, err)
	assert.Contains(t, string(out), "boom: oops")
}
