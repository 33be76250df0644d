package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetLogLevel("INFO") })

	SetLogLevel("WARN")
	Infof("info %d", 1)
	Warnf("warn %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "info 1")
	assert.Contains(t, out, "warn 2")
	assert.Contains(t, out, "level=WARN")
	assert.Equal(t, LevelWarn, GetLogLevel())
}

func TestSetLogLevel_UnknownFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetLogLevel("INFO") })

	SetLogLevel("verbose")
	Debugf("hidden")
	Infof("shown")

	assert.Equal(t, LevelInfo, GetLogLevel())
	assert.Contains(t, buf.String(), "不明なログレベル 'verbose'")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFatalf_WritesFatalLevelAndExits(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	code := -1
	prev := exitFunc
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = prev })

	Fatalf("boom %s", "now")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "level=FATAL")
	assert.Contains(t, buf.String(), "boom now")
}
