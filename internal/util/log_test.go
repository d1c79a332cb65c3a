package util

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	prevLevel, prevColors := currentLogLevel, useColors
	SetOutput(&buf)
	SetLogLevel(level)
	SetColors(false)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLogLevel(prevLevel)
		SetColors(prevColors)
	})
	return &buf
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
		skip  []string
	}{
		{LevelDebug, []string{"[DEBUG] d", "[INFO]  i", "[WARN]  w", "[ERROR] e", "[OK]    s"}, nil},
		{LevelInfo, []string{"[INFO]  i", "[WARN]  w", "[ERROR] e", "[OK]    s"}, []string{"[DEBUG]"}},
		{LevelError, []string{"[ERROR] e"}, []string{"[DEBUG]", "[INFO]", "[WARN]", "[OK]"}},
	}

	for _, tt := range tests {
		buf := captureLogs(t, tt.level)

		DebugLog("d")
		InfoLog("i")
		WarnLog("w")
		ErrorLog("e")
		SuccessLog("s")

		out := buf.String()
		for _, want := range tt.want {
			if !strings.Contains(out, want) {
				t.Errorf("level %d: expected %q in output:\n%s", tt.level, want, out)
			}
		}
		for _, skip := range tt.skip {
			if strings.Contains(out, skip) {
				t.Errorf("level %d: unexpected %q in output:\n%s", tt.level, skip, out)
			}
		}
	}
}

func TestVerboseAndQuiet(t *testing.T) {
	captureLogs(t, LevelInfo)

	SetVerbose(true)
	if currentLogLevel != LevelDebug {
		t.Errorf("SetVerbose(true) level = %d, expected debug", currentLogLevel)
	}
	if IsQuiet() {
		t.Error("IsQuiet() true in verbose mode")
	}

	SetQuiet(true)
	if !IsQuiet() {
		t.Error("IsQuiet() false after SetQuiet(true)")
	}
}

func TestColors(t *testing.T) {
	buf := captureLogs(t, LevelInfo)

	InfoLog("plain")
	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected escape codes with colors disabled: %q", buf.String())
	}

	buf.Reset()
	SetColors(true)
	InfoLog("colored")
	if !strings.Contains(buf.String(), "\033[36m") {
		t.Errorf("expected escape codes with colors enabled: %q", buf.String())
	}
}
