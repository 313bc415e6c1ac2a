package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"  warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestForStage(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	stageLog := ForStage(log, "run-123", "validation")
	stageLog.Info().Msg("stage started")

	out := buf.String()
	if !strings.Contains(out, "run-123") {
		t.Errorf("log output missing pipeline id: %s", out)
	}
	if !strings.Contains(out, "validation") {
		t.Errorf("log output missing stage name: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	got := FromContext(ctx)

	got.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("logger from context did not write to original buffer")
	}
}

func TestFromContextMissing(t *testing.T) {
	// Must not panic and must return a usable logger.
	log := FromContext(context.Background())
	log.Debug().Msg("noop")
}
