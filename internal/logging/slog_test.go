package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		key   string
		val   string
	}{
		{"DEBUG", "dbg", "a", "1"},
		{"INFO", "inf", "b", "2"},
		{"WARN", "wrn", "c", "3"},
		{"ERROR", "err", "d", "4"},
	}

	for _, tt := range tests {
		if !strings.Contains(out, "level="+tt.level) {
			t.Errorf("output missing level %s: %s", tt.level, out)
		}
		if !strings.Contains(out, "msg="+tt.msg) {
			t.Errorf("output missing message %q: %s", tt.msg, out)
		}
		if !strings.Contains(out, tt.key+"="+tt.val) {
			t.Errorf("output missing attr %s=%s: %s", tt.key, tt.val, out)
		}
	}
}

func TestSlogLogger_With_AddsPersistentAttrs(t *testing.T) {
	log, buf := newTestLogger(t)
	child := log.With("module", "identity")

	child.Info(context.Background(), "hello")

	if !strings.Contains(buf.String(), "module=identity") {
		t.Fatalf("expected persistent attr in output: %s", buf.String())
	}
}
