package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewPicksHandlerByEnv(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "production").Info("tree rebuilt", "nodes", 5)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("production output is not JSON: %q", buf.String())
	}
	if rec["msg"] != "tree rebuilt" || rec["nodes"] != float64(5) {
		t.Errorf("unexpected record %v", rec)
	}

	buf.Reset()
	New(&buf, "info", "development").Info("tree rebuilt")
	if !strings.Contains(buf.String(), "msg=\"tree rebuilt\"") {
		t.Errorf("development output should be text, got %q", buf.String())
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filtering failed: %q", buf.String())
	}
}

func TestGetInitializesOnce(t *testing.T) {
	defaultLogger = nil
	defer func() { defaultLogger = nil }()

	l := Get()
	if l == nil {
		t.Fatal("Get() should return a logger")
	}
	if l2 := Get(); l != l2 {
		t.Error("Get() should return the same logger instance")
	}
}

func TestContextLoggingIncludesIDs(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	defer func() { defaultLogger = nil }()

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithNodeID(ctx, "node-7")

	fns := map[string]func(context.Context, string, ...any){
		"debug": DebugContext,
		"info":  InfoContext,
		"warn":  WarnContext,
		"error": ErrorContext,
	}
	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			buf.Reset()
			fn(ctx, name+" message")
			out := buf.String()
			for _, want := range []string{name + " message", "request_id=req-1", "node_id=node-7"} {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %q", out, want)
				}
			}
		})
	}
}

func TestPlainLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	defer func() { defaultLogger = nil }()

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	WithComponent("layout").Info("c")
	out := buf.String()
	for _, want := range []string{"msg=d", "msg=i", "msg=w", "msg=e", "component=layout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
