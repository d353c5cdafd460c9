package logging

import (
	"log/slog"
	"testing"
)

func TestNewSelectsHandlerByFormat(t *testing.T) {
	if _, ok := New("info", "text").Handler().(*slog.TextHandler); !ok {
		t.Fatal("text format did not produce a text handler")
	}
	if _, ok := New("info", "json").Handler().(*slog.JSONHandler); !ok {
		t.Fatal("json format did not produce a json handler")
	}
	if _, ok := New("info", "").Handler().(*slog.JSONHandler); !ok {
		t.Fatal("default format should be json")
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Leveler{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
