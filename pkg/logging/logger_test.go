package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// keepGlobalLevel restores the global level Setup changes.
func keepGlobalLevel(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}
}

func TestSetup(t *testing.T) {
	keepGlobalLevel(t)
	tests := []struct {
		name   string
		config Config
		json   bool
	}{
		{"json", Config{Level: LevelInfo}, true},
		{"pretty", Config{Level: LevelInfo, Pretty: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.config.Output = buf

			logger := Setup(tt.config)
			logger.Info().Msg("pager started")

			output := buf.String()
			if !strings.Contains(output, "pager started") {
				t.Errorf("Expected output to contain message, got %q", output)
			}
			if got := json.Valid(bytes.TrimSpace(buf.Bytes())); got != tt.json {
				t.Errorf("json.Valid(output) = %v, want %v: %q", got, tt.json, output)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	keepGlobalLevel(t)
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelWarn,
		Output: buf,
	})

	logger := NewLogger("cache")
	logger.Debug().Msg("memory cache hit")
	logger.Warn().Msg("persistence error absorbed")

	output := buf.String()
	if !strings.Contains(output, `"component":"cache"`) {
		t.Errorf("Expected output to contain the component, got %q", output)
	}
	if strings.Contains(output, "memory cache hit") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "persistence error absorbed") {
		t.Error("Warn message should be included at Warn level")
	}
}

func TestWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	base := zerolog.New(buf).With().Str("pager_id", "p1").Logger()

	logger := WithComponent(base, "queue")
	logger.Info().Msg("enqueued")

	output := buf.String()
	for _, want := range []string{`"pager_id":"p1"`, `"component":"queue"`, "enqueued"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got %q", want, output)
		}
	}
}

// TestContextFields checks that the documented context fields come out as
// flat JSON strings on every component logger of one pager.
func TestContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := zerolog.New(buf).With().Str("pager_id", "7f9c").Logger()
	params := paging.LoadParams[int]{Key: 20, Size: 10, Direction: paging.Prepend, Strategy: paging.SkipCache}

	tests := []struct {
		name      string
		component string
		emit      func(zerolog.Logger)
		want      map[string]string
	}{
		{
			name:      "load succeeded",
			component: "loading",
			emit: func(l zerolog.Logger) {
				l.Debug().Str("params", params.String()).Str("origin", paging.OriginNetwork.String()).Msg("Load succeeded")
			},
			want: map[string]string{"params": "prepend:20:skip_cache:10", "origin": "network"},
		},
		{
			name:      "memory hit",
			component: "cache",
			emit: func(l zerolog.Logger) {
				l.Debug().Str("origin", paging.OriginMemoryCache.String()).Msg("Memory cache hit")
			},
			want: map[string]string{"origin": "memory_cache"},
		},
		{
			name:      "request dropped",
			component: "queue",
			emit: func(l zerolog.Logger) {
				l.Warn().Err(errors.New("load invalidated")).Str("params", params.String()).Msg("Load not started")
			},
			want: map[string]string{"params": "prepend:20:skip_cache:10", "error": "load invalidated", "level": "warn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.emit(WithComponent(base, tt.component))

			var fields map[string]any
			if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
				t.Fatalf("invalid JSON line %q: %v", buf.String(), err)
			}
			want := map[string]string{"pager_id": "7f9c", "component": tt.component}
			for k, v := range tt.want {
				want[k] = v
			}
			for k, v := range want {
				if got, _ := fields[k].(string); got != v {
					t.Errorf("field %q = %v, want %q", k, fields[k], v)
				}
			}
		})
	}
}
