package citclog

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFilterDropsBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFilter(NewStdLogger(&buf), LevelWarn)

	logger.Log(LevelInfo, "msg", "should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("filter forwarded a below-threshold entry: %q", buf.String())
	}

	logger.Log(LevelError, "msg", "should pass")
	if !strings.Contains(buf.String(), "should pass") {
		t.Fatalf("filter dropped an at-or-above-threshold entry: %q", buf.String())
	}
}

func TestHelperFormatsAndTagsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewHelper(NewStdLogger(&buf))

	h.Infof("loaded %d sections", 3)

	out := buf.String()
	if !strings.Contains(out, "level=INFO") {
		t.Errorf("output missing level=INFO: %q", out)
	}
	if !strings.Contains(out, "loaded 3 sections") {
		t.Errorf("output missing formatted message: %q", out)
	}
}
