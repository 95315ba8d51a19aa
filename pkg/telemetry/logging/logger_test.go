package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hello", "key", "value")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("Expected log output, got %q", buf.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("Expected error for invalid level")
	}
}

func TestNew_InvalidFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatal("Expected error for invalid format")
	}
}

func TestLogger_RedactsAPIKey(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, Redact: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("fetching", "url", "https://api.example.com/find?api_key=sekret123&q=tt001")

	out := buf.String()
	if strings.Contains(out, "sekret123") {
		t.Errorf("API key leaked into log output: %s", out)
	}
	if !strings.Contains(out, "***") {
		t.Errorf("Expected redaction marker in output: %s", out)
	}
}

func TestLogger_RedactsBearerToken(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, Redact: true})

	logger.Warn("upstream rejected", "auth", "Bearer abc.def.ghi")

	if strings.Contains(buf.String(), "abc.def.ghi") {
		t.Errorf("Bearer token leaked into log output: %s", buf.String())
	}
}

func TestLogger_RedactsErrorValues(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, Redact: true})

	logger.Error("call failed", "error", errors.New("GET /find?api_key=sekret123: timeout"))

	if strings.Contains(buf.String(), "sekret123") {
		t.Errorf("API key leaked via error value: %s", buf.String())
	}
}

func TestLogger_RedactsWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, Redact: true})

	scoped := logger.With("token", "Bearer topsecret")
	scoped.Info("scoped log")

	if strings.Contains(buf.String(), "topsecret") {
		t.Errorf("Token leaked via With attrs: %s", buf.String())
	}
}

func TestLogger_NoRedactionWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf, Redact: false})

	logger.Info("debug run", "url", "https://api.example.com/find?api_key=visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("Expected raw value with redaction disabled: %s", buf.String())
	}
}

func TestRedactor_CustomPattern(t *testing.T) {
	r := NewRedactor([]CustomPattern{
		{Name: "session", Pattern: `sess-[0-9]+`, Replacement: "sess-***"},
	})

	got := r.Redact("cookie sess-12345 expired")
	if got != "cookie sess-*** expired" {
		t.Errorf("Custom pattern not applied: %q", got)
	}
}

func TestRedactor_SkipsInvalidCustomPattern(t *testing.T) {
	r := NewRedactor([]CustomPattern{
		{Name: "bad", Pattern: `([`, Replacement: "x"},
	})

	// Built-in patterns still work.
	if got := r.Redact("Bearer tok123"); strings.Contains(got, "tok123") {
		t.Errorf("Built-in patterns broken by invalid custom pattern: %q", got)
	}
}
