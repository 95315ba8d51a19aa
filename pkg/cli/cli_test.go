package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfigErrorMessage(t *testing.T) {
	err := NewConfigError("comet.yaml", "missing providers")
	if !strings.Contains(err.Error(), "comet.yaml") {
		t.Errorf("message should name the path: %s", err.Error())
	}

	bare := NewConfigError("", "missing providers")
	if strings.Contains(bare.Error(), " in ") {
		t.Errorf("pathless message should omit location: %s", bare.Error())
	}
}

func TestCommandErrorUnwraps(t *testing.T) {
	cause := errors.New("listener busy")
	err := NewCommandError("run", cause)

	if !errors.Is(err, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "run") {
		t.Errorf("message should name the command: %s", err.Error())
	}
}

func TestFormatters(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, "hello"); err != nil {
		t.Fatalf("text format failed: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("unexpected text output: %q", buf.String())
	}

	buf.Reset()
	if err := NewFormatter(FormatJSON).FormatTo(&buf, map[string]int{"providers": 2}); err != nil {
		t.Fatalf("json format failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"providers": 2`) {
		t.Errorf("unexpected json output: %q", buf.String())
	}

	buf.Reset()
	if _, ok := NewFormatter("yaml").(*TextFormatter); !ok {
		t.Error("unknown format should fall back to text")
	}
}
