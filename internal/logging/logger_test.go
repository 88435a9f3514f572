package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "wallet", "debug"), "resolver")
	logger.Debug("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["service"] != "wallet" || line["component"] != "resolver" {
		t.Fatalf("unexpected attributes: %v", line)
	}
}

func TestNewWithWriterFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "", "verbose")
	logger.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be dropped at info level, got %s", buf.String())
	}
}
