package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWriterJSONCarriesComponentAndCall(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: "debug", Format: "json"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := WithCall("call-controller", "call_1")
	logger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "call-controller" || line["callId"] != "call_1" || line["service"] != "olivia" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestInitWriterInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: "loud"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}

	logger := WithComponent("x")
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}
}
