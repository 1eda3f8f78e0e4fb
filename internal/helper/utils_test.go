package helper

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	if err != nil {
		t.Fatalf("GenerateUUID: %v", err)
	}
	b, _ := GenerateUUID()
	if a == b {
		t.Errorf("two calls returned the same id %q", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("%q is not a uuid: %v", a, err)
	}
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyPrint(&buf, map[string]int{"vectors": 3}); err != nil {
		t.Fatalf("PrettyPrint: %v", err)
	}
	if got := buf.String(); got != "{\n  \"vectors\": 3\n}\n" {
		t.Errorf("got %q", got)
	}
}

func TestPrettyPrintUnsupportedValue(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyPrint(&buf, make(chan int)); err == nil {
		t.Error("expected an error for a channel")
	}
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	SetupLogger("warn", &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected log output %q", out)
	}

	SetupLogger("nonsense", &buf)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", zerolog.GlobalLevel())
	}
}
