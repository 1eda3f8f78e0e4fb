package helper

import (
	"bytes"
	stdlog "log"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupLoggerCapturesStandardLog(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
		stdlog.SetOutput(os.Stderr)
		stdlog.SetFlags(stdlog.LstdFlags)
	})

	var buf bytes.Buffer
	SetupLogger("info", &buf)
	stdlog.Printf("[WARN] created a chunk with size of %v", 5)

	if !strings.Contains(buf.String(), "created a chunk with size of 5") {
		t.Errorf("standard log output not captured: %q", buf.String())
	}
}
