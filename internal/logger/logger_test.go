package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug().Msg("hidden")
	log.Info().Str("driver", "88d4266f...").Msg("login succeeded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "login succeeded", entry["message"])
	require.Equal(t, "88d4266f...", entry["driver"])
	require.Contains(t, entry, "time")
}

func TestNewDevWritesConsoleAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug().Msg("directory request")

	require.Contains(t, buf.String(), "directory request")
	require.Contains(t, buf.String(), "DBG")
}
