package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("Warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestZeroLogger_FieldsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(zerolog.InfoLevel, &buf)
	ctx := context.Background()

	l.Info(ctx, "zone detected", map[string]interface{}{"symbol": "ETHUSDT", "touches": 4})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "zone detected", entry["message"])
	assert.Equal(t, "ETHUSDT", entry["symbol"])
	assert.Equal(t, float64(4), entry["touches"])

	// Debug is below the configured level and is dropped.
	buf.Reset()
	l.Debug(ctx, "noise")
	assert.Empty(t, buf.Bytes())

	buf.Reset()
	l.Error(ctx, errors.New("boom"), "fetch failed")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}
