package errutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogError_Oops(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("NOT_FOUND").With("map_id", "m1").Errorf("map not found")
	LogError(logger, "command failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "command failed", entry["msg"])
	assert.Equal(t, "NOT_FOUND", entry["code"])
	assert.Contains(t, entry["error"], "map not found")
}

func TestLogError_Plain(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogError(logger, "command failed", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "code")
}

func TestHasCode(t *testing.T) {
	err := oops.Code("VALIDATION_FAILED").Errorf("bad latitude")
	assert.True(t, HasCode(err, "VALIDATION_FAILED"))
	assert.False(t, HasCode(err, "NOT_FOUND"))
	assert.False(t, HasCode(errors.New("plain"), "NOT_FOUND"))
	assert.False(t, HasCode(nil, "NOT_FOUND"))
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.Code("NOT_FOUND").With("kind", "marker").Errorf("missing")
	AssertErrorCode(t, err, "NOT_FOUND")
	AssertErrorContext(t, err, "kind", "marker")
}
