package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)

	// Missing names load as empty, not as an error.
	blob, err := s.LoadJSON("grid_BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, blob)

	in := map[string]any{"step": 2.5, "pos": 3.0, "note": "resumed"}
	require.NoError(t, s.SaveJSON("grid_BTCUSDT", in))

	out, err := s.LoadJSON("grid_BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// Overwrite replaces the whole blob.
	require.NoError(t, s.SaveJSON("grid_BTCUSDT", map[string]any{"step": 1.0}))
	out, err = s.LoadJSON("grid_BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"step": 1.0}, out)
}

func TestFileSanitizesNames(t *testing.T) {
	s, err := NewFile(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.SaveJSON("../escape/attempt", map[string]any{"x": 1.0}))
	out, err := s.LoadJSON("../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1.0}, out)
}

func TestMemoryIsolatesCallers(t *testing.T) {
	s := NewMemory()
	in := map[string]any{"a": 1.0}
	require.NoError(t, s.SaveJSON("x", in))
	in["a"] = 2.0

	out, err := s.LoadJSON("x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, out["a"])

	out["a"] = 3.0
	again, err := s.LoadJSON("x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again["a"])
}
