package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/factoryccu/core/factory"
)

func TestNewStore(t *testing.T) {
	s, err := NewStore(factory.ModuleConfig{})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	path := filepath.Join(t.TempDir(), "h.jsonl")
	s, err = NewStore(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": path}})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = NewStore(factory.ModuleConfig{Type: "rotating", Conf: map[string]any{"path": path, "max_backups": 2}})
	require.NoError(t, err)
	require.IsType(t, &RotatingJSONLStore{}, s)
	assert.Equal(t, 10, s.(*RotatingJSONLStore).logger.MaxSize)
	_ = s.Close()

	_, err = NewStore(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{}})
	assert.Error(t, err)
	_, err = NewStore(factory.ModuleConfig{Type: "postgres"})
	assert.Error(t, err)
}
