package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"job": "j1"})
	l.Warnf("warn")
	l.Errorf("error")
	l.With(map[string]any{"vehicle": "FTS-1"}).Infof("child")
}

func TestSetFileMirrorsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ccu.log")
	SetFile(FileOptions{Path: path, MaxSizeMB: 1})
	l := New("dispatch_engine").With(map[string]any{"vehicle": "FTS-1"})
	l.Infow("job accepted", map[string]any{"job": "j1"})
	SetFile(FileOptions{})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"dispatch_engine"`)
	assert.Contains(t, string(data), `"vehicle":"FTS-1"`)
	assert.Contains(t, string(data), `"job":"j1"`)
	assert.Contains(t, string(data), "job accepted")
}

func TestNopLoggerWith(t *testing.T) {
	var l Logger = NopLogger{}
	l.With(map[string]any{"k": "v"}).Infow("ignored", nil)
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("info") }()
	assert.NoError(t, SetLevel("debug"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.NoError(t, SetLevel(""))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	assert.Error(t, SetLevel("loud"))
}
