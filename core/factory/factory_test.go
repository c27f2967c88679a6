package factory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archive struct {
	Path     string
	Interval time.Duration
	Backups  int
}

type archiveConf struct {
	Path     string        `json:"path"`
	Interval time.Duration `json:"interval"`
	Backups  int           `json:"backups"`
}

func archiveRegistry(t *testing.T) *Registry[*archive] {
	t.Helper()
	reg := NewRegistry[*archive]()
	require.NoError(t, reg.Register("file", func(conf map[string]any) (*archive, error) {
		var c archiveConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, errors.New("path is required")
		}
		return &archive{Path: c.Path, Interval: c.Interval, Backups: c.Backups}, nil
	}))
	return reg
}

func TestRegistry_Create(t *testing.T) {
	reg := archiveRegistry(t)
	inst, err := reg.Create(ModuleConfig{Type: "file", Conf: map[string]any{"path": "jobs.db", "interval": "30s", "backups": "3"}})
	require.NoError(t, err)
	assert.Equal(t, "jobs.db", inst.Path)
	assert.Equal(t, 30*time.Second, inst.Interval)
	assert.Equal(t, 3, inst.Backups)
}

func TestRegistry_FactoryErrorNamesType(t *testing.T) {
	reg := archiveRegistry(t)
	_, err := reg.Create(ModuleConfig{Type: "file"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file: path is required")

	_, err = reg.Create(ModuleConfig{Type: "file", Conf: map[string]any{"path": "p", "pth": "typo"}})
	assert.Error(t, err, "unknown keys are rejected")
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("y", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := reg.Register("", func(map[string]any) (int, error) { return 0, nil }); err == nil {
		t.Fatal("expected empty name error")
	}
	_, err := reg.Create(ModuleConfig{Type: "z"})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected unknown type, got %v", err)
	}
	assert.Contains(t, err.Error(), "registered: x")
	assert.Equal(t, []string{"x"}, reg.Types())
}
