package reservation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/factoryccu/core/model"
	"github.com/kilianp07/factoryccu/infra/logger"
)

type fleetSize int

func (f fleetSize) Count() int { return int(f) }

type onlineSet map[string]bool

func (o onlineSet) Connected(serial string) bool { return o[serial] }

func loads(types ...model.WorkpieceType) []model.ModuleLoad {
	out := make([]model.ModuleLoad, len(types))
	for i, t := range types {
		out[i] = model.ModuleLoad{Type: t, Position: string(rune('A' + i))}
	}
	return out
}

func TestReserveWorkpiece_LastTwoUnits(t *testing.T) {
	a := NewArbiter(Config{}, nil, fleetSize(2), logger.NopLogger{})
	a.UpdateInventory("HBW-1", loads(model.WorkpieceRed, model.WorkpieceRed, model.WorkpieceBlue))

	w1, err := a.ReserveWorkpiece("job-1", model.WorkpieceRed)
	require.NoError(t, err)
	w2, err := a.ReserveWorkpiece("job-2", model.WorkpieceRed)
	require.NoError(t, err)
	assert.Equal(t, "HBW-1", w1)
	assert.Equal(t, "HBW-1", w2)

	_, err = a.ReserveWorkpiece("job-3", model.WorkpieceRed)
	assert.True(t, errors.Is(err, ErrNoStock))
	_, ok := a.Reservation(KindStock, "job-3")
	assert.False(t, ok)
	assert.Equal(t, 0, a.Available(model.WorkpieceRed))
	assert.Equal(t, 1, a.Available(model.WorkpieceBlue))
}

func TestReserveWorkpiece_IdempotentAndConflict(t *testing.T) {
	a := NewArbiter(Config{}, nil, nil, logger.NopLogger{})
	a.UpdateInventory("HBW-1", loads(model.WorkpieceWhite, model.WorkpieceBlue))

	w, err := a.ReserveWorkpiece("job-1", model.WorkpieceWhite)
	require.NoError(t, err)
	again, err := a.ReserveWorkpiece("job-1", model.WorkpieceWhite)
	require.NoError(t, err)
	assert.Equal(t, w, again)
	assert.Len(t, a.Reservations(), 1)

	_, err = a.ReserveWorkpiece("job-1", model.WorkpieceBlue)
	assert.True(t, errors.Is(err, ErrReservationConflict))
	r, _ := a.Reservation(KindStock, "job-1")
	assert.Equal(t, model.WorkpieceWhite, r.Type, "conflict never overwrites")
}

func TestRelease_ExactlyOnce(t *testing.T) {
	a := NewArbiter(Config{}, nil, nil, logger.NopLogger{})
	a.UpdateInventory("HBW-1", loads(model.WorkpieceBlue))

	_, err := a.ReserveWorkpiece("job-1", model.WorkpieceBlue)
	require.NoError(t, err)
	_, err = a.ReserveWorkpiece("job-2", model.WorkpieceBlue)
	require.Error(t, err)

	assert.True(t, a.Release("job-1"))
	assert.False(t, a.Release("job-1"))
	assert.Equal(t, 1, a.Available(model.WorkpieceBlue))

	_, err = a.ReserveWorkpiece("job-2", model.WorkpieceBlue)
	assert.NoError(t, err)
}

func TestReserveEmptyBay(t *testing.T) {
	cfg := Config{Warehouses: map[string]Capacity{"HBW-1": {model.WorkpieceRed: 2}}}
	a := NewArbiter(cfg, nil, nil, logger.NopLogger{})
	a.UpdateInventory("HBW-1", loads(model.WorkpieceRed))

	w, err := a.ReserveEmptyBay("job-1", model.WorkpieceRed)
	require.NoError(t, err)
	assert.Equal(t, "HBW-1", w)

	_, err = a.ReserveEmptyBay("job-2", model.WorkpieceRed)
	assert.True(t, errors.Is(err, ErrNoFreeBay), "one physically occupied, one reserved")

	_, err = a.ReserveEmptyBay("job-3", model.WorkpieceBlue)
	assert.True(t, errors.Is(err, ErrNoFreeBay), "no bays configured for blue")

	// stock and bay reservations are independent kinds
	_, err = a.ReserveWorkpiece("job-1", model.WorkpieceRed)
	assert.NoError(t, err)
	assert.Len(t, a.Reservations(), 2)
	assert.True(t, a.Release("job-1"))
	assert.Empty(t, a.Reservations())
}

func TestWarehouseChoice(t *testing.T) {
	t.Run("balances with several vehicles", func(t *testing.T) {
		a := NewArbiter(Config{}, nil, fleetSize(3), logger.NopLogger{})
		a.UpdateInventory("HBW-1", loads(model.WorkpieceBlue, model.WorkpieceBlue))
		a.UpdateInventory("HBW-2", loads(model.WorkpieceBlue, model.WorkpieceBlue))

		first, err := a.ReserveWorkpiece("j1", model.WorkpieceBlue)
		require.NoError(t, err)
		second, err := a.ReserveWorkpiece("j2", model.WorkpieceBlue)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("sticks with a single vehicle", func(t *testing.T) {
		a := NewArbiter(Config{}, nil, fleetSize(1), logger.NopLogger{})
		a.UpdateInventory("HBW-1", loads(model.WorkpieceBlue, model.WorkpieceBlue))
		a.UpdateInventory("HBW-2", loads(model.WorkpieceBlue, model.WorkpieceBlue, model.WorkpieceBlue))

		first, err := a.ReserveWorkpiece("j1", model.WorkpieceBlue)
		require.NoError(t, err)
		second, err := a.ReserveWorkpiece("j2", model.WorkpieceBlue)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("skips ineligible warehouses", func(t *testing.T) {
		a := NewArbiter(Config{}, onlineSet{"HBW-2": true}, fleetSize(2), logger.NopLogger{})
		a.UpdateInventory("HBW-1", loads(model.WorkpieceBlue, model.WorkpieceBlue))
		a.UpdateInventory("HBW-2", loads(model.WorkpieceBlue))

		w, err := a.ReserveWorkpiece("j1", model.WorkpieceBlue)
		require.NoError(t, err)
		assert.Equal(t, "HBW-2", w)
		_, err = a.ReserveWorkpiece("j2", model.WorkpieceBlue)
		assert.True(t, errors.Is(err, ErrNoStock))
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	assert.Equal(t, 3, cfg.DefaultBaysPerType)
	assert.NoError(t, cfg.Validate())

	cfg.Warehouses = map[string]Capacity{"HBW-1": {"GREEN": 1}}
	assert.Error(t, cfg.Validate())
	cfg.Warehouses = map[string]Capacity{"HBW-1": {model.WorkpieceRed: -1}}
	assert.Error(t, cfg.Validate())
}
