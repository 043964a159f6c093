package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"patemon/model"

	"gorm.io/gorm"
)

// setupTestDB creates an in-memory database with the full schema applied.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := OpenDatabase("file::memory:")
	require.NoError(t, err)
	require.NoError(t, CreateSchema(conn, zap.NewNop().Sugar()))
	t.Cleanup(func() {
		require.NoError(t, CloseDatabase(conn))
	})
	return conn
}

func TestEnsureSession(t *testing.T) {
	t.Run("creates pate and session on an empty database", func(t *testing.T) {
		store := NewSQLStore(setupTestDB(t))

		id, err := store.EnsureSession()
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		pateCount, err := store.CountRows("pate")
		require.NoError(t, err)
		assert.Equal(t, int64(1), pateCount)
	})

	t.Run("returns the first existing session", func(t *testing.T) {
		conn := setupTestDB(t)
		store := NewSQLStore(conn)

		pate := model.Pate{IDMin: 100, IDMax: 200, Label: "EM unit"}
		require.NoError(t, store.CreatePate(&pate))
		sess := model.TestingSession{Started: "2026-08-26 10:00:00", PateID: pate.ID, PateFirmware: "1.0.4"}
		require.NoError(t, conn.Create(&sess).Error)

		id, err := store.EnsureSession()
		require.NoError(t, err)
		assert.Equal(t, sess.ID, id)

		// No second session is created
		count, err := store.CountRows("testing_session")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("reuses an existing pate when only the session is missing", func(t *testing.T) {
		store := NewSQLStore(setupTestDB(t))

		pate := model.Pate{IDMin: 0, IDMax: 50, Label: "FM unit"}
		require.NoError(t, store.CreatePate(&pate))

		_, err := store.EnsureSession()
		require.NoError(t, err)

		count, err := store.CountRows("pate")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("is idempotent", func(t *testing.T) {
		store := NewSQLStore(setupTestDB(t))

		first, err := store.EnsureSession()
		require.NoError(t, err)
		second, err := store.EnsureSession()
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestNotes(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	sessionID, err := store.EnsureSession()
	require.NoError(t, err)

	first, err := store.AddNote(sessionID, "power cycled the unit")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = store.AddNote(sessionID, "calibration started")
	require.NoError(t, err)

	notes, err := store.ListNotes(sessionID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "power cycled the unit", notes[0].Text)
	assert.Equal(t, "calibration started", notes[1].Text)

	t.Run("other sessions see no notes", func(t *testing.T) {
		notes, err := store.ListNotes(sessionID + 1)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})
}

func TestPSU(t *testing.T) {
	t.Run("get before set reports not configured", func(t *testing.T) {
		store := NewSQLStore(setupTestDB(t))
		_, err := store.GetPSU()
		assert.ErrorIs(t, err, ErrPSUNotConfigured)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		store := NewSQLStore(setupTestDB(t))

		require.NoError(t, store.SetPSU(model.PSU{
			Power:          model.PowerOn,
			VoltageSetting: 3.3,
			CurrentLimit:   0.5,
		}))

		psu, err := store.GetPSU()
		require.NoError(t, err)
		assert.Equal(t, int64(0), psu.ID)
		assert.Equal(t, model.PowerOn, psu.Power)
		assert.Equal(t, 3.3, psu.VoltageSetting)
		assert.NotEmpty(t, psu.Modified)
	})

	t.Run("second set updates the singleton row", func(t *testing.T) {
		store := NewSQLStore(setupTestDB(t))

		require.NoError(t, store.SetPSU(model.PSU{Power: model.PowerOff}))
		require.NoError(t, store.SetPSU(model.PSU{Power: model.PowerOn, VoltageSetting: 5.0}))

		psu, err := store.GetPSU()
		require.NoError(t, err)
		assert.Equal(t, model.PowerOn, psu.Power)
		assert.Equal(t, 5.0, psu.VoltageSetting)

		count, err := store.CountRows("psu")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestRecordCommand(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	sessionID, err := store.EnsureSession()
	require.NoError(t, err)

	cmd := model.Command{
		SessionID: sessionID,
		Interface: "psu",
		Command:   "set voltage",
		Value:     "3.3",
	}
	require.NoError(t, store.RecordCommand(&cmd))
	assert.NotZero(t, cmd.ID)

	var stored model.Command
	require.NoError(t, store.db.First(&stored, cmd.ID).Error)
	assert.Equal(t, "set voltage", stored.Command)
	assert.NotEmpty(t, stored.Created)
	assert.Nil(t, stored.Handled)
	assert.Nil(t, stored.Result)
}

func TestPing(t *testing.T) {
	store := NewSQLStore(setupTestDB(t))
	assert.NoError(t, store.Ping(context.Background()))

	var uninitialized *SQLStore
	assert.Error(t, uninitialized.Ping(context.Background()))
}
