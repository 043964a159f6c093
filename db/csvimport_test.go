package db

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"patemon/model"
)

// sampleCSVRows builds a minimal Finnish-Excel style export: two header rows
// and n data rows of 30 semicolon-separated fields. Column 20 carries a
// quoted binary hit mask; columns 21..28 carry predictable decimal values
// (100*row + column).
func sampleCSVRows(n int) []string {
	header := make([]string, 30)
	for i := range header {
		header[i] = fmt.Sprintf("\"field %d\"", i)
	}
	rows := []string{
		strings.Join(header, ";"),
		strings.Join(header, ";"),
	}
	for r := 0; r < n; r++ {
		rows = append(rows, sampleCSVRow(r))
	}
	return rows
}

func sampleCSVRow(r int) string {
	fields := make([]string, 30)
	for i := 0; i < 20; i++ {
		fields[i] = fmt.Sprintf("x%d", i)
	}
	fields[20] = fmt.Sprintf("\"%08b\"", r+1)
	for i := 21; i <= 28; i++ {
		fields[i] = fmt.Sprintf("%d", 100*r+i)
	}
	fields[29] = "trailing"
	return strings.Join(fields, ";")
}

func TestImportPulseheights(t *testing.T) {
	conn := setupTestDB(t)
	store := NewSQLStore(conn)
	sessionID, err := store.EnsureSession()
	require.NoError(t, err)

	cfg := testFixtureConfig()
	cfg.CSVPath = writeSampleCSV(t, sampleCSVRows(4))

	n, err := ImportPulseheights(conn, sessionID, cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var rows []model.Pulseheight
	require.NoError(t, conn.Order("timestamp").Find(&rows).Error)
	require.Len(t, rows, 4)

	t.Run("values map to source columns 21..28", func(t *testing.T) {
		for r, row := range rows {
			base := int64(100 * r)
			assert.Equal(t, base+21, row.AC1)
			assert.Equal(t, base+22, row.D1A)
			assert.Equal(t, base+23, row.D1B)
			assert.Equal(t, base+24, row.D1C)
			assert.Equal(t, base+25, row.D2A)
			assert.Equal(t, base+26, row.D2B)
			assert.Equal(t, base+27, row.D3)
			assert.Equal(t, base+28, row.AC2)
			assert.Equal(t, sessionID, row.SessionID)
		}
	})

	t.Run("timestamps ascend by the configured interval", func(t *testing.T) {
		for i := 1; i < len(rows); i++ {
			assert.Equal(t, cfg.PulseheightInterval, rows[i].Timestamp-rows[i-1].Timestamp)
		}
	})
}

func TestImportPulseheightsRejectsBadInput(t *testing.T) {
	conn := setupTestDB(t)
	store := NewSQLStore(conn)
	sessionID, err := store.EnsureSession()
	require.NoError(t, err)
	log := zap.NewNop().Sugar()

	t.Run("malformed hit mask", func(t *testing.T) {
		rows := sampleCSVRows(1)
		rows[2] = strings.Replace(rows[2], "\"00000001\"", "\"00000021\"", 1)
		cfg := testFixtureConfig()
		cfg.CSVPath = writeSampleCSV(t, rows)

		_, err := ImportPulseheights(conn, sessionID, cfg, log)
		assert.ErrorContains(t, err, "column 20")
	})

	t.Run("row with too few columns", func(t *testing.T) {
		rows := sampleCSVRows(1)
		rows[2] = "a;b;c"
		cfg := testFixtureConfig()
		cfg.CSVPath = writeSampleCSV(t, rows)

		_, err := ImportPulseheights(conn, sessionID, cfg, log)
		assert.ErrorContains(t, err, "columns")
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := testFixtureConfig()
		cfg.CSVPath = "/nonexistent/sample.csv"

		_, err := ImportPulseheights(conn, sessionID, cfg, log)
		assert.Error(t, err)
	})

	t.Run("header-only file imports nothing", func(t *testing.T) {
		cfg := testFixtureConfig()
		cfg.CSVPath = writeSampleCSV(t, sampleCSVRows(0))

		n, err := ImportPulseheights(conn, sessionID, cfg, log)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// parsePulseheightRecord is exercised directly for the base-2 mask handling.
func TestParsePulseheightRecord(t *testing.T) {
	record := make([]string, 30)
	record[20] = "00001111"
	for i := 21; i <= 28; i++ {
		record[i] = "7"
	}

	values, err := parsePulseheightRecord(record)
	require.NoError(t, err)
	assert.Equal(t, int64(15), values[0])
	for _, v := range values[1:] {
		assert.Equal(t, int64(7), v)
	}
}
