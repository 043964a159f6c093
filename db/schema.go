package db

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sector and channel geometry of the PATE instrument. One rotation is divided
// into 36 ten-degree sectors plus the sun-pointing sector (index 0); every
// sector carries the same set of energy-channel counters.
const (
	SectorCount      = 37
	ProtonChannels   = 12
	ElectronChannels = 8
)

// Telescope column prefixes: st = sun-pointing, rt = rotating.
var telescopes = [2]string{"st", "rt"}

// StatementError carries the SQL text of a failed DDL/DML statement so the
// operator sees exactly what the engine rejected.
type StatementError struct {
	Stmt string
	Err  error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%v\nstatement:\n%s", e.Err, e.Stmt)
}

func (e *StatementError) Unwrap() error { return e.Err }

// HitcountDataColumns returns the data columns of the hitcount table in
// creation order: per sector, proton channels p01..p12 then electron channels
// e01..e08; then per telescope the AC, D1 pattern, D2 pattern and trash
// counters. The order is an external contract, downstream consumers bind to
// it positionally.
func HitcountDataColumns() []string {
	cols := make([]string, 0, SectorCount*(ProtonChannels+ElectronChannels)+2*9)
	for sector := 0; sector < SectorCount; sector++ {
		for proton := 1; proton <= ProtonChannels; proton++ {
			cols = append(cols, fmt.Sprintf("s%02dp%02d", sector, proton))
		}
		for electron := 1; electron <= ElectronChannels; electron++ {
			cols = append(cols, fmt.Sprintf("s%02de%02d", sector, electron))
		}
	}
	for _, t := range telescopes {
		for ac := 1; ac <= 2; ac++ {
			cols = append(cols, fmt.Sprintf("%sac%d", t, ac))
		}
		for d1 := 1; d1 <= 4; d1++ {
			cols = append(cols, fmt.Sprintf("%sd1p%d", t, d1))
		}
		cols = append(cols, t+"d2p1")
		for trash := 1; trash <= 2; trash++ {
			cols = append(cols, fmt.Sprintf("%strash%d", t, trash))
		}
	}
	return cols
}

// HousekeepingDataColumns returns the housekeeping data columns in creation
// order: one sun-pointing (s_c) and one rotating (r_c) counter per index,
// interleaved.
func HousekeepingDataColumns() []string {
	cols := make([]string, 0, 2*SectorCount)
	for c := 0; c < SectorCount; c++ {
		cols = append(cols, fmt.Sprintf("s_c%02d", c))
		cols = append(cols, fmt.Sprintf("r_c%02d", c))
	}
	return cols
}

const pateDDL = `
CREATE TABLE pate
(
    id          INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    id_min      INTEGER NOT NULL,
    id_max      INTEGER NOT NULL,
    label       TEXT NOT NULL
)`

const testingSessionDDL = `
CREATE TABLE testing_session
(
    id              INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    started         DATETIME,
    pate_id         INTEGER NOT NULL,
    pate_firmware   TEXT NOT NULL,
    FOREIGN KEY (pate_id) REFERENCES pate (id)
)`

const pulseheightDDL = `
CREATE TABLE pulseheight
(
    timestamp       INTEGER NOT NULL DEFAULT CURRENT_TIME PRIMARY KEY,
    session_id      INTEGER NOT NULL,
    ac1             INTEGER NOT NULL,
    d1a             INTEGER NOT NULL,
    d1b             INTEGER NOT NULL,
    d1c             INTEGER NOT NULL,
    d2a             INTEGER NOT NULL,
    d2b             INTEGER NOT NULL,
    d3              INTEGER NOT NULL,
    ac2             INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES testing_session (id)
)`

const registerDDL = `
CREATE TABLE register
(
    pate_id         INTEGER NOT NULL,
    retrieved       DATETIME NOT NULL,
    reg01           INTEGER NOT NULL,
    reg02           INTEGER NOT NULL,
    FOREIGN KEY (pate_id) REFERENCES pate (id)
)`

const noteDDL = `
CREATE TABLE note
(
    id              INTEGER     NOT NULL PRIMARY KEY AUTOINCREMENT,
    session_id      INTEGER     NOT NULL,
    text            TEXT            NULL,
    created         INTEGER     NOT NULL DEFAULT (strftime('%s', 'now')),
    FOREIGN KEY (session_id) REFERENCES testing_session (id)
)`

const commandDDL = `
CREATE TABLE command
(
    id              INTEGER         NOT NULL PRIMARY KEY AUTOINCREMENT,
    session_id      INTEGER         NOT NULL,
    interface       TEXT            NOT NULL,
    command         TEXT            NOT NULL,
    value           TEXT            NOT NULL,
    created         TIMESTAMP       NOT NULL DEFAULT CURRENT_TIMESTAMP,
    handled         DATETIME            NULL,
    result          TEXT                NULL,
    FOREIGN KEY (session_id) REFERENCES testing_session (id)
)`

const psuDDL = `
CREATE TABLE psu
(
    id                  INTEGER         NOT NULL DEFAULT 0 PRIMARY KEY,
    power               TEXT            NOT NULL,
    voltage_setting     REAL            NOT NULL,
    current_limit       REAL            NOT NULL,
    measured_current    REAL            NOT NULL,
    measured_voltage    REAL            NOT NULL,
    modified            INTEGER         NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT          single_row_chk  CHECK (id = 0),
    CONSTRAINT          power_chk       CHECK (power IN ('ON', 'OFF'))
)`

// SQLite has no CREATE OR REPLACE TRIGGER.
const psuTriggerDDL = `
CREATE TRIGGER psu_ari
AFTER UPDATE ON psu
FOR EACH ROW
BEGIN
    UPDATE psu
    SET    modified = CURRENT_TIMESTAMP
    WHERE  id = old.id;
END`

// wideTableDDL assembles a CREATE TABLE for the flat telemetry tables: a
// timestamp primary key, a session reference and one INTEGER NOT NULL column
// per counter.
func wideTableDDL(table string, dataCols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s\n(\n", table)
	b.WriteString("    timestamp       INTEGER NOT NULL DEFAULT CURRENT_TIME PRIMARY KEY,\n")
	b.WriteString("    session_id      INTEGER NOT NULL,\n")
	for _, col := range dataCols {
		fmt.Fprintf(&b, "    %s INTEGER NOT NULL,\n", col)
	}
	b.WriteString("    FOREIGN KEY (session_id) REFERENCES testing_session (id)\n)")
	return b.String()
}

type schemaObject struct {
	Name string
	SQL  string
}

// schemaObjects returns every DDL statement in creation order. The flat
// hitcount table exceeds a thousand columns by design; the SQLite default
// column limit is 2000.
func schemaObjects() []schemaObject {
	return []schemaObject{
		{"pate", pateDDL},
		{"testing_session", testingSessionDDL},
		{"hitcount", wideTableDDL("hitcount", HitcountDataColumns())},
		{"pulseheight", pulseheightDDL},
		{"register", registerDDL},
		{"note", noteDDL},
		{"command", commandDDL},
		{"psu", psuDDL},
		{"psu_ari", psuTriggerDDL},
		{"housekeeping", wideTableDDL("housekeeping", HousekeepingDataColumns())},
	}
}

// CreateSchema executes the DDL statements in their fixed order. The first
// failure aborts the run; the partially created file is left for a --force
// rerun to replace.
func CreateSchema(conn *gorm.DB, log *zap.SugaredLogger) error {
	for _, obj := range schemaObjects() {
		if err := conn.Exec(obj.SQL).Error; err != nil {
			return fmt.Errorf("create %s: %w", obj.Name, &StatementError{Stmt: obj.SQL, Err: err})
		}
		log.Debugf("created %s", obj.Name)
	}
	log.Info("database schema created")
	return nil
}

// insertStatement builds a positional INSERT for a flat telemetry table,
// binding timestamp and session_id ahead of the data columns. Column order
// comes from the same generators as the DDL, so the two always agree.
func insertStatement(table string, dataCols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (timestamp, session_id, ", table)
	b.WriteString(strings.Join(dataCols, ","))
	b.WriteString(") VALUES (?, ?, ")
	for i := range dataCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}
