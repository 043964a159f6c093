package model

import (
	"database/sql/driver"
	"fmt"
)

// PowerState is the commanded state of the bench power supply.
type PowerState string

const (
	PowerOn  PowerState = "ON"
	PowerOff PowerState = "OFF"
)

// IsValid returns true if PowerState is known
func (p PowerState) IsValid() bool {
	switch p {
	case PowerOn, PowerOff:
		return true
	}
	return false
}

func (p *PowerState) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*p = PowerState(v)
	case []byte:
		*p = PowerState(v)
	default:
		return fmt.Errorf("cannot scan %T into PowerState", value)
	}
	return nil
}

func (p PowerState) Value() (driver.Value, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid PowerState %q", p)
	}
	return string(p), nil
}

// A Pate identifies a physical instrument under test. Units carry a unique
// identification resistor on a designated ADC channel; a unit whose reading
// falls inside [IDMin, IDMax] is the one named by Label.
type Pate struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement"`
	IDMin int64  `gorm:"column:id_min;not null"`
	IDMax int64  `gorm:"column:id_max;not null"`
	Label string `gorm:"column:label;not null"`
}

func (Pate) TableName() string { return "pate" }

// A TestingSession is one test run against a single instrument. Firmware may
// change between sessions, so the version reported by the instrument is
// recorded here.
type TestingSession struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Started      string `gorm:"column:started"`
	PateID       int64  `gorm:"column:pate_id;not null"`
	PateFirmware string `gorm:"column:pate_firmware;not null"`
}

func (TestingSession) TableName() string { return "testing_session" }

// A Pulseheight row is one calibration sample: raw ADC pulse heights from the
// detector disks, keyed by sample time.
type Pulseheight struct {
	Timestamp int64 `gorm:"column:timestamp;primaryKey"`
	SessionID int64 `gorm:"column:session_id;not null"`
	AC1       int64 `gorm:"column:ac1;not null"`
	D1A       int64 `gorm:"column:d1a;not null"`
	D1B       int64 `gorm:"column:d1b;not null"`
	D1C       int64 `gorm:"column:d1c;not null"`
	D2A       int64 `gorm:"column:d2a;not null"`
	D2B       int64 `gorm:"column:d2b;not null"`
	D3        int64 `gorm:"column:d3;not null"`
	AC2       int64 `gorm:"column:ac2;not null"`
}

func (Pulseheight) TableName() string { return "pulseheight" }

// A Register row is a point-in-time snapshot of instrument registers,
// letting the UI show them without issuing high-latency reads to the unit.
type Register struct {
	PateID    int64  `gorm:"column:pate_id;not null"`
	Retrieved string `gorm:"column:retrieved;not null"`
	Reg01     int64  `gorm:"column:reg01;not null"`
	Reg02     int64  `gorm:"column:reg02;not null"`
}

func (Register) TableName() string { return "register" }

// A Note is a free-text operator annotation on a session.
type Note struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID int64  `gorm:"column:session_id;not null"`
	Text      string `gorm:"column:text"`
	Created   int64  `gorm:"column:created;autoCreateTime"`
}

func (Note) TableName() string { return "note" }

// A Command is an instruction issued to the instrument over one of its
// interfaces. Handled and Result stay NULL until a consumer picks it up.
type Command struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID int64   `gorm:"column:session_id;not null"`
	Interface string  `gorm:"column:interface;not null"`
	Command   string  `gorm:"column:command;not null"`
	Value     string  `gorm:"column:value;not null"`
	Created   string  `gorm:"column:created;default:CURRENT_TIMESTAMP"`
	Handled   *string `gorm:"column:handled"`
	Result    *string `gorm:"column:result"`
}

func (Command) TableName() string { return "command" }

// PSU tracks the bench power supply. The table holds at most one row
// (id = 0, enforced by a CHECK constraint); Modified is stamped by a trigger
// on every update.
type PSU struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	Power           PowerState `gorm:"column:power;type:text"`
	VoltageSetting  float64    `gorm:"column:voltage_setting"`
	CurrentLimit    float64    `gorm:"column:current_limit"`
	MeasuredCurrent float64    `gorm:"column:measured_current"`
	MeasuredVoltage float64    `gorm:"column:measured_voltage"`
	Modified        string     `gorm:"column:modified;default:CURRENT_TIMESTAMP"`
}

func (PSU) TableName() string { return "psu" }
