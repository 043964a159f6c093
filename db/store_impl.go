package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"patemon/model"
)

// Labels stamped on rows the fixture generator has to invent to satisfy
// foreign keys.
const (
	fixturePateLabel    = "Created to insert sample pulseheight data"
	fixtureFirmwareNote = "Created to insert sample pulseheight data"
)

type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Ping verifies the underlying database connection is healthy.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// EnsureSession returns the id of the first testing session, creating a
// session (and an instrument record, if the pate table is empty too) when
// none exists. Every generated telemetry row references this session.
func (s *SQLStore) EnsureSession() (int64, error) {
	var sessionID int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sess model.TestingSession
		err := tx.First(&sess).Error
		if err == nil {
			sessionID = sess.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var pate model.Pate
		err = tx.First(&pate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pate = model.Pate{IDMin: 0, IDMax: 1000, Label: fixturePateLabel}
			if err := tx.Create(&pate).Error; err != nil {
				return fmt.Errorf("failed to create pate: %w", err)
			}
		} else if err != nil {
			return err
		}

		sess = model.TestingSession{
			Started:      time.Now().Format("2006-01-02 15:04:05"),
			PateID:       pate.ID,
			PateFirmware: fixtureFirmwareNote,
		}
		if err := tx.Create(&sess).Error; err != nil {
			return fmt.Errorf("failed to create testing session: %w", err)
		}
		sessionID = sess.ID
		return nil
	})
	return sessionID, err
}

func (s *SQLStore) CreatePate(pate *model.Pate) error {
	return s.db.Create(pate).Error
}

func (s *SQLStore) AddNote(sessionID int64, text string) (*model.Note, error) {
	note := model.Note{SessionID: sessionID, Text: text}
	if err := s.db.Create(&note).Error; err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *SQLStore) ListNotes(sessionID int64) ([]model.Note, error) {
	var notes []model.Note
	err := s.db.Where("session_id = ?", sessionID).Order("id").Find(&notes).Error
	return notes, err
}

// SetPSU writes the singleton power-supply row. The id is pinned to 0; the
// CHECK constraint rejects anything else, and the psu_ari trigger stamps
// modified on the update path.
func (s *SQLStore) SetPSU(psu model.PSU) error {
	psu.ID = 0
	var existing model.PSU
	err := s.db.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.
			Select("ID", "Power", "VoltageSetting", "CurrentLimit", "MeasuredCurrent", "MeasuredVoltage").
			Create(&psu).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&model.PSU{}).Where("id = ?", 0).Updates(map[string]any{
		"power":            psu.Power,
		"voltage_setting":  psu.VoltageSetting,
		"current_limit":    psu.CurrentLimit,
		"measured_current": psu.MeasuredCurrent,
		"measured_voltage": psu.MeasuredVoltage,
	}).Error
}

func (s *SQLStore) GetPSU() (*model.PSU, error) {
	var psu model.PSU
	err := s.db.First(&psu).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPSUNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &psu, nil
}

func (s *SQLStore) RecordCommand(cmd *model.Command) error {
	return s.db.
		Select("SessionID", "Interface", "Command", "Value").
		Create(cmd).Error
}

// CountRows is used by tests and post-run reporting; table comes from our own
// fixed schema list, never from input.
func (s *SQLStore) CountRows(table string) (int64, error) {
	var count int64
	err := s.db.Table(table).Count(&count).Error
	return count, err
}
