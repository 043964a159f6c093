package db

import (
	"context"
	"errors"

	"patemon/model"
)

var ErrPSUNotConfigured = errors.New("psu state not recorded")

// Store is the persistence surface used by the fixture generator and by the
// bench tooling that runs after provisioning.
type Store interface {
	EnsureSession() (int64, error)
	CreatePate(pate *model.Pate) error
	AddNote(sessionID int64, text string) (*model.Note, error)
	ListNotes(sessionID int64) ([]model.Note, error)
	SetPSU(psu model.PSU) error
	GetPSU() (*model.PSU, error)
	RecordCommand(cmd *model.Command) error
	CountRows(table string) (int64, error)
	Ping(ctx context.Context) error
}
