package db

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"patemon/model"
)

// packetGenerator produces synthetic telemetry packets with a monotonically
// increasing timestamp. The accumulator is explicit state here; each fixture
// phase constructs its own generator.
type packetGenerator struct {
	next     int64
	interval int64
	ncols    int
	max      int64
	rnd      *rand.Rand
}

func newPacketGenerator(start, interval int64, ncols int, max int64) *packetGenerator {
	return &packetGenerator{
		next:     start,
		interval: interval,
		ncols:    ncols,
		max:      max,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// packet returns bind arguments for one row: timestamp, session id, then one
// random counter value in [0, max] per data column.
func (g *packetGenerator) packet(sessionID int64) []any {
	args := make([]any, 0, g.ncols+2)
	args = append(args, g.next, sessionID)
	for i := 0; i < g.ncols; i++ {
		args = append(args, g.rnd.Int63n(g.max+1))
	}
	g.next += g.interval
	return args
}

// GenerateDevContent fills the freshly created database with development
// fixtures: synthetic hitcount rotations, pulseheight samples imported from
// the CSV export, synthetic housekeeping, plus an initial PSU state and a
// marker note. Each phase commits on its own, so rows from completed phases
// survive a later failure.
func GenerateDevContent(conn *gorm.DB, cfg FixtureConfig, log *zap.SugaredLogger) error {
	store := NewSQLStore(conn)
	sessionID, err := store.EnsureSession()
	if err != nil {
		return fmt.Errorf("failed to resolve testing session: %w", err)
	}
	log.Debugf("using testing session %d", sessionID)

	if err := GenerateHitcounts(conn, sessionID, cfg, log); err != nil {
		return fmt.Errorf("hitcount content generation failed: %w", err)
	}

	if cfg.CSVPath == "" {
		log.Warn("no sample CSV configured, skipping pulseheight import")
	} else {
		n, err := ImportPulseheights(conn, sessionID, cfg, log)
		if err != nil {
			return fmt.Errorf("pulseheight import failed: %w", err)
		}
		log.Infof("imported %d pulseheight samples from %s", n, cfg.CSVPath)
	}

	if err := GenerateHousekeeping(conn, sessionID, cfg, log); err != nil {
		return fmt.Errorf("housekeeping content generation failed: %w", err)
	}

	if err := store.SetPSU(model.PSU{Power: model.PowerOff}); err != nil {
		return fmt.Errorf("failed to seed psu state: %w", err)
	}
	if _, err := store.AddNote(sessionID, "development fixture data generated"); err != nil {
		return fmt.Errorf("failed to add fixture note: %w", err)
	}
	return nil
}

// GenerateHitcounts inserts cfg.HitcountRotations rows of random science
// data, one rotation per cfg.HitcountInterval seconds starting at now.
// Counter values span the full 21-bit register.
func GenerateHitcounts(conn *gorm.DB, sessionID int64, cfg FixtureConfig, log *zap.SugaredLogger) error {
	cols := HitcountDataColumns()
	sql := insertStatement("hitcount", cols)
	gen := newPacketGenerator(time.Now().Unix(), cfg.HitcountInterval, len(cols), cfg.HitcountMaxHits)

	log.Infof("creating %d rotations of hitcount data", cfg.HitcountRotations)
	return conn.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < cfg.HitcountRotations; i++ {
			if err := tx.Exec(sql, gen.packet(sessionID)...).Error; err != nil {
				return &StatementError{Stmt: sql, Err: err}
			}
			if (i+1)%1000 == 0 {
				log.Debugf("hitcount: %d/%d rotations", i+1, cfg.HitcountRotations)
			}
		}
		return nil
	})
}

// GenerateHousekeeping inserts cfg.HousekeepingSamples rows of random
// instrument health counters, byte-ranged, one per cfg.HousekeepingInterval
// seconds.
func GenerateHousekeeping(conn *gorm.DB, sessionID int64, cfg FixtureConfig, log *zap.SugaredLogger) error {
	cols := HousekeepingDataColumns()
	sql := insertStatement("housekeeping", cols)
	gen := newPacketGenerator(time.Now().Unix(), cfg.HousekeepingInterval, len(cols), cfg.HousekeepingMaxValue)

	log.Infof("creating %d samples of housekeeping data", cfg.HousekeepingSamples)
	return conn.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < cfg.HousekeepingSamples; i++ {
			if err := tx.Exec(sql, gen.packet(sessionID)...).Error; err != nil {
				return &StatementError{Stmt: sql, Err: err}
			}
		}
		return nil
	})
}
