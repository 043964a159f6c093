package db

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"patemon/model"
)

// Layout of the Finnish-locale Excel export the bench software produces:
// semicolon-delimited, double-quoted, two header rows, and the pulseheight
// readings in source columns 20..28. Column 20 is a binary-string hit mask;
// the rest are decimal ADC values.
const (
	csvHeaderRows  = 2
	csvFirstColumn = 20
	csvLastColumn  = 28
)

// ImportPulseheights reads the sample CSV and inserts one pulseheight row per
// data line, with synthetic timestamps spaced cfg.PulseheightInterval seconds
// apart starting at now. The hit mask is parsed (a malformed mask fails the
// row) but not stored; the pulseheight table carries only the eight ADC
// values. Returns the number of rows imported.
func ImportPulseheights(conn *gorm.DB, sessionID int64, cfg FixtureConfig, log *zap.SugaredLogger) (int, error) {
	f, err := os.Open(cfg.CSVPath)
	if err != nil {
		return 0, fmt.Errorf("cannot open sample CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	for i := 0; i < csvHeaderRows; i++ {
		if _, err := reader.Read(); err != nil {
			return 0, fmt.Errorf("%s: cannot skip header row %d: %w", cfg.CSVPath, i+1, err)
		}
	}

	first := time.Now().Unix()
	count := 0
	err = conn.Transaction(func(tx *gorm.DB) error {
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: read failed: %w", cfg.CSVPath, err)
			}
			if len(record) <= csvLastColumn {
				return fmt.Errorf("%s: data row %d has %d columns, need at least %d",
					cfg.CSVPath, count+1, len(record), csvLastColumn+1)
			}

			values, err := parsePulseheightRecord(record)
			if err != nil {
				return fmt.Errorf("%s: data row %d: %w", cfg.CSVPath, count+1, err)
			}

			ph := model.Pulseheight{
				Timestamp: first + int64(count)*cfg.PulseheightInterval,
				SessionID: sessionID,
				AC1:       values[1],
				D1A:       values[2],
				D1B:       values[3],
				D1C:       values[4],
				D2A:       values[5],
				D2B:       values[6],
				D3:        values[7],
				AC2:       values[8],
			}
			if err := tx.Create(&ph).Error; err != nil {
				return fmt.Errorf("failed to insert pulseheight row %d: %w", count+1, err)
			}
			count++
		}
	})
	if err != nil {
		return 0, err
	}
	log.Debugf("pulseheight import: %d rows", count)
	return count, nil
}

// parsePulseheightRecord extracts source columns 20..28: the base-2 hit mask
// followed by eight base-10 ADC values.
func parsePulseheightRecord(record []string) ([9]int64, error) {
	var values [9]int64
	for i := csvFirstColumn; i <= csvLastColumn; i++ {
		base := 10
		if i == csvFirstColumn {
			base = 2
		}
		v, err := strconv.ParseInt(record[i], base, 64)
		if err != nil {
			return values, fmt.Errorf("column %d value %q: %w", i, record[i], err)
		}
		values[i-csvFirstColumn] = v
	}
	return values, nil
}
