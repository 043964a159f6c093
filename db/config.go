package db

// Config carries everything the provisioning phase needs. It is built once in
// the command entrypoint and passed down explicitly; nothing in this package
// reads flags or environment variables.
type Config struct {
	// DBPath is the SQLite file to create.
	DBPath string
	// FileOwner and DirOwner are "user.group" strings applied to the
	// database file and its directory after creation. Empty skips the
	// ownership step.
	FileOwner string
	DirOwner  string
	// Force removes a pre-existing database file instead of failing.
	Force bool
	// Backup saves a timestamped copy of the old file before Force removes
	// it, keeping at most MaxBackups copies.
	Backup     bool
	MaxBackups int
}

// FixtureConfig controls development-content generation (--dev).
type FixtureConfig struct {
	// CSVPath is the sample pulseheight export. Empty skips the import.
	CSVPath string

	HitcountRotations int
	HitcountInterval  int64 // seconds between rotations
	HitcountMaxHits   int64 // full 21-bit counter register

	PulseheightInterval int64

	HousekeepingSamples  int
	HousekeepingInterval int64
	HousekeepingMaxValue int64
}

const (
	DefaultDBPath    = "/srv/patemon.sqlite3"
	DefaultFileOwner = "patemon.patemon"
	DefaultDirOwner  = "patemon.www-data"
)

func DefaultConfig() Config {
	return Config{
		DBPath:     DefaultDBPath,
		FileOwner:  DefaultFileOwner,
		DirOwner:   DefaultDirOwner,
		MaxBackups: 5,
	}
}

// DefaultFixtureConfig models one day of science data at a 15 second rotation
// cadence plus roughly 17 hours of housekeeping.
func DefaultFixtureConfig() FixtureConfig {
	return FixtureConfig{
		CSVPath:              "sample.csv",
		HitcountRotations:    5760,
		HitcountInterval:     15,
		HitcountMaxHits:      1 << 21,
		PulseheightInterval:  15,
		HousekeepingSamples:  1000,
		HousekeepingInterval: 60,
		HousekeepingMaxValue: 255,
	}
}
