// pmdbsetup provisions the PATE Monitor telemetry database: it creates the
// SQLite file, executes the schema DDL in fixed order, applies ownership and
// permissions, and optionally (--dev) seeds synthetic development content.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"patemon/db"
	"patemon/hostenv"
)

const (
	dbPathEnvVar    = "PMDB_FILE"
	fileOwnerEnvVar = "PMDB_FILE_OWNER"
	dirOwnerEnvVar  = "PMDB_DIR_OWNER"
	sampleCSVEnvVar = "PMDB_SAMPLE_CSV"
	logFileEnvVar   = "PMDB_LOG_FILE"

	defaultLogFile = "setup.log"
	defaultLogLvl  = "DEBUG"
)

// Exit codes: 0 success, 1 schema/data failure, 2 environment/precondition
// failure. The documented remedy for most failures is a rerun with --force
// after fixing the underlying condition.
const (
	exitSchemaError = 1
	exitEnvError    = 2
)

func main() {
	// A .env next to the binary may carry the PMDB_* overrides; absence is
	// not an error.
	_ = godotenv.Load()
	viper.AutomaticEnv()

	cfg := db.DefaultConfig()
	fcfg := db.DefaultFixtureConfig()
	var (
		logLevel      string
		logFile       string
		dev           bool
		skipRootCheck bool
	)

	rootCmd := &cobra.Command{
		Use:   "pmdbsetup",
		Short: "Create the PATE Monitor SQLite database file",
		Long: `Creates the PATE Monitor telemetry database: instrument identities,
testing sessions, hitcount rotations, pulseheight calibration samples,
registers, operator notes, commands, PSU state and housekeeping.
With --dev the fresh database is seeded with synthetic development content.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyEnvOverrides(cmd, &cfg, &fcfg, &logFile)
			logger, err := buildLogger(logLevel, logFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return run(cfg, fcfg, dev, skipRootCheck, logger.Sugar())
		},
	}

	rootCmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file to create")
	rootCmd.Flags().StringVar(&cfg.FileOwner, "file-owner", cfg.FileOwner, "user.group ownership for the database file (empty to skip)")
	rootCmd.Flags().StringVar(&cfg.DirOwner, "dir-owner", cfg.DirOwner, "user.group ownership for the database directory (empty to skip)")
	rootCmd.Flags().BoolVar(&cfg.Force, "force", false, "Delete existing database file and recreate")
	rootCmd.Flags().BoolVar(&cfg.Backup, "backup", true, "With --force, back up the existing file before removing it")
	rootCmd.Flags().IntVar(&cfg.MaxBackups, "max-backups", cfg.MaxBackups, "Maximum number of backups to retain")
	rootCmd.Flags().BoolVar(&dev, "dev", false, "Generate development content")
	rootCmd.Flags().StringVar(&fcfg.CSVPath, "csv", fcfg.CSVPath, "Sample pulseheight CSV for --dev (empty to skip the import)")
	rootCmd.Flags().IntVar(&fcfg.HitcountRotations, "rotations", fcfg.HitcountRotations, "Number of hitcount rotations to generate with --dev")
	rootCmd.Flags().IntVar(&fcfg.HousekeepingSamples, "hk-samples", fcfg.HousekeepingSamples, "Number of housekeeping samples to generate with --dev")
	rootCmd.Flags().StringVar(&logLevel, "log", defaultLogLvl, "Logging level: DEBUG, INFO, WARNING, ERROR or CRITICAL")
	rootCmd.Flags().StringVar(&logFile, "log-file", defaultLogFile, "Log file path")
	rootCmd.Flags().BoolVar(&skipRootCheck, "skip-root-check", false, "Do not require root (the chown step will likely fail)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// applyEnvOverrides lets PMDB_* environment variables stand in for flags that
// were not given explicitly.
func applyEnvOverrides(cmd *cobra.Command, cfg *db.Config, fcfg *db.FixtureConfig, logFile *string) {
	override := func(flag, envVar string, dst *string) {
		if !cmd.Flags().Changed(flag) {
			if v := viper.GetString(envVar); v != "" {
				*dst = v
			}
		}
	}
	override("db", dbPathEnvVar, &cfg.DBPath)
	override("file-owner", fileOwnerEnvVar, &cfg.FileOwner)
	override("dir-owner", dirOwnerEnvVar, &cfg.DirOwner)
	override("csv", sampleCSVEnvVar, &fcfg.CSVPath)
	override("log-file", logFileEnvVar, logFile)
}

func run(cfg db.Config, fcfg db.FixtureConfig, dev, skipRootCheck bool, log *zap.SugaredLogger) error {
	if !skipRootCheck {
		if err := hostenv.RequireRoot(); err != nil {
			return err
		}
	}

	// Resolve owner accounts up front; a typo in a service account name
	// should fail the run before any file is touched.
	var fileOwner, dirOwner *hostenv.Owner
	var err error
	if cfg.FileOwner != "" {
		if fileOwner, err = hostenv.LookupOwner(cfg.FileOwner); err != nil {
			return err
		}
	}
	if cfg.DirOwner != "" {
		if dirOwner, err = hostenv.LookupOwner(cfg.DirOwner); err != nil {
			return err
		}
	}

	conn, err := db.CreateDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.CloseDatabase(conn); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	if fileOwner != nil {
		if err := fileOwner.Apply(cfg.DBPath, 0o770); err != nil {
			return err
		}
	} else {
		log.Warn("file owner not configured, leaving ownership as created")
	}
	if dirOwner != nil {
		if err := dirOwner.Apply(filepath.Dir(cfg.DBPath), 0o775); err != nil {
			return err
		}
	} else {
		log.Warn("directory owner not configured, leaving ownership as is")
	}

	if !dev {
		log.Infof("database setup completed: %s", cfg.DBPath)
		return nil
	}

	log.Info("creating development and testing content")
	if err := db.GenerateDevContent(conn, fcfg, log); err != nil {
		return err
	}
	log.Infof("database setup completed with development content: %s", cfg.DBPath)
	return nil
}

// exitCode maps error kinds to process exit codes: environment and
// precondition failures are distinguished from schema/data failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, hostenv.ErrNotRoot),
		errors.Is(err, hostenv.ErrMalformedOwner),
		errors.Is(err, hostenv.ErrUnknownUser),
		errors.Is(err, hostenv.ErrUnknownGroup),
		errors.Is(err, db.ErrDatabaseExists),
		errors.Is(err, db.ErrFileUnwritable):
		return exitEnvError
	}
	return exitSchemaError
}

// buildLogger writes timestamped entries to the log file and echoes them to
// stdout.
func buildLogger(level, path string) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{path, "stdout"}
	cfg.ErrorOutputPaths = []string{path, "stderr"}
	return cfg.Build()
}

// parseLevel accepts the syslog-style level names the bench operators know.
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "CRITICAL":
		return zapcore.FatalLevel, nil
	}
	return zapcore.InvalidLevel, fmt.Errorf("unknown logging level %q", level)
}
