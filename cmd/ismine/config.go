// Copyright (c) 2013-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/ismine/internal/cfgutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "ismine.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "ismine.log"
	defaultBackend        = "bdb"
	defaultDBTimeout      = 60 * time.Second

	bdbFilename    = "keys.db"
	sqliteFilename = "keys.sqlite"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("ismine", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
)

type config struct {
	// General application behavior
	ConfigFile *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir *cfgutil.ExplicitString `short:"A" long:"appdata" description:"Application data directory for key stores and logs"`
	LogDir     string                  `long:"logdir" description:"Directory to log output (default: <appdata>/logs)"`
	DebugLevel string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	NoLogFile  bool                    `long:"nologfile" description:"Only log to standard error"`

	// Network selection
	TestNet3 bool `long:"testnet" description:"Use the test Bitcoin network (version 3)"`
	RegTest  bool `long:"regtest" description:"Use the regression test network"`
	SimNet   bool `long:"simnet" description:"Use the simulation test network"`
	SigNet   bool `long:"signet" description:"Use the signet test network"`

	// Key store
	Backend   string        `long:"backend" description:"Key store database backend" choice:"bdb" choice:"sqlite" choice:"postgres"`
	DBPath    string        `long:"dbpath" description:"Path to the bdb or sqlite key store (default: <appdata>/<network>/keys.db or keys.sqlite)"`
	DSN       string        `long:"dsn" description:"Data source name of the postgres key store"`
	DBTimeout time.Duration `long:"dbtimeout" description:"Timeout for obtaining the bdb file lock"`

	activeNet *chaincfg.Params
}

// netDir returns the directory holding key stores for the active network.
func (c *config) netDir() string {
	return filepath.Join(c.AppDataDir.Value, c.activeNet.Name)
}

// defaultDBPath returns the default key store path of the selected file
// backed backend.
func (c *config) defaultDBPath() string {
	name := bdbFilename
	if c.Backend == "sqlite" {
		name = sqliteFilename
	}
	return filepath.Join(c.netDir(), name)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}
	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// newConfigParser returns a parser for cfg with every command registered.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	parser := flags.NewParser(cfg, options)

	// A missing command is reported after the special options are handled.
	parser.SubcommandsOptional = true
	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, &struct{}{})
		if err != nil {
			// Only reachable with a malformed command table.
			panic(err)
		}
	}
	return parser
}

// loadConfig initializes and parses the config using a config file and command
// line options, and returns it along with the selected command and its
// arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in ismine functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
func loadConfig(args []string) (*config, *command, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: cfgutil.NewExplicitString(defaultConfigFile),
		AppDataDir: cfgutil.NewExplicitString(defaultAppDataDir),
		DebugLevel: defaultLogLevel,
		Backend:    defaultBackend,
		DBTimeout:  defaultDBTimeout,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or application data directory was specified.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
		}
		return nil, nil, nil, err
	}

	// Special show command to list supported subsystems and exit.
	if preCfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		return nil, nil, nil, errShown
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path within the application data
	// directory.
	configFilePath := preCfg.ConfigFile.Value
	if !preCfg.ConfigFile.ExplicitlySet() && preCfg.AppDataDir.ExplicitlySet() {
		configFilePath = filepath.Join(
			preCfg.AppDataDir.Value, defaultConfigFilename,
		)
	}
	configFilePath = cfgutil.CleanAndExpandPath(configFilePath)

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, nil, err
	}

	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	cfg.activeNet = &chaincfg.MainNetParams
	numNets := 0
	if cfg.TestNet3 {
		cfg.activeNet = &chaincfg.TestNet3Params
		numNets++
	}
	if cfg.RegTest {
		cfg.activeNet = &chaincfg.RegressionNetParams
		numNets++
	}
	if cfg.SimNet {
		cfg.activeNet = &chaincfg.SimNetParams
		numNets++
	}
	if cfg.SigNet {
		cfg.activeNet = &chaincfg.SigNetParams
		numNets++
	}
	if numNets > 1 {
		return nil, nil, nil, errors.New("the testnet, regtest, simnet " +
			"and signet params can't be used together -- choose one")
	}

	cfg.AppDataDir.Value = cfgutil.CleanAndExpandPath(cfg.AppDataDir.Value)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDataDir.Value, defaultLogDirname)
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cfgutil.CleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.activeNet.Name)

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	if !cfg.NoLogFile {
		err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, nil, err
	}

	switch cfg.Backend {
	case "bdb", "sqlite":
		if cfg.DSN != "" {
			return nil, nil, nil, fmt.Errorf("--dsn is only used "+
				"with the postgres backend, not %s", cfg.Backend)
		}
		if cfg.DBPath == "" {
			cfg.DBPath = cfg.defaultDBPath()
		}
		cfg.DBPath = cfgutil.CleanAndExpandPath(cfg.DBPath)

	case "postgres":
		if cfg.DSN == "" {
			return nil, nil, nil, errors.New("the postgres backend " +
				"requires --dsn")
		}
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Debugf("%v", configFileError)
	}

	cmd, ok := lookupCommand(parser.Active)
	if !ok {
		return nil, nil, nil, errors.New("no command specified")
	}

	return &cfg, cmd, remainingArgs, nil
}

// lookupCommand returns the command table entry of the parsed command.
func lookupCommand(active *flags.Command) (*command, bool) {
	if active == nil {
		return nil, false
	}
	for i := range commands {
		if commands[i].name == active.Name {
			return &commands[i], true
		}
	}
	return nil, false
}
