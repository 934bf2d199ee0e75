// Package config provides configuration management for the DroneEdit agent.
// Runtime configuration comes from environment variables (optionally seeded
// from a .env file) with sensible defaults; editing options live in a YAML
// settings file described by Settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultLogLevel        = "INFO"
	DefaultDataDir         = ".droneedit"
	DefaultPanelPort       = 8797
	DefaultConnectAttempts = 3
	DefaultRetryDelay      = 2 * time.Second
	DefaultAnalysisMode    = "simulated"
	DefaultDelegateTimeout = 10 * time.Minute

	// Environment variable names
	EnvDataDir         = "DRONEEDIT_DATA_DIR"
	EnvConfigFile      = "DRONEEDIT_CONFIG"
	EnvLogLevel        = "DRONEEDIT_LOG_LEVEL"
	EnvLogFile         = "DRONEEDIT_LOG_FILE"
	EnvBridgeURL       = "DRONEEDIT_BRIDGE_URL"
	EnvBridgeToken     = "DRONEEDIT_BRIDGE_TOKEN"
	EnvConnectAttempts = "DRONEEDIT_CONNECT_ATTEMPTS"
	EnvRetryDelay      = "DRONEEDIT_RETRY_DELAY"
	EnvPanelPort       = "DRONEEDIT_PANEL_PORT"
	EnvHeadless        = "DRONEEDIT_HEADLESS"
	EnvConsole         = "DRONEEDIT_CONSOLE"
	EnvAnalysisMode    = "DRONEEDIT_ANALYSIS_MODE"
	EnvDelegateExe     = "DRONEEDIT_ANALYSIS_EXE"
	EnvDelegateURL     = "DRONEEDIT_ANALYSIS_URL"
	EnvLUTDir          = "DRONEEDIT_LUT_DIR"
	EnvIngestDir       = "DRONEEDIT_INGEST_DIR"

	// File names under the data directory
	DBFilename        = "droneedit.db"
	SettingsFilename  = "settings.yaml"
	DiscoveryFilename = "bridge.json"
	LogFilename       = "droneedit.log"
)

// Config defines the application configuration interface
type Config interface {
	DataDir() string
	DBPath() string
	SettingsPath() string
	DiscoveryPath() string
	LogLevel() string
	LogFile() string
	BridgeURL() string
	BridgeToken() string
	ConnectAttempts() int
	RetryDelay() time.Duration
	PanelPort() int
	Headless() bool
	Console() bool
	AnalysisMode() string
	DelegateExecutable() string
	DelegateURL() string
	DelegateTimeout() time.Duration
	LUTDir() string
	IngestDir() string
	AutosaveDir() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	dataDir         string
	settingsPath    string
	logLevel        string
	logFile         string
	bridgeURL       string
	bridgeToken     string
	connectAttempts int
	retryDelay      time.Duration
	panelPort       int
	headless        bool
	console         bool
	analysisMode    string
	delegateExe     string
	delegateURL     string
	lutDir          string
	ingestDir       string
}

// New creates a new EnvConfig with defaults and environment variable
// overrides. A .env file in the working directory is loaded first; variables
// already present in the environment win.
func New() (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &EnvConfig{
		dataDir:         defaultDataDir(),
		logLevel:        DefaultLogLevel,
		connectAttempts: DefaultConnectAttempts,
		retryDelay:      DefaultRetryDelay,
		panelPort:       DefaultPanelPort,
		analysisMode:    DefaultAnalysisMode,
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	cfg.settingsPath = os.Getenv(EnvConfigFile)

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = strings.ToUpper(ll)
	}
	cfg.logFile = os.Getenv(EnvLogFile)
	cfg.bridgeURL = os.Getenv(EnvBridgeURL)
	cfg.bridgeToken = os.Getenv(EnvBridgeToken)

	if v := os.Getenv(EnvConnectAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvConnectAttempts)
		}
		cfg.connectAttempts = n
	}

	if v := os.Getenv(EnvRetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvRetryDelay, v)
		}
		cfg.retryDelay = d
	}

	if p := os.Getenv(EnvPanelPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPanelPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPanelPort)
		}
		cfg.panelPort = port
	}

	var err error
	if cfg.headless, err = envBool(EnvHeadless); err != nil {
		return nil, err
	}
	if cfg.console, err = envBool(EnvConsole); err != nil {
		return nil, err
	}

	if m := os.Getenv(EnvAnalysisMode); m != "" {
		m = strings.ToLower(m)
		if m != "simulated" && m != "delegated" {
			return nil, fmt.Errorf("invalid %s: %q (want simulated or delegated)", EnvAnalysisMode, m)
		}
		cfg.analysisMode = m
	}
	cfg.delegateExe = os.Getenv(EnvDelegateExe)
	cfg.delegateURL = strings.TrimRight(os.Getenv(EnvDelegateURL), "/")
	cfg.lutDir = os.Getenv(EnvLUTDir)
	cfg.ingestDir = os.Getenv(EnvIngestDir)

	return cfg, nil
}

// SetConsole forces console mode (the --console flag).
func (c *EnvConfig) SetConsole(v bool) { c.console = v }

// SetSettingsPath overrides the settings file (the --config flag).
func (c *EnvConfig) SetSettingsPath(p string) { c.settingsPath = p }

// SetLogLevel overrides the log level (the --log-level flag).
func (c *EnvConfig) SetLogLevel(l string) { c.logLevel = strings.ToUpper(l) }

// SetConnect overrides the connection retry policy.
func (c *EnvConfig) SetConnect(attempts int, delay time.Duration) {
	if attempts > 0 {
		c.connectAttempts = attempts
	}
	if delay >= 0 {
		c.retryDelay = delay
	}
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite journal
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) SettingsPath() string {
	if c.settingsPath != "" {
		return c.settingsPath
	}
	return filepath.Join(c.dataDir, SettingsFilename)
}

// DiscoveryPath is where the in-host bridge script advertises its endpoint.
func (c *EnvConfig) DiscoveryPath() string {
	return filepath.Join(c.dataDir, DiscoveryFilename)
}

func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) LogFile() string {
	if c.logFile != "" {
		return c.logFile
	}
	return filepath.Join(c.dataDir, "logs", LogFilename)
}

func (c *EnvConfig) BridgeURL() string {
	return c.bridgeURL
}

func (c *EnvConfig) BridgeToken() string {
	return c.bridgeToken
}

func (c *EnvConfig) ConnectAttempts() int {
	return c.connectAttempts
}

func (c *EnvConfig) RetryDelay() time.Duration {
	return c.retryDelay
}

func (c *EnvConfig) PanelPort() int {
	return c.panelPort
}

// Headless disables the panel front-end and the tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) Console() bool {
	return c.console
}

func (c *EnvConfig) AnalysisMode() string {
	return c.analysisMode
}

func (c *EnvConfig) DelegateExecutable() string {
	return c.delegateExe
}

func (c *EnvConfig) DelegateURL() string {
	return c.delegateURL
}

func (c *EnvConfig) DelegateTimeout() time.Duration {
	return DefaultDelegateTimeout
}

func (c *EnvConfig) LUTDir() string {
	if c.lutDir != "" {
		return c.lutDir
	}
	return filepath.Join(c.dataDir, "luts")
}

func (c *EnvConfig) IngestDir() string {
	return c.ingestDir
}

// AutosaveDir is the OS default autosave location, used when the settings
// do not name one: ~/Documents/DroneEdit/autosave, else the temp dir.
func (c *EnvConfig) AutosaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "droneedit-autosave")
	}
	return filepath.Join(home, "Documents", "DroneEdit", "autosave")
}

func envBool(name string) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
