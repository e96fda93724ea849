package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/sos-laser/internal/actuator"
	"github.com/oshokin/sos-laser/internal/domain/morse"
	"github.com/oshokin/sos-laser/internal/logger"
)

// Config holds the settings of the controller and its gateway client.
type Config struct {
	// ListenAddress is where the controller serves its HTTP command interface.
	ListenAddress string `yaml:"listen_addr"`
	// ControllerAddress is the controller host:port dialed by the gateway binary.
	ControllerAddress string `yaml:"controller_addr"`
	// Device is the name reported by the status command.
	Device string `yaml:"device"`
	// AccessPoint is the wireless network the controller hosts.
	AccessPoint AccessPoint `yaml:"access_point"`
	// Laser describes the output channel.
	Laser Laser `yaml:"laser"`
	// Timing overrides the morse durations; each unset value falls back to its default.
	Timing morse.Timing `yaml:"timing"`
	// HealthAddress enables the gRPC health service when set.
	HealthAddress string `yaml:"health_addr"`
	// MetricsAddress enables the Prometheus endpoint when set.
	MetricsAddress string `yaml:"metrics_addr"`
	// Log configures logging.
	Log Log `yaml:"log"`
	// Timeout bounds gateway calls to the controller.
	Timeout time.Duration `yaml:"timeout"`
	// ShutdownTimeout bounds graceful shutdown, including an in-flight emission.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// SkipSelfTest disables the startup flash.
	SkipSelfTest bool `yaml:"skip_self_test"`
}

// AccessPoint is the network identity of the controller.
type AccessPoint struct {
	// SSID is the access-point name.
	SSID string `yaml:"ssid"`
	// Passphrase is the WPA2 passphrase.
	Passphrase string `yaml:"passphrase"`
	// Address is the fixed local address of the controller on that network.
	Address string `yaml:"address"`
}

// Laser describes how the diode is wired.
type Laser struct {
	// Driver is "gpio" or "simulated".
	Driver string `yaml:"driver"`
	// Pin is the periph pin name.
	Pin string `yaml:"pin"`
	// ActiveLow inverts the pin level.
	ActiveLow bool `yaml:"active_low"`
}

// Log configures the logger.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File enables a rotated log file when set.
	File string `yaml:"file"`
	// MaxSizeMB triggers rotation.
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"max_backups"`
	// MaxAgeDays is the retention of rotated files.
	MaxAgeDays int `yaml:"max_age_days"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "sos-laser-settings.yaml"

	// DefaultListenAddress binds the command interface on all interfaces.
	DefaultListenAddress = ":80"

	// DefaultDevice is the device name reported by the status command.
	DefaultDevice = "SOS_Laser"

	// DefaultSSID is the access-point name.
	DefaultSSID = "SOS_LASER"

	// DefaultPassphrase is the access-point passphrase.
	DefaultPassphrase = "12345678"

	// DefaultAccessPointAddress is the controller address on its own network.
	DefaultAccessPointAddress = "192.168.4.1"

	// DefaultPin is the output pin name.
	DefaultPin = "GPIO4"

	// DefaultTimeout covers a signal acknowledgement queued behind a running emission.
	DefaultTimeout = 15 * time.Second

	// DefaultShutdownTimeout outlasts a full distress emission.
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultLogMaxSizeMB is the rotation size of the log file.
	DefaultLogMaxSizeMB = 10

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// passphrase bounds for WPA2-PSK.
	minPassphraseLength = 8
	maxPassphraseLength = 63
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidPassphrase is returned for a passphrase outside WPA2 bounds.
	errInvalidPassphrase = errors.New("passphrase must be 8 to 63 characters")
	// errInvalidLogLevel is returned for an unknown log level.
	errInvalidLogLevel = errors.New("unknown log level")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)

	//nolint:errcheck // Defaults always validate.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds the access-point passphrase.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
//
//nolint:cyclop,funlen // One flat pass over every section reads best.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	applyDefaults(settings)

	if _, err := net.ResolveTCPAddr("tcp", settings.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if _, _, err := net.SplitHostPort(settings.ControllerAddress); err != nil {
		return fmt.Errorf("invalid controller address: %w", err)
	}

	if n := len(settings.AccessPoint.Passphrase); n < minPassphraseLength || n > maxPassphraseLength {
		return errInvalidPassphrase
	}

	if _, err := netip.ParseAddr(settings.AccessPoint.Address); err != nil {
		return fmt.Errorf("invalid access point address: %w", err)
	}

	switch settings.Laser.Driver {
	case actuator.DriverGPIO, actuator.DriverSimulated:
	default:
		return fmt.Errorf("laser driver %q: %w", settings.Laser.Driver, actuator.ErrUnknownDriver)
	}

	if err := settings.Timing.Validate(); err != nil {
		return fmt.Errorf("invalid timing: %w", err)
	}

	if _, ok := logger.ParseLogLevel(settings.Log.Level); !ok {
		return fmt.Errorf("%q: %w", settings.Log.Level, errInvalidLogLevel)
	}

	for name, addr := range map[string]string{
		"health":  settings.HealthAddress,
		"metrics": settings.MetricsAddress,
	} {
		if addr == "" {
			continue
		}

		if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
			return fmt.Errorf("invalid %s address: %w", name, err)
		}
	}

	return nil
}

// applyDefaults sets every empty field to its default.
func applyDefaults(settings *Config) {
	if settings.ListenAddress == "" {
		settings.ListenAddress = DefaultListenAddress
	}

	if settings.Device == "" {
		settings.Device = DefaultDevice
	}

	if settings.AccessPoint.SSID == "" {
		settings.AccessPoint.SSID = DefaultSSID
	}

	if settings.AccessPoint.Passphrase == "" {
		settings.AccessPoint.Passphrase = DefaultPassphrase
	}

	if settings.AccessPoint.Address == "" {
		settings.AccessPoint.Address = DefaultAccessPointAddress
	}

	if settings.ControllerAddress == "" {
		_, port, err := net.SplitHostPort(settings.ListenAddress)
		if err != nil || port == "" {
			port = "80"
		}

		settings.ControllerAddress = net.JoinHostPort(settings.AccessPoint.Address, port)
	}

	settings.Laser.Driver = strings.ToLower(strings.TrimSpace(settings.Laser.Driver))
	if settings.Laser.Driver == "" {
		settings.Laser.Driver = actuator.DriverSimulated
	}

	if settings.Laser.Pin == "" {
		settings.Laser.Pin = DefaultPin
	}

	settings.Timing = settings.Timing.WithDefaults(morse.DefaultTiming())

	if settings.Log.Level == "" {
		settings.Log.Level = "info"
	}

	if settings.Log.File != "" && settings.Log.MaxSizeMB <= 0 {
		settings.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = DefaultShutdownTimeout
	}
}
