// Package config loads trainerctl settings from trainerctl.yaml, TRAINERCTL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/firmware"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/logging"
)

const (
	ConfigName = "trainerctl"
	EnvPrefix  = "TRAINERCTL"
)

var ErrInvalid = errors.New("invalid configuration")

type Log struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Stderr     bool   `mapstructure:"stderr"`
}

type Device struct {
	Address     string        `mapstructure:"address"`
	SystemID    string        `mapstructure:"system_id"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
}

type Wheel struct {
	CircumferenceCM float64 `mapstructure:"circumference_cm"`
}

type Kinetic struct {
	HashTable string `mapstructure:"hash_table"`
}

type Firmware struct {
	PacketInterval time.Duration `mapstructure:"packet_interval"`
}

type Exporter struct {
	Listen string `mapstructure:"listen"`
}

type Store struct {
	Path string `mapstructure:"path"`
}

type Config struct {
	Log      Log      `mapstructure:"log"`
	Device   Device   `mapstructure:"device"`
	Wheel    Wheel    `mapstructure:"wheel"`
	Kinetic  Kinetic  `mapstructure:"kinetic"`
	Firmware Firmware `mapstructure:"firmware"`
	Exporter Exporter `mapstructure:"exporter"`
	Store    Store    `mapstructure:"store"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"log-file":        "log.file",
	"log-stderr":      "log.stderr",
	"address":         "device.address",
	"system-id":       "device.system_id",
	"scan-timeout":    "device.scan_timeout",
	"wheel":           "wheel.circumference_cm",
	"hash-table":      "kinetic.hash_table",
	"packet-interval": "firmware.packet_interval",
	"exporter":        "exporter.listen",
	"store":           "store.path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.file", logging.DefaultFile())
	v.SetDefault("log.max_size_mb", logging.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logging.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logging.DefaultMaxAgeDays)
	v.SetDefault("log.stderr", false)
	v.SetDefault("device.address", "")
	v.SetDefault("device.system_id", "")
	v.SetDefault("device.scan_timeout", bt.DefaultScanTimeout)
	v.SetDefault("wheel.circumference_cm", cycling.DefaultWheelCircumferenceCM)
	v.SetDefault("kinetic.hash_table", "")
	v.SetDefault("firmware.packet_interval", firmware.DefaultPacketInterval)
	v.SetDefault("exporter.listen", "")
	v.SetDefault("store.path", "")
}

// Load reads the configuration. An explicit file must exist; otherwise
// trainerctl.yaml is searched in the working directory and ~/.trainerctl and
// may be absent. Only flags present in FlagKeys are bound.
func Load(flags *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".trainerctl"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Wheel.CircumferenceCM <= 0 {
		return fmt.Errorf("%w: wheel.circumference_cm must be positive, got %g", ErrInvalid, c.Wheel.CircumferenceCM)
	}
	if c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("%w: device.scan_timeout must be positive, got %s", ErrInvalid, c.Device.ScanTimeout)
	}
	if c.Firmware.PacketInterval < 0 {
		return fmt.Errorf("%w: firmware.packet_interval cannot be negative", ErrInvalid)
	}
	if c.Device.SystemID != "" {
		if _, err := kinetic.ParseSystemID(c.Device.SystemID); err != nil {
			return fmt.Errorf("%w: device.system_id: %v", ErrInvalid, err)
		}
	}
	return nil
}

func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Stderr:     c.Log.Stderr,
	}
}

// SystemID returns the configured system ID, or nil when none is set.
func (c *Config) SystemID() []byte {
	if c.Device.SystemID == "" {
		return nil
	}
	sid, err := kinetic.ParseSystemID(c.Device.SystemID)
	if err != nil {
		return nil
	}
	return sid
}

// HashTable loads the configured Kinetic hash, a 256 entry table or a full
// 256x256 matrix.
func (c *Config) HashTable() (kinetic.Hash8, error) {
	if c.Kinetic.HashTable == "" {
		return nil, fmt.Errorf("%w: kinetic.hash_table is not set", ErrInvalid)
	}
	return kinetic.LoadHash(c.Kinetic.HashTable)
}
