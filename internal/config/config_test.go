package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/firmware"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainerctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("address", "", "")
	flags.Float64("wheel", cycling.DefaultWheelCircumferenceCM, "")
	flags.Duration("scan-timeout", bt.DefaultScanTimeout, "")
	flags.String("unrelated", "", "")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, cycling.DefaultWheelCircumferenceCM, cfg.Wheel.CircumferenceCM)
	assert.Equal(t, bt.DefaultScanTimeout, cfg.Device.ScanTimeout)
	assert.Equal(t, firmware.DefaultPacketInterval, cfg.Firmware.PacketInterval)
	assert.Nil(t, cfg.SystemID())
	assert.NotEmpty(t, cfg.LogOptions().File)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  file: /tmp/x.log
  max_size_mb: 5
  stderr: true
device:
  address: AA:BB:CC:DD:EE:FF
  system_id: "01:02:03:04:05:06"
  scan_timeout: 3s
wheel:
  circumference_cm: 210
firmware:
  packet_interval: 50ms
exporter:
  listen: ":9100"
`)
	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.Device.Address)
	assert.Equal(t, 3*time.Second, cfg.Device.ScanTimeout)
	assert.Equal(t, 210.0, cfg.Wheel.CircumferenceCM)
	assert.Equal(t, 50*time.Millisecond, cfg.Firmware.PacketInterval)
	assert.Equal(t, ":9100", cfg.Exporter.Listen)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, cfg.SystemID())

	opts := cfg.LogOptions()
	assert.Equal(t, "/tmp/x.log", opts.File)
	assert.Equal(t, 5, opts.MaxSizeMB)
	assert.True(t, opts.Stderr)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "device:\n  address: from-file\nwheel:\n  circumference_cm: 200\n")
	t.Setenv("TRAINERCTL_DEVICE_ADDRESS", "from-env")
	t.Setenv("TRAINERCTL_WHEEL_CIRCUMFERENCE_CM", "205")

	flags := testFlags()
	cfg, err := Load(flags, path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Device.Address)
	assert.Equal(t, 205.0, cfg.Wheel.CircumferenceCM)

	require.NoError(t, flags.Parse([]string{"--address", "from-flag", "--scan-timeout", "2s"}))
	cfg, err = Load(flags, path)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Device.Address)
	assert.Equal(t, 205.0, cfg.Wheel.CircumferenceCM)
	assert.Equal(t, 2*time.Second, cfg.Device.ScanTimeout)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(nil, writeConfig(t, "wheel:\n  circumference_cm: 0\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(nil, writeConfig(t, "device:\n  system_id: nothex\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(nil, writeConfig(t, "device:\n  scan_timeout: 0s\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestHashTable(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.HashTable()
	assert.ErrorIs(t, err, ErrInvalid)

	raw := make([]byte, 256)
	for i := range raw {
		raw[i] = byte(255 - i)
	}
	path := filepath.Join(t.TempDir(), "table.bin")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	cfg.Kinetic.HashTable = path
	table, err := cfg.HashTable()
	require.NoError(t, err)
	assert.Equal(t, byte(255), table.Hash8WithSeed(0, 0))
}
