package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/capture"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/devicestore"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/kinetic/smartcontrol"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/telemetry"
)

var testLogger = log.New(io.Discard, "", 0)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	dir       string
	storePath string
	tablePath string
	dial      DialFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	table := make([]byte, 256)
	for i := range table {
		table[i] = byte(i*7 + 3)
	}
	tablePath := filepath.Join(dir, "table.bin")
	require.NoError(t, os.WriteFile(tablePath, table, 0o644))

	return &testEnv{dir: dir, storePath: filepath.Join(dir, "devices.json"), tablePath: tablePath}
}

func (e *testEnv) hashTable(t *testing.T) *kinetic.HashTable {
	t.Helper()
	table, err := kinetic.LoadHashTable(e.tablePath)
	require.NoError(t, err)
	return table
}

// run executes one trainerctl invocation and returns what it printed.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	a := NewApp(out)
	a.dial = e.dial
	root := NewRootCommand(a)
	root.SetArgs(append([]string{"--log-file", filepath.Join(e.dir, "trainerctl.log"), "--store", e.storePath}, args...))
	err := root.ExecuteContext(context.Background())
	require.NoError(t, a.teardown())
	return out.String(), err
}

func mockDial(device bt.Device) DialFunc {
	return func(ctx context.Context, typeID gatt.DeviceTypeID) (bt.Device, func(), error) {
		return device, func() {}, nil
	}
}

func TestDecode(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "decode", "indoor_bike_data", "44 02 c4 09 b4 00 c8 00 96")
	require.NoError(t, err)
	assert.Contains(t, out, "indoor_bike_data:")
	assert.Contains(t, out, "200 W")
	assert.Contains(t, out, "150 bpm")
	assert.Contains(t, out, "25.0 km/h")

	out, err = env.run(t, "decode", "system_id", "01:02:03:04:05:0a")
	require.NoError(t, err)
	assert.Contains(t, out, "system_id: 01:02:03:04:05:0A")
}

func TestDecode_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "decode", "bogus", "00")
	assert.ErrorIs(t, err, telemetry.ErrUnknownKind)

	_, err = env.run(t, "decode", "heart_rate", "zz")
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)

	_, err = env.run(t, "decode", "heart_rate")
	assert.Error(t, err)
}

func TestEncodeFTMS(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"power", "200"}, "05c800"},
		{[]string{"request-control"}, "00"},
		{[]string{"stop"}, "0801"},
		{[]string{"simulation", "4.5"}, "110000c2012833"},
		{[]string{"simulation", "1", "2", "0.005", "0.6"}, "11d0076400323c"},
	}
	for _, tc := range cases {
		out, err := env.run(t, append([]string{"encode", "ftms"}, tc.args...)...)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want+"\n", out, tc.args)
	}

	_, err := env.run(t, "encode", "ftms", "warp")
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)
	_, err = env.run(t, "encode", "ftms", "power")
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)
	_, err = env.run(t, "encode", "ftms", "power", "lots")
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)
}

func TestEncodeFTMS_SendToSimulator(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.run(t, "--simulate", "encode", "ftms", "power", "200", "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "05c800\n")
	assert.Contains(t, out, "Set Target Power: Success")
}

func TestEncodeInRide(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "--system-id", "01:02:03:04:05:06", "encode", "inride", "start-calibration")
	require.NoError(t, err)
	assert.Equal(t, "050103\n", out)

	out, err = env.run(t, "--system-id", "01:02:03:04:05:06", "encode", "inride", "name", "Bike")
	require.NoError(t, err)
	assert.Equal(t, "05010242696b65\n", out)

	_, err = env.run(t, "encode", "inride", "start-calibration")
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)
}

func TestEncodeSmart(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "--hash-table", env.tablePath, "encode", "smart", "erg", "250", "--nonce", "0x11")
	require.NoError(t, err)
	raw, err := hex.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	enc := smartcontrol.NewEncoder(env.hashTable(t))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0xFA, 0x11}, enc.Deobfuscate(raw))

	_, err = env.run(t, "encode", "smart", "erg", "250")
	assert.Error(t, err)
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t)
	store := devicestore.Open(testLogger, env.storePath)
	require.NoError(t, store.Remember("AA:BB:CC:DD:EE:FF", "KICKR", []gatt.DeviceTypeID{gatt.DeviceTypeSmartTrainer}, time.Now()))

	_, err := env.run(t, "devices", "prefer", "smart_trainer", "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	out, err := env.run(t, "devices")
	require.NoError(t, err)
	assert.Contains(t, out, "AA:BB:CC:DD:EE:FF")
	assert.Contains(t, out, "KICKR")
	assert.Contains(t, out, "smart_trainer")

	_, err = env.run(t, "devices", "prefer", "toaster", "AA")
	assert.Error(t, err)
	_, err = env.run(t, "devices", "forget", "11:22")
	assert.ErrorIs(t, err, bt.ErrUnknownDevice)

	_, err = env.run(t, "devices", "forget", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	out, err = env.run(t, "devices")
	require.NoError(t, err)
	assert.Contains(t, out, "No known devices")
}

func TestWriteDeviceTable(t *testing.T) {
	var buf bytes.Buffer
	writeDeviceTable(&buf, nil)
	assert.Equal(t, "No devices found\n", buf.String())

	buf.Reset()
	hr := bt.NewMockDevice(testLogger, "AA", "", gatt.ServiceUUIDHeartRate)
	trainer := bt.NewMockDevice(testLogger, "BB", "Trainer", gatt.ServiceUUIDFTMS, gatt.ServiceUUIDCyclingPower)
	writeDeviceTable(&buf, []bt.Device{hr, trainer})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Unknown")
	assert.Contains(t, lines[1], "Heart Rate Monitor")
	assert.Contains(t, lines[2], "-50")
	assert.Contains(t, lines[2], "Power Meter, Smart Trainer")
}

func TestMonitorAndReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the simulator in real time")
	}
	env := newTestEnv(t)
	capturePath := filepath.Join(env.dir, "ride.cbor")

	out, err := env.run(t, "--simulate", "monitor", "--duration", "1500ms", "--capture", capturePath, "--exporter", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Serving metrics on http://127.0.0.1:")
	assert.Contains(t, out, "Monitoring Simulated Trainer")
	assert.Contains(t, out, "indoor_bike_data")
	assert.Contains(t, out, "heart_rate=70 bpm")

	r, err := capture.Open(capturePath)
	require.NoError(t, err)
	f, err := r.Next()
	require.NoError(t, err)
	assert.NotEmpty(t, f.Data)
	require.NoError(t, r.Close())

	out, err = env.run(t, "replay", capturePath, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed")
	assert.Contains(t, out, "Heart Rate")
	assert.Contains(t, out, "70 bpm")
}

func TestMonitor_UnknownKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "--simulate", "monitor", "--kinds", "heart_rate,warp_drive")
	assert.ErrorIs(t, err, telemetry.ErrUnknownKind)
}

func TestReplay_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "replay", filepath.Join(env.dir, "nope.cbor"))
	assert.Error(t, err)
}

func kineticConfig(state smartcontrol.CalibrationState, spindownMs uint16) []byte {
	return []byte{0, 0, byte(state), byte(spindownMs), byte(spindownMs >> 8), 0, 1, 0}
}

func TestCalibrateSmartControl(t *testing.T) {
	env := newTestEnv(t)
	device := bt.NewMockDevice(testLogger, "CC:00", "KINETIC SC", gatt.ServiceUUIDSmartControl, gatt.ServiceUUIDKinetic)
	device.SetConnected(true)
	config := gatt.Characteristic{Service: gatt.ServiceUUIDKinetic, UUID: gatt.CharUUIDKineticConfig}
	device.OnWrite(func(c gatt.Characteristic, data []byte) {
		if c != smartControlPoint {
			return
		}
		device.Push(config, kineticConfig(smartcontrol.CalibrationSpeedUp, 0))
		device.Push(config, kineticConfig(smartcontrol.CalibrationSpeedUp, 0))
		device.Push(config, kineticConfig(smartcontrol.CalibrationStartCoasting, 0))
		device.Push(config, kineticConfig(smartcontrol.CalibrationComplete, 300))
	})
	env.dial = mockDial(device)

	out, err := env.run(t, "--hash-table", env.tablePath, "calibrate", "--timeout", "2s")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Speed Up"))
	assert.Contains(t, out, "Calibration: Speed Up (pedal up to speed)")
	assert.Contains(t, out, "Calibration: Start Coasting (stop pedalling and coast)")
	assert.Contains(t, out, "Calibration: Complete")
	assert.Contains(t, out, "Spin down time: 300ms")

	writes := device.Writes()
	require.Len(t, writes, 1)
	enc := smartcontrol.NewEncoder(env.hashTable(t))
	plain := enc.Deobfuscate(writes[0].Data)
	assert.Equal(t, []byte{smartcontrol.ControlSpindownCalibration, 0x01}, plain[:2])
	assert.False(t, device.NotificationsEnabled(config))
}

func TestCalibrateSmartControl_Timeout(t *testing.T) {
	env := newTestEnv(t)
	device := bt.NewMockDevice(testLogger, "CC:00", "KINETIC SC", gatt.ServiceUUIDSmartControl, gatt.ServiceUUIDKinetic)
	device.SetConnected(true)
	env.dial = mockDial(device)

	_, err := env.run(t, "--hash-table", env.tablePath, "calibrate", "--timeout", "50ms")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalibrateInRide(t *testing.T) {
	env := newTestEnv(t)
	device := bt.NewMockDevice(testLogger, "DD:00", "inRide", gatt.ServiceUUIDInRide)
	device.SetConnected(true)
	env.dial = mockDial(device)

	out, err := env.run(t, "--system-id", "01:02:03:04:05:06", "calibrate", "--inride", "--spindown", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Spin down time set to 1.00s")
	assert.Contains(t, out, "Calibration started on DD:00")

	writes := device.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, []byte{0x05, 0x01, 0x05, 0x00, 0x80, 0x00, 0x00}, writes[0].Data)
	assert.Equal(t, []byte{0x05, 0x01, 0x03}, writes[1].Data)

	_, err = env.run(t, "--system-id", "01:02:03:04:05:06", "calibrate", "--inride", "--stop")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x01, 0x04}, device.Writes()[2].Data)
}

func TestFirmware(t *testing.T) {
	env := newTestEnv(t)
	sid := []byte{1, 2, 3, 4, 5, 6}
	device := bt.NewMockDevice(testLogger, "EE:00", "KINETIC SC", gatt.ServiceUUIDSmartControl, gatt.ServiceUUIDDeviceInformation)
	device.SetConnected(true)
	device.SetRead(gatt.Characteristic{Service: gatt.ServiceUUIDDeviceInformation, UUID: gatt.CharUUIDSystemID}, sid)
	env.dial = mockDial(device)

	image := bytes.Repeat([]byte{0xAB}, 40)
	imagePath := filepath.Join(env.dir, "fw.bin")
	require.NoError(t, os.WriteFile(imagePath, image, 0o644))

	out, err := env.run(t, "--hash-table", env.tablePath, "firmware", imagePath, "--packet-interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Flashing 40 bytes to KINETIC SC (EE:00)")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "Firmware sent in")
	assert.Len(t, device.Writes(), 3)

	stored, ok := devicestore.Open(testLogger, env.storePath).SystemID("EE:00")
	require.True(t, ok)
	assert.Equal(t, sid, stored)
}

func TestFirmware_Errors(t *testing.T) {
	env := newTestEnv(t)
	device := bt.NewMockDevice(testLogger, "EE:00", "KINETIC SC", gatt.ServiceUUIDSmartControl)
	device.SetConnected(true)
	env.dial = mockDial(device)

	imagePath := filepath.Join(env.dir, "fw.bin")
	require.NoError(t, os.WriteFile(imagePath, []byte{1, 2, 3}, 0o644))

	_, err := env.run(t, "firmware", imagePath)
	assert.Error(t, err, "no hash table")

	_, err = env.run(t, "--hash-table", env.tablePath, "firmware", imagePath)
	assert.Error(t, err, "system id unreadable")

	_, err = env.run(t, "--hash-table", env.tablePath, "firmware", filepath.Join(env.dir, "missing.bin"))
	assert.Error(t, err)
}

func TestDialBLE_NoAddress(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "monitor", "--duration", "10ms")
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestParseHex(t *testing.T) {
	for _, in := range []string{"0a1b", "0a 1b", "0a:1b", "0x0a1b", "0A-1B"} {
		buf, err := parseHex(in)
		require.NoError(t, err, in)
		assert.Equal(t, []byte{0x0A, 0x1B}, buf, in)
	}
	_, err := parseHex("0a1")
	assert.ErrorIs(t, err, kinetic.ErrInvalidInput)
}
