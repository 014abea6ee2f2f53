// Package simulator emulates a smart trainer on top of bt.MockDevice, so the monitor,
// exporter and dashboard can run without hardware.
package simulator

import (
	"context"
	"encoding/binary"
	"log"
	"math"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/trainer-protocol/internal/bt"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/cycling"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/ftms"
	"github.com/lowaak/smart-trainer/trainer-protocol/internal/gatt"
)

const (
	DefaultAddress = "00:00:00:00:00:01"
	DefaultName    = "Simulated Trainer"
)

var (
	hrMeasurement    = gatt.Characteristic{Service: gatt.ServiceUUIDHeartRate, UUID: gatt.CharUUIDHeartRateMeasurement}
	cscMeasurement   = gatt.Characteristic{Service: gatt.ServiceUUIDCyclingSpeedCadence, UUID: gatt.CharUUIDCSCMeasurement}
	powerMeasurement = gatt.Characteristic{Service: gatt.ServiceUUIDCyclingPower, UUID: gatt.CharUUIDCyclingPowerMeasurement}
	indoorBikeData   = gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDIndoorBikeData}
	controlPoint     = gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDFTMSControlPoint}
	machineStatus    = gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDFTMSMachineStatus}
)

// Values are the rider outputs the trainer reports.
type Values struct {
	HeartRate  uint8
	PowerWatts int16
	CadenceRpm float64
	SpeedKmh   float64
}

// Trainer answers FTMS control point writes and produces heart rate, speed/cadence,
// cycling power and indoor bike data notifications.
type Trainer struct {
	logger *log.Logger
	device *bt.MockDevice

	mu              sync.Mutex
	values          Values
	circumferenceCM float64
	last            time.Time

	crankRevolutions uint16
	crankEventTime   uint16 // 1/1024 s
	crankRemainder   float64
	wheelRevolutions uint32
	wheelEventTime   uint16 // 1/1024 s
	wheelRemainder   float64
}

// NewTrainer creates a connected simulated trainer.
func NewTrainer(logger *log.Logger, address, name string) *Trainer {
	if logger == nil {
		panic("Simulator: logger cannot be nil")
	}
	device := bt.NewMockDevice(logger, address, name,
		gatt.ServiceUUIDHeartRate,
		gatt.ServiceUUIDCyclingSpeedCadence,
		gatt.ServiceUUIDCyclingPower,
		gatt.ServiceUUIDFTMS,
		gatt.ServiceUUIDDeviceInformation,
	)
	t := &Trainer{
		logger:          logger,
		device:          device,
		values:          Values{HeartRate: 70, PowerWatts: 100, CadenceRpm: 80, SpeedKmh: 25},
		circumferenceCM: cycling.DefaultWheelCircumferenceCM,
	}

	// cadence and power measurement; resistance, power, simulation and wheel targets
	device.SetRead(gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDFTMSFeature},
		[]byte{0x02, 0x40, 0x00, 0x00, 0x0C, 0x60, 0x00, 0x00})
	device.SetRead(gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDSupportedPowerRange},
		[]byte{0x19, 0x00, 0xD0, 0x07, 0x01, 0x00})
	device.SetRead(gatt.Characteristic{Service: gatt.ServiceUUIDFTMS, UUID: gatt.CharUUIDSupportedResistanceRange},
		[]byte{0x00, 0x00, 0xE8, 0x03, 0x0A, 0x00})
	device.SetRead(gatt.Characteristic{Service: gatt.ServiceUUIDDeviceInformation, UUID: gatt.CharUUIDSystemID},
		[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	device.OnWrite(t.handleWrite)
	device.SetConnected(true)
	return t
}

// Device is the transport the simulated trainer talks through.
func (t *Trainer) Device() *bt.MockDevice {
	return t.device
}

func (t *Trainer) SetValues(v Values) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values = v
}

func (t *Trainer) Values() Values {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.values
}

// Run sends a round of notifications every interval until ctx ends.
func (t *Trainer) Run(ctx context.Context, interval time.Duration) {
	t.logger.Printf("Simulator: running %s every %v", t.device.Name(), interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.logger.Printf("Simulator: stopped")
			return
		case now := <-ticker.C:
			t.Tick(now)
		}
	}
}

// Tick advances the cumulative counters to now and pushes every measurement.
func (t *Trainer) Tick(now time.Time) {
	t.mu.Lock()
	t.advance(now)
	v := t.values
	hr := []byte{0x00, v.HeartRate}
	csc := t.speedCadencePayload()
	power := t.powerPayload()
	t.mu.Unlock()

	t.device.Push(hrMeasurement, hr)
	t.device.Push(cscMeasurement, csc)
	t.device.Push(powerMeasurement, power)
	t.device.Push(indoorBikeData, indoorBikePayload(v))
}

// advance accumulates whole revolutions and carries the fraction. Callers hold mu.
func (t *Trainer) advance(now time.Time) {
	if t.last.IsZero() {
		t.last = now
		return
	}
	elapsed := now.Sub(t.last).Seconds()
	t.last = now
	if elapsed <= 0 {
		return
	}
	ticks := uint16(math.Round(elapsed * cycling.CrankTimeResolutionHz))

	if t.values.CadenceRpm > 0 {
		revs := t.values.CadenceRpm/60*elapsed + t.crankRemainder
		whole := math.Floor(revs)
		t.crankRemainder = revs - whole
		t.crankRevolutions += uint16(whole)
		t.crankEventTime += ticks
	}
	if t.values.SpeedKmh > 0 && t.circumferenceCM > 0 {
		metersPerSecond := t.values.SpeedKmh / 3.6
		revs := metersPerSecond/(t.circumferenceCM/100)*elapsed + t.wheelRemainder
		whole := math.Floor(revs)
		t.wheelRemainder = revs - whole
		t.wheelRevolutions += uint32(whole)
		t.wheelEventTime += ticks
	}
}

// speedCadencePayload is a CSC Measurement with wheel and crank data.
func (t *Trainer) speedCadencePayload() []byte {
	buf := []byte{0x03}
	buf = binary.LittleEndian.AppendUint32(buf, t.wheelRevolutions)
	buf = binary.LittleEndian.AppendUint16(buf, t.wheelEventTime)
	buf = binary.LittleEndian.AppendUint16(buf, t.crankRevolutions)
	return binary.LittleEndian.AppendUint16(buf, t.crankEventTime)
}

// powerPayload is a Cycling Power Measurement with crank revolution data.
func (t *Trainer) powerPayload() []byte {
	buf := binary.LittleEndian.AppendUint16(nil, 1<<5)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(t.values.PowerWatts))
	buf = binary.LittleEndian.AppendUint16(buf, t.crankRevolutions)
	return binary.LittleEndian.AppendUint16(buf, t.crankEventTime)
}

// indoorBikePayload carries speed, cadence, power and heart rate.
func indoorBikePayload(v Values) []byte {
	buf := binary.LittleEndian.AppendUint16(nil, 1<<2|1<<6|1<<9)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(math.Round(v.SpeedKmh*100)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(math.Round(v.CadenceRpm*2)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(v.PowerWatts))
	return append(buf, v.HeartRate)
}

func (t *Trainer) handleWrite(c gatt.Characteristic, data []byte) {
	if c.Key() != controlPoint.Key() || len(data) == 0 {
		return
	}
	op := ftms.ControlOpCode(data[0])
	result := ftms.ResultSuccess
	var status []byte

	switch op {
	case ftms.OpRequestControl, ftms.OpStartOrResume:
	case ftms.OpReset:
		status = []byte{byte(ftms.StatusReset)}
	case ftms.OpStopOrPause:
		status = []byte{byte(ftms.StatusStoppedOrPausedByUser), 0x01}
		if len(data) > 1 {
			status[1] = data[1]
		}
	case ftms.OpSetTargetPower:
		if len(data) < 3 {
			result = ftms.ResultInvalidParameter
			break
		}
		watts := int16(binary.LittleEndian.Uint16(data[1:3]))
		t.mu.Lock()
		t.values.PowerWatts = watts
		t.mu.Unlock()
		t.logger.Printf("Simulator: target power %d W", watts)
		status = append([]byte{byte(ftms.StatusTargetPowerChanged)}, data[1:3]...)
	case ftms.OpSetTargetResistanceLevel:
		if len(data) < 3 {
			result = ftms.ResultInvalidParameter
			break
		}
		status = append([]byte{byte(ftms.StatusTargetResistanceLevelChanged)}, data[1:3]...)
	case ftms.OpSetIndoorBikeSimulation:
		if len(data) < 7 {
			result = ftms.ResultInvalidParameter
			break
		}
		status = append([]byte{byte(ftms.StatusIndoorBikeSimulationParametersChanged)}, data[1:7]...)
	case ftms.OpSetWheelCircumference:
		if len(data) < 3 {
			result = ftms.ResultInvalidParameter
			break
		}
		mm := float64(binary.LittleEndian.Uint16(data[1:3])) / 10
		t.mu.Lock()
		t.circumferenceCM = mm / 10
		t.mu.Unlock()
		status = append([]byte{byte(ftms.StatusWheelCircumferenceChanged)}, data[1:3]...)
	default:
		result = ftms.ResultOpCodeNotSupported
	}

	t.device.Push(controlPoint, []byte{byte(ftms.OpResponseCode), byte(op), byte(result)})
	if status != nil {
		t.device.Push(machineStatus, status)
	}
}
