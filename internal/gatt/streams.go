package gatt

import (
	"slices"
	"strings"
)

// Characteristic addresses one characteristic within a service.
type Characteristic struct {
	Service string
	UUID    string
}

func (c Characteristic) String() string {
	return c.Service + "/" + c.UUID
}

// Key is a map key that ignores UUID case.
func (c Characteristic) Key() string {
	return strings.ToLower(c.Service) + "_" + strings.ToLower(c.UUID)
}

// Mode is a set of ways we use a characteristic.
type Mode uint8

const (
	ModeNotify Mode = 1 << iota // subscribe to notifications or indications
	ModeRead                    // one-time read
	ModeWrite                   // write commands
)

func (m Mode) Has(flag Mode) bool {
	return m&flag != 0
}

// Kind identifies a stream and selects its decoder.
type Kind string

const (
	KindHeartRate                Kind = "heart_rate"
	KindBodySensorLocation       Kind = "body_sensor_location"
	KindSpeedCadence             Kind = "speed_cadence"
	KindSpeedCadenceFeature      Kind = "speed_cadence_feature"
	KindSensorLocation           Kind = "sensor_location"
	KindCyclingPower             Kind = "cycling_power"
	KindCyclingPowerFeature      Kind = "cycling_power_feature"
	KindIndoorBikeData           Kind = "indoor_bike_data"
	KindFTMSFeature              Kind = "ftms_feature"
	KindTrainingStatus           Kind = "training_status"
	KindSupportedResistanceRange Kind = "supported_resistance_range"
	KindSupportedPowerRange      Kind = "supported_power_range"
	KindFTMSControlPoint         Kind = "ftms_control_point"
	KindFTMSMachineStatus        Kind = "ftms_machine_status"
	KindSystemID                 Kind = "system_id"
	KindInRideControlPoint       Kind = "inride_control_point"
	KindSmartControlControlPoint Kind = "smart_control_control_point"
	KindKineticConfig            Kind = "kinetic_config"
	KindKineticControlPoint      Kind = "kinetic_control_point"
	KindKineticDebug             Kind = "kinetic_debug"
)

// Stream ties a kind to the characteristic that carries it.
type Stream struct {
	Kind        Kind
	DisplayName string
	Description string
	Characteristic
	Mode Mode
}

// AllStreams is the registry of every characteristic we decode or write.
var AllStreams = []Stream{
	{KindHeartRate, "Heart Rate", "Heart rate and RR intervals", Characteristic{ServiceUUIDHeartRate, CharUUIDHeartRateMeasurement}, ModeNotify},
	{KindBodySensorLocation, "Body Sensor Location", "Where the heart rate sensor sits", Characteristic{ServiceUUIDHeartRate, CharUUIDBodySensorLocation}, ModeRead},
	{KindSpeedCadence, "Speed & Cadence", "Wheel and crank revolutions", Characteristic{ServiceUUIDCyclingSpeedCadence, CharUUIDCSCMeasurement}, ModeNotify},
	{KindSpeedCadenceFeature, "CSC Features", "Supported speed and cadence data", Characteristic{ServiceUUIDCyclingSpeedCadence, CharUUIDCSCFeature}, ModeRead},
	{KindSensorLocation, "Sensor Location", "Where the cycling sensor is mounted", Characteristic{ServiceUUIDCyclingPower, CharUUIDSensorLocation}, ModeRead},
	{KindCyclingPower, "Cycling Power", "Power, revolutions and force data", Characteristic{ServiceUUIDCyclingPower, CharUUIDCyclingPowerMeasurement}, ModeNotify},
	{KindCyclingPowerFeature, "Power Features", "Supported power meter data", Characteristic{ServiceUUIDCyclingPower, CharUUIDCyclingPowerFeature}, ModeRead},
	{KindIndoorBikeData, "Indoor Bike Data", "Speed, cadence and power from a smart trainer", Characteristic{ServiceUUIDFTMS, CharUUIDIndoorBikeData}, ModeNotify},
	{KindFTMSFeature, "Trainer Features", "Machine and target setting features", Characteristic{ServiceUUIDFTMS, CharUUIDFTMSFeature}, ModeRead},
	{KindTrainingStatus, "Training Status", "Current training phase", Characteristic{ServiceUUIDFTMS, CharUUIDTrainingStatus}, ModeNotify | ModeRead},
	{KindSupportedResistanceRange, "Resistance Range", "Min/max resistance level", Characteristic{ServiceUUIDFTMS, CharUUIDSupportedResistanceRange}, ModeRead},
	{KindSupportedPowerRange, "Power Range", "Min/max watts supported by the trainer", Characteristic{ServiceUUIDFTMS, CharUUIDSupportedPowerRange}, ModeRead},
	{KindFTMSControlPoint, "Trainer Control", "Control point writes and their responses", Characteristic{ServiceUUIDFTMS, CharUUIDFTMSControlPoint}, ModeWrite | ModeNotify},
	{KindFTMSMachineStatus, "Machine Status", "Changes applied by the trainer", Characteristic{ServiceUUIDFTMS, CharUUIDFTMSMachineStatus}, ModeNotify},
	{KindSystemID, "System ID", "Device system identifier", Characteristic{ServiceUUIDDeviceInformation, CharUUIDSystemID}, ModeRead},
	{KindInRideControlPoint, "inRide Control", "inRide sensor commands", Characteristic{ServiceUUIDInRide, CharUUIDInRideControlPoint}, ModeWrite},
	{KindSmartControlControlPoint, "Smart Control", "Smart Control commands and firmware", Characteristic{ServiceUUIDSmartControl, CharUUIDSmartControlControlPoint}, ModeWrite},
	{KindKineticConfig, "Kinetic Config", "Calibration and firmware state", Characteristic{ServiceUUIDKinetic, CharUUIDKineticConfig}, ModeNotify | ModeRead},
	{KindKineticControlPoint, "Kinetic Control", "Kinetic control point writes and responses", Characteristic{ServiceUUIDKinetic, CharUUIDKineticControlPoint}, ModeWrite | ModeNotify},
	{KindKineticDebug, "Kinetic Debug", "Resistance unit diagnostics", Characteristic{ServiceUUIDKinetic, CharUUIDKineticDebug}, ModeNotify},
}

// StreamByKind returns the registered stream for kind.
func StreamByKind(kind Kind) (Stream, bool) {
	for _, s := range AllStreams {
		if s.Kind == kind {
			return s, true
		}
	}
	return Stream{}, false
}

// StreamByCharacteristic finds the stream carried by c.
func StreamByCharacteristic(c Characteristic) (Stream, bool) {
	key := c.Key()
	for _, s := range AllStreams {
		if s.Key() == key {
			return s, true
		}
	}
	return Stream{}, false
}

// StreamsByService returns the streams of one service.
func StreamsByService(serviceUUID string) []Stream {
	var result []Stream
	for _, s := range AllStreams {
		if strings.EqualFold(s.Service, serviceUUID) {
			result = append(result, s)
		}
	}
	return result
}

// Kinds lists every registered kind, for flag help and validation.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(AllStreams))
	for _, s := range AllStreams {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

// DeviceTypeID names a category of device.
type DeviceTypeID string

const (
	DeviceTypeHeartRateMonitor DeviceTypeID = "heart_rate_monitor"
	DeviceTypeCadenceSensor    DeviceTypeID = "cadence_sensor"
	DeviceTypePowerMeter       DeviceTypeID = "power_meter"
	DeviceTypeSmartTrainer     DeviceTypeID = "smart_trainer"
	DeviceTypeInRide           DeviceTypeID = "inride"
	DeviceTypeSmartControl     DeviceTypeID = "smart_control"
)

// DeviceType is a category recognised from the services a device advertises.
type DeviceType struct {
	ID          DeviceTypeID
	DisplayName string
	// A device belongs to the type when it advertises any of these services.
	ScanServiceUUIDs []string
	Streams          []Kind
}

var AllDeviceTypes = []DeviceType{
	{DeviceTypeHeartRateMonitor, "Heart Rate Monitor", []string{ServiceUUIDHeartRate},
		[]Kind{KindHeartRate, KindBodySensorLocation}},
	{DeviceTypeCadenceSensor, "Speed/Cadence Sensor", []string{ServiceUUIDCyclingSpeedCadence},
		[]Kind{KindSpeedCadence, KindSpeedCadenceFeature}},
	{DeviceTypePowerMeter, "Power Meter", []string{ServiceUUIDCyclingPower},
		[]Kind{KindCyclingPower, KindCyclingPowerFeature, KindSensorLocation}},
	{DeviceTypeSmartTrainer, "Smart Trainer", []string{ServiceUUIDFTMS},
		[]Kind{KindIndoorBikeData, KindFTMSFeature, KindTrainingStatus, KindSupportedResistanceRange,
			KindSupportedPowerRange, KindFTMSControlPoint, KindFTMSMachineStatus}},
	{DeviceTypeInRide, "Kinetic inRide", []string{ServiceUUIDInRide},
		[]Kind{KindInRideControlPoint, KindSystemID}},
	{DeviceTypeSmartControl, "Kinetic Smart Control", []string{ServiceUUIDSmartControl, ServiceUUIDKinetic},
		[]Kind{KindSmartControlControlPoint, KindKineticConfig, KindKineticControlPoint, KindKineticDebug, KindSystemID}},
}

// Matches reports whether a device advertising serviceUUIDs belongs to this type.
func (dt DeviceType) Matches(serviceUUIDs []string) bool {
	for _, advertised := range serviceUUIDs {
		if slices.ContainsFunc(dt.ScanServiceUUIDs, func(u string) bool { return strings.EqualFold(u, advertised) }) {
			return true
		}
	}
	return false
}

// NotifyStreams returns the streams of this type to subscribe to.
func (dt DeviceType) NotifyStreams() []Stream {
	var result []Stream
	for _, kind := range dt.Streams {
		if s, ok := StreamByKind(kind); ok && s.Mode.Has(ModeNotify) {
			result = append(result, s)
		}
	}
	return result
}

// DeviceTypesFor classifies a device by its advertised services.
func DeviceTypesFor(serviceUUIDs []string) []DeviceType {
	var result []DeviceType
	for _, dt := range AllDeviceTypes {
		if dt.Matches(serviceUUIDs) {
			result = append(result, dt)
		}
	}
	return result
}

// ScanServiceUUIDs is the deduplicated scan filter covering every device type.
func ScanServiceUUIDs() []string {
	var result []string
	for _, dt := range AllDeviceTypes {
		for _, u := range dt.ScanServiceUUIDs {
			if !slices.Contains(result, u) {
				result = append(result, u)
			}
		}
	}
	return result
}
