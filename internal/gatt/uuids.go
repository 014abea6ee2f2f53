// Package gatt names the BLE services and characteristics trainers expose and maps each
// one to a stream kind the decoders understand.
package gatt

// Standard services and characteristics. Strings are lower case, the form
// bluetooth.UUID.String() produces.
const (
	ServiceUUIDDeviceInformation = "0000180a-0000-1000-8000-00805f9b34fb"
	CharUUIDSystemID             = "00002a23-0000-1000-8000-00805f9b34fb"
	CharUUIDFirmwareRevision     = "00002a26-0000-1000-8000-00805f9b34fb"

	ServiceUUIDHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateMeasurement = "00002a37-0000-1000-8000-00805f9b34fb"
	CharUUIDBodySensorLocation   = "00002a38-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateControl     = "00002a39-0000-1000-8000-00805f9b34fb"

	ServiceUUIDCyclingSpeedCadence = "00001816-0000-1000-8000-00805f9b34fb"
	CharUUIDCSCMeasurement         = "00002a5b-0000-1000-8000-00805f9b34fb"
	CharUUIDCSCFeature             = "00002a5c-0000-1000-8000-00805f9b34fb"
	CharUUIDSensorLocation         = "00002a5d-0000-1000-8000-00805f9b34fb"

	ServiceUUIDCyclingPower         = "00001818-0000-1000-8000-00805f9b34fb"
	CharUUIDCyclingPowerMeasurement = "00002a63-0000-1000-8000-00805f9b34fb"
	CharUUIDCyclingPowerFeature     = "00002a65-0000-1000-8000-00805f9b34fb"

	ServiceUUIDFTMS                  = "00001826-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSFeature              = "00002acc-0000-1000-8000-00805f9b34fb"
	CharUUIDIndoorBikeData           = "00002ad2-0000-1000-8000-00805f9b34fb"
	CharUUIDTrainingStatus           = "00002ad3-0000-1000-8000-00805f9b34fb"
	CharUUIDSupportedResistanceRange = "00002ad6-0000-1000-8000-00805f9b34fb"
	CharUUIDSupportedPowerRange      = "00002ad8-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSControlPoint         = "00002ad9-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSMachineStatus        = "00002ada-0000-1000-8000-00805f9b34fb"
)

// Kinetic vendor services.
const (
	ServiceUUIDInRide          = "e9410100-b434-446b-b5cc-36592fc4c724"
	CharUUIDInRideMeasurement  = "e9410101-b434-446b-b5cc-36592fc4c724"
	CharUUIDInRideControlPoint = "e9410102-b434-446b-b5cc-36592fc4c724"
	CharUUIDInRideConfig       = "e9410104-b434-446b-b5cc-36592fc4c724"

	ServiceUUIDSmartControl          = "e9410200-b434-446b-b5cc-36592fc4c724"
	CharUUIDSmartControlPower        = "e9410201-b434-446b-b5cc-36592fc4c724"
	CharUUIDSmartControlConfig       = "e9410202-b434-446b-b5cc-36592fc4c724"
	CharUUIDSmartControlControlPoint = "e9410203-b434-446b-b5cc-36592fc4c724"
	CharUUIDSmartControlDebug        = "e9410204-b434-446b-b5cc-36592fc4c724"

	ServiceUUIDKinetic          = "e9410300-b434-446b-b5cc-36592fc4c724"
	CharUUIDKineticConfig       = "e9410301-b434-446b-b5cc-36592fc4c724"
	CharUUIDKineticControlPoint = "e9410302-b434-446b-b5cc-36592fc4c724"
	CharUUIDKineticDebug        = "e9410303-b434-446b-b5cc-36592fc4c724"
	CharUUIDKineticSystemWeight = "e9410304-b434-446b-b5cc-36592fc4c724"
)
