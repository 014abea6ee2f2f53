package cycling

// SensorLocation is the Sensor Location (0x2A5D) value shared by cycling power and
// speed/cadence sensors.
type SensorLocation uint8

const (
	SensorLocationOther SensorLocation = iota
	SensorLocationTopOfShoe
	SensorLocationInShoe
	SensorLocationHip
	SensorLocationFrontWheel
	SensorLocationLeftCrank
	SensorLocationRightCrank
	SensorLocationLeftPedal
	SensorLocationRightPedal
	SensorLocationFrontHub
	SensorLocationRearDropout
	SensorLocationChainstay
	SensorLocationRearWheel
	SensorLocationRearHub
	SensorLocationChest
	SensorLocationSpider
	SensorLocationChainRing
)

var sensorLocationNames = [...]string{
	"Other", "Top of Shoe", "In Shoe", "Hip", "Front Wheel", "Left Crank", "Right Crank",
	"Left Pedal", "Right Pedal", "Front Hub", "Rear Dropout", "Chainstay", "Rear Wheel",
	"Rear Hub", "Chest", "Spider", "Chain Ring",
}

func (l SensorLocation) String() string {
	if int(l) < len(sensorLocationNames) {
		return sensorLocationNames[l]
	}
	return sensorLocationNames[SensorLocationOther]
}

// SensorLocationFromCode maps unknown codes to SensorLocationOther.
func SensorLocationFromCode(code uint8) SensorLocation {
	if int(code) < len(sensorLocationNames) {
		return SensorLocation(code)
	}
	return SensorLocationOther
}

// DecodeSensorLocation reads the single location byte. ok is false for an empty value.
func DecodeSensorLocation(buf []byte) (loc SensorLocation, ok bool) {
	if len(buf) == 0 {
		return SensorLocationOther, false
	}
	return SensorLocationFromCode(buf[0]), true
}
