package cycling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSpeedCadenceMeasurement(t *testing.T) {
	tests := []struct {
		name      string
		buf       []byte
		wheel     bool
		crank     bool
		truncated bool
		expected  Revolutions
	}{
		{
			name:  "wheel and crank",
			buf:   []byte{0x03, 0x0A, 0x00, 0x00, 0x00, 0x00, 0x04, 0x14, 0x00, 0x00, 0x08},
			wheel: true, crank: true,
			expected: Revolutions{
				HasWheelRevolutions: true, CumulativeWheelRevolutions: 10, LastWheelEventTime: 1024,
				HasCrankRevolutions: true, CumulativeCrankRevolutions: 20, LastCrankEventTime: 2048,
			},
		},
		{
			name:  "crank only",
			buf:   []byte{0x02, 0x14, 0x00, 0x00, 0x08},
			crank: true,
			expected: Revolutions{
				HasCrankRevolutions: true, CumulativeCrankRevolutions: 20, LastCrankEventTime: 2048,
			},
		},
		{
			name: "no data flagged",
			buf:  []byte{0x00, 0xFF, 0xFF},
		},
		{
			name:      "crank cut short",
			buf:       []byte{0x02, 0x14, 0x00},
			truncated: true,
		},
		{
			name:      "wheel cut short keeps nothing",
			buf:       []byte{0x03, 0x0A, 0x00, 0x00, 0x00, 0x00},
			truncated: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DecodeSpeedCadenceMeasurement(tt.buf)
			require.NotNil(t, m)
			assert.Equal(t, tt.truncated, m.Truncated)
			assert.Equal(t, tt.wheel, m.HasWheelRevolutions)
			assert.Equal(t, tt.crank, m.HasCrankRevolutions)
			assert.Equal(t, tt.expected, m.Revolutions)
		})
	}

	assert.Nil(t, DecodeSpeedCadenceMeasurement(nil))
}

func TestDecodeFeaturesAndLocation(t *testing.T) {
	pf := DecodePowerFeatures([]byte{0x0C, 0x00, 0x04, 0x00})
	require.NotNil(t, pf)
	assert.True(t, pf.Supports(PowerFeatureWheelRevolutionData))
	assert.True(t, pf.Supports(PowerFeatureCrankRevolutionData))
	assert.True(t, pf.Supports(PowerFeatureFactoryCalibrationDate))
	assert.False(t, pf.Supports(PowerFeaturePedalPowerBalance))
	assert.Equal(t, []PowerFeature{
		PowerFeatureWheelRevolutionData,
		PowerFeatureCrankRevolutionData,
		PowerFeatureFactoryCalibrationDate,
	}, pf.Supported())
	assert.Equal(t, "Crank Revolution Data", PowerFeatureCrankRevolutionData.String())
	assert.Equal(t, "Reserved", PowerFeature(30).String())
	assert.Nil(t, DecodePowerFeatures(nil))

	cf := DecodeSpeedCadenceFeatures([]byte{0x05, 0x00})
	require.NotNil(t, cf)
	assert.True(t, cf.WheelRevolutionData)
	assert.False(t, cf.CrankRevolutionData)
	assert.True(t, cf.MultipleSensorLocations)

	loc, ok := DecodeSensorLocation([]byte{0x05})
	assert.True(t, ok)
	assert.Equal(t, SensorLocationLeftCrank, loc)
	assert.Equal(t, "Left Crank", loc.String())

	loc, ok = DecodeSensorLocation([]byte{0x42})
	assert.True(t, ok)
	assert.Equal(t, SensorLocationOther, loc)

	_, ok = DecodeSensorLocation(nil)
	assert.False(t, ok)
}
