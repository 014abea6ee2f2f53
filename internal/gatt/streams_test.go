package gatt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func TestAllStreams_UniqueAndParseable(t *testing.T) {
	kinds := map[Kind]bool{}
	chars := map[string]bool{}
	for _, s := range AllStreams {
		assert.False(t, kinds[s.Kind], "duplicate kind %s", s.Kind)
		assert.False(t, chars[s.Key()], "duplicate characteristic %s", s.Characteristic)
		kinds[s.Kind] = true
		chars[s.Key()] = true

		for _, u := range []string{s.Service, s.UUID} {
			parsed, err := bluetooth.ParseUUID(u)
			require.NoError(t, err, "stream %s", s.Kind)
			assert.Equal(t, u, parsed.String(), "stream %s must use the canonical form", s.Kind)
		}
		assert.NotZero(t, s.Mode, "stream %s has no mode", s.Kind)
	}
}

func TestStreamLookups(t *testing.T) {
	s, ok := StreamByKind(KindIndoorBikeData)
	require.True(t, ok)
	assert.Equal(t, CharUUIDIndoorBikeData, s.UUID)
	assert.True(t, s.Mode.Has(ModeNotify))
	assert.False(t, s.Mode.Has(ModeWrite))

	_, ok = StreamByKind("nope")
	assert.False(t, ok)

	byChar, ok := StreamByCharacteristic(Characteristic{
		Service: strings.ToUpper(ServiceUUIDFTMS),
		UUID:    strings.ToUpper(CharUUIDFTMSControlPoint),
	})
	require.True(t, ok)
	assert.Equal(t, KindFTMSControlPoint, byChar.Kind)
	assert.True(t, byChar.Mode.Has(ModeWrite))

	kinetic := StreamsByService(ServiceUUIDKinetic)
	assert.Len(t, kinetic, 3)
	assert.Len(t, Kinds(), len(AllStreams))
}

func TestDeviceTypesFor(t *testing.T) {
	types := DeviceTypesFor([]string{ServiceUUIDCyclingPower, ServiceUUIDFTMS})
	ids := make([]DeviceTypeID, 0, len(types))
	for _, dt := range types {
		ids = append(ids, dt.ID)
	}
	assert.Equal(t, []DeviceTypeID{DeviceTypePowerMeter, DeviceTypeSmartTrainer}, ids)
	assert.Empty(t, DeviceTypesFor([]string{"0000ffff-0000-1000-8000-00805f9b34fb"}))
}

func TestDeviceType_NotifyStreams(t *testing.T) {
	for _, dt := range AllDeviceTypes {
		if dt.ID != DeviceTypeSmartTrainer {
			continue
		}
		var kinds []Kind
		for _, s := range dt.NotifyStreams() {
			kinds = append(kinds, s.Kind)
		}
		assert.Equal(t, []Kind{KindIndoorBikeData, KindTrainingStatus, KindFTMSControlPoint, KindFTMSMachineStatus}, kinds)
	}
}

func TestScanServiceUUIDs(t *testing.T) {
	uuids := ScanServiceUUIDs()
	assert.Contains(t, uuids, ServiceUUIDFTMS)
	assert.Contains(t, uuids, ServiceUUIDKinetic)
	seen := map[string]bool{}
	for _, u := range uuids {
		assert.False(t, seen[u])
		seen[u] = true
	}
}
