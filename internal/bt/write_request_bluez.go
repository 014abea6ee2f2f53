//go:build !darwin && !windows

package bt

import "tinygo.org/x/bluetooth"

// writeRequest has no separate call on BlueZ: WriteValue without a "type" option
// already sends a write request when the characteristic supports one.
func writeRequest(char *bluetooth.DeviceCharacteristic, data []byte) (int, error) {
	return char.WriteWithoutResponse(data)
}
