//go:build darwin || windows

package bt

import "tinygo.org/x/bluetooth"

// writeRequest writes and waits for the peripheral's acknowledgement.
func writeRequest(char *bluetooth.DeviceCharacteristic, data []byte) (int, error) {
	return char.Write(data)
}
