package bleframe

import "tinygo.org/x/bluetooth"

// The WinRT device handle does not carry the peer address.
func deviceAddress(bluetooth.Device) (string, bool) {
	return "", false
}
