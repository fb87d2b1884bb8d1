//go:build !windows

package bleframe

import "tinygo.org/x/bluetooth"

func deviceAddress(device bluetooth.Device) (string, bool) {
	return device.Address.String(), true
}
