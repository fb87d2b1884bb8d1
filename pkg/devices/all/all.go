// Package all is a convenience wrapper that registers all known device drivers.
// Importing this package enables the bleframe factory to find a driver for any
// supported device.
package all

// Import each driver package for its side-effects (the init() function).
import (
	_ "github.com/mlsorensen/bleframe/pkg/devices/mock"
	_ "github.com/mlsorensen/bleframe/pkg/devices/notify"
)
