// Package output implements the output side of the panel: seven segment
// displays and LED banks behind a shared bus, and the PWM backlight.
package output

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by Panel.
var (
	ErrInvalidParam = errors.New("invalid output parameter")
	ErrDriver       = errors.New("no driver for output slot")
	ErrBusTimeout   = errors.New("output bus busy")
)

// Subsystem is what the dispatcher drives.
type Subsystem interface {
	// DisplayOut handles a display payload: [slot, bcd x4, dot].
	DisplayOut(payload []byte) error
	// LEDOut handles a LED payload: [slot, index, state].
	LEDOut(payload []byte) error
	// SetBrightness sets the backlight brightness.
	SetBrightness(v uint8)
}

// Driver is a device attached to an output slot.
type Driver interface{}

// DigitDriver drives a seven segment display.
type DigitDriver interface {
	SetDigits(digits []byte, dot byte) error
}

// LEDDriver drives a LED bank.
type LEDDriver interface {
	SetLEDs(index, state byte) error
}

// PWM receives the backlight level.
type PWM interface {
	SetLevel(level uint16)
}

// DeviceType is the kind of device configured for a slot.
type DeviceType int

// Device types.
const (
	DeviceNone DeviceType = iota
	DeviceGenericDigit
	DeviceGenericLED
	DeviceTM1639Digit
	DeviceTM1639LED
	DeviceTM1637Digit
	DeviceTM1637LED
)

var deviceTypeNames = []string{
	"none",
	"generic-digit",
	"generic-led",
	"tm1639-digit",
	"tm1639-led",
	"tm1637-digit",
	"tm1637-led",
}

// IsDigit checks if the device displays digits.
func (t DeviceType) IsDigit() bool {
	return t == DeviceGenericDigit || t == DeviceTM1639Digit || t == DeviceTM1637Digit
}

// IsLED checks if the device drives LEDs.
func (t DeviceType) IsLED() bool {
	return t == DeviceGenericLED || t == DeviceTM1639LED || t == DeviceTM1637LED
}

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	if t >= 0 && int(t) < len(deviceTypeNames) {
		return deviceTypeNames[t]
	}
	return fmt.Sprintf("device(%d)", int(t))
}

// ParseDeviceType parses a device type name.
func ParseDeviceType(s string) (DeviceType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DeviceNone, nil
	}
	for n, name := range deviceTypeNames {
		if name == s {
			return DeviceType(n), nil
		}
	}
	return DeviceNone, fmt.Errorf("unknown device type %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DeviceType) UnmarshalText(text []byte) error {
	v, err := ParseDeviceType(string(text))
	if err == nil {
		*t = v
	}
	return err
}
