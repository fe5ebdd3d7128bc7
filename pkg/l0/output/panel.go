package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// NumSlots is the number of output slots behind the bus multiplexer.
const NumSlots = 8

// DefaultBusTimeout is the default wait for the bus.
const DefaultBusTimeout = time.Second

// Minimum payload lengths.
const (
	DisplayPayloadLen = 6
	LEDPayloadLen     = 3
)

// Panel is the reference Subsystem: drivers in slots behind a Bus.
type Panel struct {
	BusTimeout time.Duration

	bus   *Bus
	stats *stats.Registry

	lock    sync.RWMutex
	types   [NumSlots]DeviceType
	drivers [NumSlots]Driver
	pwm     PWM
	level   atomic.Uint32
}

// NewPanel creates a Panel with all slots unconfigured.
func NewPanel(bus *Bus, reg *stats.Registry) *Panel {
	if bus == nil {
		bus = NewBus()
	}
	return &Panel{BusTimeout: DefaultBusTimeout, bus: bus, stats: reg}
}

// Configure sets the device type and driver of a 1-based slot.
// A nil driver leaves the slot configured but without a driver.
func (p *Panel) Configure(slot int, t DeviceType, d Driver) error {
	if slot < 1 || slot > NumSlots {
		return fmt.Errorf("slot %d out of range: %w", slot, ErrInvalidParam)
	}
	p.lock.Lock()
	p.types[slot-1], p.drivers[slot-1] = t, d
	p.lock.Unlock()
	return nil
}

// SetPWM attaches the backlight output.
func (p *Panel) SetPWM(pwm PWM) {
	p.lock.Lock()
	p.pwm = pwm
	p.lock.Unlock()
}

// Slot returns the device type and driver of a 1-based slot.
func (p *Panel) Slot(slot int) (DeviceType, Driver) {
	if slot < 1 || slot > NumSlots {
		return DeviceNone, nil
	}
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.types[slot-1], p.drivers[slot-1]
}

// DisplayOut implements Subsystem.
func (p *Panel) DisplayOut(payload []byte) error {
	if len(payload) < DisplayPayloadLen {
		p.stats.Inc(stats.OutputControllerID)
		return ErrInvalidParam
	}
	t, d, err := p.lookup(payload[0])
	if err != nil {
		return err
	}
	if !t.IsDigit() {
		p.stats.Inc(stats.OutputControllerID)
		return ErrInvalidParam
	}
	var digits [8]byte
	for n, b := range payload[1:5] {
		digits[n*2] = (b >> 4) & 0x0f
		digits[n*2+1] = b & 0x0f
	}
	dot := payload[5]
	return p.withBus(func() error {
		dd, ok := d.(DigitDriver)
		if !ok {
			p.stats.Inc(stats.OutputDriver)
			return ErrDriver
		}
		if err := dd.SetDigits(digits[:], dot); err != nil {
			return fmt.Errorf("slot %d: %w", payload[0], err)
		}
		return nil
	})
}

// LEDOut implements Subsystem.
func (p *Panel) LEDOut(payload []byte) error {
	if len(payload) < LEDPayloadLen {
		p.stats.Inc(stats.OutputControllerID)
		return ErrInvalidParam
	}
	t, d, err := p.lookup(payload[0])
	if err != nil {
		return err
	}
	if !t.IsLED() {
		p.stats.Inc(stats.OutputControllerID)
		return ErrInvalidParam
	}
	index, state := payload[1], payload[2]
	return p.withBus(func() error {
		ld, ok := d.(LEDDriver)
		if !ok {
			p.stats.Inc(stats.OutputDriver)
			return ErrDriver
		}
		if err := ld.SetLEDs(index, state); err != nil {
			return fmt.Errorf("slot %d: %w", payload[0], err)
		}
		return nil
	})
}

// SetBrightness implements Subsystem. The level is the square of v
// which makes the perceived brightness roughly linear.
func (p *Panel) SetBrightness(v uint8) {
	level := uint16(v) * uint16(v)
	p.level.Store(uint32(level))
	p.lock.RLock()
	pwm := p.pwm
	p.lock.RUnlock()
	if pwm != nil {
		pwm.SetLevel(level)
	}
	glog.V(2).Infof("output: brightness %d level %d", v, level)
}

// Brightness returns the current PWM level.
func (p *Panel) Brightness() uint16 {
	return uint16(p.level.Load())
}

func (p *Panel) lookup(id byte) (DeviceType, Driver, error) {
	if id == 0 || int(id) > NumSlots {
		p.stats.Inc(stats.OutputControllerID)
		return DeviceNone, nil, ErrInvalidParam
	}
	t, d := p.Slot(int(id))
	return t, d, nil
}

func (p *Panel) withBus(fn func() error) error {
	err := p.bus.Do(context.Background(), p.BusTimeout, fn)
	if err == ErrBusTimeout {
		p.stats.Inc(stats.LockTimeout)
	}
	return err
}
