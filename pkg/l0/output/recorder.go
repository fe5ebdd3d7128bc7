package output

import (
	"sync"

	"github.com/golang/glog"
)

// Recorder is a Driver keeping the last state written to it. It stands
// in for hardware drivers when running off-target.
type Recorder struct {
	Name string

	lock   sync.Mutex
	digits [8]byte
	dot    byte
	leds   map[byte]byte
	writes int
}

// NewRecorder creates a Recorder.
func NewRecorder(name string) *Recorder {
	return &Recorder{Name: name, leds: make(map[byte]byte)}
}

// SetDigits implements DigitDriver.
func (r *Recorder) SetDigits(digits []byte, dot byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copy(r.digits[:], digits)
	r.dot = dot
	r.writes++
	glog.V(2).Infof("%s: digits %s dot %d", r.Name, FormatDigits(digits), dot)
	return nil
}

// SetLEDs implements LEDDriver.
func (r *Recorder) SetLEDs(index, state byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.leds[index] = state
	r.writes++
	glog.V(2).Infof("%s: led %d = %#02x", r.Name, index, state)
	return nil
}

// Digits returns the last digits and dot position.
func (r *Recorder) Digits() ([]byte, byte) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]byte(nil), r.digits[:]...), r.dot
}

// LED returns the last state of a LED group.
func (r *Recorder) LED(index byte) byte {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.leds[index]
}

// Writes returns the number of writes.
func (r *Recorder) Writes() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.writes
}

// FormatDigits renders BCD digits, values above 9 as '-'.
func FormatDigits(digits []byte) string {
	s := make([]byte, len(digits))
	for n, d := range digits {
		if d <= 9 {
			s[n] = '0' + d
		} else {
			s[n] = '-'
		}
	}
	return string(s)
}

// Indicator is the status LED.
type Indicator interface {
	SetIndicator(on bool)
}

// LogIndicator logs status LED transitions.
type LogIndicator struct {
	lock sync.Mutex
	on   bool
}

// SetIndicator implements Indicator.
func (l *LogIndicator) SetIndicator(on bool) {
	l.lock.Lock()
	changed := l.on != on
	l.on = on
	l.lock.Unlock()
	if changed {
		glog.V(3).Infof("status led %s", onOff(on))
	}
}

// On returns the current state.
func (l *LogIndicator) On() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}

// LogPWM logs backlight level changes.
type LogPWM struct{}

// SetLevel implements PWM.
func (LogPWM) SetLevel(level uint16) {
	glog.V(2).Infof("pwm level %d", level)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
