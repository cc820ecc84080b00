package protocol

import "fmt"

// ThrottleSteps is the DCC speed step resolution of a decoder. The
// numeric value is the DB0 byte of a loco drive command.
type ThrottleSteps byte

const (
	Steps14  ThrottleSteps = 0x10
	Steps28  ThrottleSteps = 0x12
	Steps128 ThrottleSteps = 0x13
)

// DefaultSteps is used when a throttle stepping is not chosen explicitly.
const DefaultSteps = Steps128

// Count returns the number of discrete throttle positions.
func (s ThrottleSteps) Count() int {
	switch s {
	case Steps14:
		return 14
	case Steps28:
		return 28
	default:
		return 128
	}
}

// String returns the human-readable stepping name.
func (s ThrottleSteps) String() string {
	switch s {
	case Steps14:
		return "14 steps"
	case Steps28:
		return "28 steps"
	case Steps128:
		return "128 steps"
	default:
		return fmt.Sprintf("ThrottleSteps(0x%02x)", byte(s))
	}
}

// stepsFromInfo maps the stepping bits of a loco info message to a
// ThrottleSteps value. The ok result is false for reserved codings.
func stepsFromInfo(bits byte) (ThrottleSteps, bool) {
	switch bits & 0x07 {
	case 0:
		return Steps14, true
	case 2:
		return Steps28, true
	case 4:
		return Steps128, true
	default:
		return 0, false
	}
}

// SpeedByte maps a speed percentage (-100..100, negative means reverse)
// to the RVVVVVVV drive byte for the given stepping. The direction bit
// is set only for strictly positive speeds: zero always encodes with the
// forward bit clear, a convention the station relies on.
func SpeedByte(steps ThrottleSteps, percent float64) byte {
	mapped := percent / 100 * float64(steps.Count())
	b := byte(abs(mapped))
	if mapped > 0 {
		b |= 0x80
	}
	return b
}

// SpeedPercent is the inverse of SpeedByte: it interprets an RVVVVVVV
// drive byte under the given stepping and returns a signed percentage.
func SpeedPercent(steps ThrottleSteps, b byte) float64 {
	percent := float64(b&0x7F) / float64(steps.Count()) * 100
	if b&0x80 == 0 {
		return -percent
	}
	return percent
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// FunctionAction selects what a function command does to the target
// function output.
type FunctionAction byte

const (
	FunctionOff    FunctionAction = 0x00
	FunctionOn     FunctionAction = 0x01
	FunctionToggle FunctionAction = 0x02
)

// FunctionByte packs an action and a function index into the TTNNNNNN
// byte of a loco function command: action in the top two bits, index in
// the low six. Index and action are validated before any I/O happens.
func FunctionByte(action FunctionAction, index uint8) (byte, error) {
	if index > 31 {
		return 0, fmt.Errorf("%w: function index %d, must be 0-31", ErrInvalidInput, index)
	}
	if action > FunctionToggle {
		return 0, fmt.Errorf("%w: function action %d, must be 0 (off), 1 (on) or 2 (toggle)",
			ErrInvalidInput, action)
	}
	return byte(action)<<6 | index&0x3F, nil
}
