package protocol

import "fmt"

// LocoState is the decoded form of a loco info message (XHeaderLocoInfo).
// The message length varies; fields are nil when the underlying bytes
// were not present, never defaulted. Field availability grows
// monotonically with the data length: two bytes yield the address only,
// nine or more yield everything.
type LocoState struct {
	// Address is the DCC address. The top two bits of the first address
	// byte are not part of the address and are masked off.
	Address uint16
	// Busy reports whether another controller currently holds the loco.
	Busy *bool
	// Steps is the throttle stepping the decoder is driven with.
	Steps *ThrottleSteps
	// SpeedPercent is the current speed as a percentage. Negative values
	// mean reverse.
	SpeedPercent *float64
	// DoubleTraction reports double traction mode.
	DoubleTraction *bool
	// SmartSearch reports smart search mode.
	SmartSearch *bool
	// Functions holds the on/off state of F0 through F31.
	Functions *[32]bool
}

// DecodeLocoState interprets a validated loco info message. It fails for
// fewer than two data bytes (the address alone is not a state) and for
// reserved stepping codings, since the speed byte cannot be interpreted
// without a known stepping.
func DecodeLocoState(msg XBusMessage) (LocoState, error) {
	data := msg.Data
	if len(data) <= 1 {
		return LocoState{}, fmt.Errorf("%w: loco state needs at least 2 data bytes, got %d",
			ErrInvalidStateData, len(data))
	}

	state := LocoState{
		Address: uint16(data[0]&0x3F)<<8 | uint16(data[1]),
	}

	if len(data) >= 3 {
		busy := data[2]&0x08 != 0
		state.Busy = &busy
		steps, ok := stepsFromInfo(data[2])
		if !ok {
			return LocoState{}, fmt.Errorf("%w: reserved stepping coding 0x%02x",
				ErrInvalidStateData, data[2]&0x07)
		}
		state.Steps = &steps
	}
	if len(data) >= 4 {
		percent := SpeedPercent(*state.Steps, data[3])
		state.SpeedPercent = &percent
	}
	if len(data) >= 5 {
		dt := data[4]&0x40 != 0
		ss := data[4]&0x20 != 0
		state.DoubleTraction = &dt
		state.SmartSearch = &ss

		var fns [32]bool
		// DB4 carries F0 and F4..F1 in a scrambled order.
		fns[0] = data[4]&0x10 != 0
		fns[4] = data[4]&0x08 != 0
		fns[3] = data[4]&0x04 != 0
		fns[2] = data[4]&0x02 != 0
		fns[1] = data[4]&0x01 != 0
		if len(data) >= 6 {
			for i := 0; i < 8; i++ {
				fns[i+5] = data[5]&(1<<i) != 0
			}
		}
		if len(data) >= 7 {
			for i := 0; i < 8; i++ {
				fns[i+13] = data[6]&(1<<i) != 0
			}
		}
		if len(data) >= 8 {
			for i := 0; i < 8; i++ {
				fns[i+21] = data[7]&(1<<i) != 0
			}
		}
		if len(data) >= 9 {
			for i := 0; i < 3; i++ {
				fns[i+29] = data[8]&(1<<i) != 0
			}
		}
		state.Functions = &fns
	}

	return state, nil
}

// String returns a compact human-readable summary of the known fields.
func (s LocoState) String() string {
	out := fmt.Sprintf("LocoState{addr=%d", s.Address)
	if s.Steps != nil {
		out += fmt.Sprintf(", %s", *s.Steps)
	}
	if s.SpeedPercent != nil {
		out += fmt.Sprintf(", speed=%.1f%%", *s.SpeedPercent)
	}
	if s.Busy != nil && *s.Busy {
		out += ", busy"
	}
	return out + "}"
}
