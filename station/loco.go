package station

import (
	"context"
	"fmt"

	"github.com/railctl/z21/protocol"
)

// Drive control bytes for a stationary locomotive. driveStop lets the
// decoder apply its braking curve; driveHalt cuts power immediately.
const (
	driveStop byte = 0x00
	driveHalt byte = 0x01
)

// Loco is a control handle for one locomotive. It is bound to a station
// session and a DCC address; the throttle stepping is fixed for the
// handle's lifetime. A Loco does not own the station and several
// handles may share one session.
type Loco struct {
	station *Station
	addr    uint16
	steps   protocol.ThrottleSteps
}

// Control takes control of the locomotive at the given address using
// 128-step throttle resolution. The station is polled for the current
// loco state first, so a handle is only returned for an address the
// station answers for.
func Control(ctx context.Context, s *Station, addr uint16) (*Loco, error) {
	return ControlWithSteps(ctx, s, addr, protocol.DefaultSteps)
}

// ControlWithSteps is Control with an explicit throttle stepping, for
// decoders driven with 14 or 28 steps.
func ControlWithSteps(ctx context.Context, s *Station, addr uint16, steps protocol.ThrottleSteps) (*Loco, error) {
	if addr > protocol.MaxLocoAddress {
		return nil, fmt.Errorf("%w: loco address %d, must be 0-%d",
			protocol.ErrInvalidInput, addr, protocol.MaxLocoAddress)
	}
	loco := &Loco{station: s, addr: addr, steps: steps}
	if _, err := loco.State(ctx); err != nil {
		return nil, fmt.Errorf("taking control of loco %d: %w", addr, err)
	}
	return loco, nil
}

// Address returns the DCC address of the handle.
func (l *Loco) Address() uint16 { return l.addr }

// Steps returns the throttle stepping of the handle.
func (l *Loco) Steps() protocol.ThrottleSteps { return l.steps }

// State polls the station for the current state of the locomotive.
func (l *Loco) State(ctx context.Context) (protocol.LocoState, error) {
	msg := protocol.NewXBusMessage(protocol.XHeaderLocoGetInfo,
		protocol.DBLocoGetInfo, byte(l.addr>>8), byte(l.addr))
	reply, err := l.station.SendXBusAndAwait(ctx, msg, protocol.XHeaderLocoInfo)
	if err != nil {
		return protocol.LocoState{}, err
	}
	return protocol.DecodeLocoState(reply)
}

// Drive sets speed and direction as a percentage: positive forward,
// negative reverse, zero stops with the braking curve.
func (l *Loco) Drive(ctx context.Context, percent float64) error {
	return l.sendDrive(ctx, protocol.SpeedByte(l.steps, percent))
}

// Stop brings the locomotive to a stop along its braking curve.
func (l *Loco) Stop(ctx context.Context) error {
	return l.sendDrive(ctx, driveStop)
}

// Halt stops the locomotive immediately (emergency stop). Power to the
// motor is cut without any braking curve.
func (l *Loco) Halt(ctx context.Context) error {
	return l.sendDrive(ctx, driveHalt)
}

func (l *Loco) sendDrive(ctx context.Context, driveByte byte) error {
	msg := protocol.NewXBusMessage(protocol.XHeaderLocoDrive,
		byte(l.steps), byte(l.addr>>8), byte(l.addr), driveByte)
	_, err := l.station.SendXBusAndAwait(ctx, msg, protocol.XHeaderLocoInfo)
	return err
}

// SetFunction applies an action to one of the F0-F31 function outputs.
// The index and action are validated before anything is sent.
func (l *Loco) SetFunction(ctx context.Context, index uint8, action protocol.FunctionAction) error {
	fnByte, err := protocol.FunctionByte(action, index)
	if err != nil {
		return err
	}
	msg := protocol.NewXBusMessage(protocol.XHeaderLocoDrive,
		protocol.DBLocoFunction, l.addrMSB(), byte(l.addr), fnByte)
	_, err = l.station.SendXBusAndAwait(ctx, msg, protocol.XHeaderLocoInfo)
	return err
}

// addrMSB returns the high address byte with the long-address marker
// bits set for addresses of 128 and above.
func (l *Loco) addrMSB() byte {
	msb := byte(l.addr >> 8)
	if l.addr >= 128 {
		msb |= 0xC0
	}
	return msb
}

// FunctionOn switches a function output on.
func (l *Loco) FunctionOn(ctx context.Context, index uint8) error {
	return l.SetFunction(ctx, index, protocol.FunctionOn)
}

// FunctionOff switches a function output off.
func (l *Loco) FunctionOff(ctx context.Context, index uint8) error {
	return l.SetFunction(ctx, index, protocol.FunctionOff)
}

// FunctionToggle flips a function output.
func (l *Loco) FunctionToggle(ctx context.Context, index uint8) error {
	return l.SetFunction(ctx, index, protocol.FunctionToggle)
}

// SetHeadlights controls F0, which DCC decoders map to the headlights.
func (l *Loco) SetHeadlights(ctx context.Context, on bool) error {
	if on {
		return l.FunctionOn(ctx, 0)
	}
	return l.FunctionOff(ctx, 0)
}

// SubscribeState invokes fn for every loco info broadcast for this
// handle's address. States that fail to decode are dropped; the station
// resends on the next change. The returned cancel function ends the
// subscription.
func (l *Loco) SubscribeState(fn func(protocol.LocoState)) (cancel func()) {
	return l.station.Subscribe(func(pkt protocol.Packet) bool {
		return pkt.Header == protocol.HeaderXBus
	}, func(pkt protocol.Packet) {
		msg, err := protocol.DecodeXBus(pkt.Payload)
		if err != nil || msg.Header != protocol.XHeaderLocoInfo {
			return
		}
		state, err := protocol.DecodeLocoState(msg)
		if err != nil || state.Address != l.addr {
			return
		}
		fn(state)
	})
}
