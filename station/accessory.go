package station

import (
	"context"
	"fmt"

	"github.com/railctl/z21/protocol"
)

// TurnoutPosition selects which of a turnout's two outputs a command
// targets.
type TurnoutPosition byte

const (
	TurnoutStraight  TurnoutPosition = 0 // output 1
	TurnoutDiverging TurnoutPosition = 1 // output 2
)

// maxTurnoutAddress mirrors the 14 usable address bits on the wire.
const maxTurnoutAddress = 9999

// SetTurnout switches a turnout to the given position. activate drives
// the output coil; a second call with activate false releases it, which
// most stations handle automatically.
func (s *Station) SetTurnout(ctx context.Context, addr uint16, pos TurnoutPosition, activate bool) error {
	if addr > maxTurnoutAddress {
		return fmt.Errorf("%w: turnout address %d, must be 0-%d",
			protocol.ErrInvalidInput, addr, maxTurnoutAddress)
	}
	if pos > TurnoutDiverging {
		return fmt.Errorf("%w: turnout position %d", protocol.ErrInvalidInput, pos)
	}

	// DB2 layout: 10Q0A00P, A = activate, P = output.
	db2 := byte(0x80) | byte(pos)
	if activate {
		db2 |= 0x08
	}
	msg := protocol.NewXBusMessage(protocol.XHeaderSetTurnout,
		byte(addr>>8), byte(addr), db2)
	_, err := s.SendXBusAndAwait(ctx, msg, protocol.XHeaderGetTurnout)
	return err
}

// TurnoutInfo polls the switching state of a turnout. The returned
// value is the raw state byte: 0 unswitched, 1 output 1, 2 output 2,
// 3 invalid.
func (s *Station) TurnoutInfo(ctx context.Context, addr uint16) (byte, error) {
	if addr > maxTurnoutAddress {
		return 0, fmt.Errorf("%w: turnout address %d, must be 0-%d",
			protocol.ErrInvalidInput, addr, maxTurnoutAddress)
	}
	sub := s.hub.subscribe()
	defer sub.cancel()

	msg := protocol.NewXBusMessage(protocol.XHeaderGetTurnout, byte(addr>>8), byte(addr))
	if err := s.SendXBus(msg); err != nil {
		return 0, err
	}

	var state byte
	_, err := s.await(ctx, sub, func(pkt protocol.Packet) bool {
		if pkt.Header != protocol.HeaderXBus {
			return false
		}
		reply, err := protocol.DecodeXBus(pkt.Payload)
		if err != nil || reply.Header != protocol.XHeaderGetTurnout || len(reply.Data) < 3 {
			return false
		}
		if uint16(reply.Data[0])<<8|uint16(reply.Data[1]) != addr {
			return false
		}
		state = reply.Data[2]
		return true
	})
	return state, err
}
