package station

import (
	"context"
	"fmt"

	"github.com/railctl/z21/protocol"
)

// maxCV is the highest configuration variable number DCC defines.
const maxCV = 1024

// cvWire converts a human CV number (CV1 and up) to its zero-based
// wire form.
func cvWire(cv uint16) (uint16, error) {
	if cv < 1 || cv > maxCV {
		return 0, fmt.Errorf("%w: CV %d, must be 1-%d", protocol.ErrInvalidInput, cv, maxCV)
	}
	return cv - 1, nil
}

// CVRead reads a configuration variable in direct mode on the
// programming track. The station enters programming mode; call
// VoltageOn afterwards to resume normal operation.
func (s *Station) CVRead(ctx context.Context, cv uint16) (byte, error) {
	wire, err := cvWire(cv)
	if err != nil {
		return 0, err
	}
	msg := protocol.NewXBusMessage(protocol.XHeaderCVRead,
		protocol.DBCVReadDirect, byte(wire>>8), byte(wire))
	return s.cvTransact(ctx, msg)
}

// CVWrite writes a configuration variable in direct mode on the
// programming track and returns once the station confirms the value.
// Call VoltageOn afterwards to resume normal operation.
func (s *Station) CVWrite(ctx context.Context, cv uint16, value byte) error {
	wire, err := cvWire(cv)
	if err != nil {
		return err
	}
	msg := protocol.NewXBusMessage(protocol.XHeaderCVWrite,
		protocol.DBCVWriteDirect, byte(wire>>8), byte(wire), value)
	_, err = s.cvTransact(ctx, msg)
	return err
}

// cvTransact sends a CV command and waits for the result message or a
// NACK. The subscription is taken before the send so neither outcome
// can be missed.
func (s *Station) cvTransact(ctx context.Context, msg protocol.XBusMessage) (byte, error) {
	sub := s.hub.subscribe()
	defer sub.cancel()

	if err := s.SendXBus(msg); err != nil {
		return 0, err
	}

	var value byte
	var cvErr error
	_, err := s.await(ctx, sub, func(pkt protocol.Packet) bool {
		if pkt.Header != protocol.HeaderXBus {
			return false
		}
		reply, err := protocol.DecodeXBus(pkt.Payload)
		if err != nil || len(reply.Data) == 0 {
			return false
		}
		switch {
		case reply.Header == protocol.XHeaderCVResult && reply.Data[0] == protocol.DBCVResult:
			if len(reply.Data) >= 4 {
				value = reply.Data[3]
			}
			return true
		case reply.Header == protocol.XHeaderBroadcast && reply.Data[0] == protocol.DBCVNACK:
			cvErr = ErrCVNack
			return true
		case reply.Header == protocol.XHeaderBroadcast && reply.Data[0] == protocol.DBCVNACKShort:
			cvErr = ErrCVShortCircuit
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	return value, cvErr
}

// CVReadPOM reads a configuration variable of this locomotive on the
// main track (programming on main). Requires a decoder with RailCom.
func (l *Loco) CVReadPOM(ctx context.Context, cv uint16) (byte, error) {
	wire, err := cvWire(cv)
	if err != nil {
		return 0, err
	}
	msg := protocol.NewXBusMessage(protocol.XHeaderCVPOM,
		protocol.DBPOMOperation, l.addrMSB(), byte(l.addr),
		protocol.POMReadByte|byte(wire>>8)&0x03, byte(wire), 0x00)
	return l.station.cvTransact(ctx, msg)
}

// CVWritePOM writes a configuration variable of this locomotive on the
// main track, without interrupting operation. The station does not
// confirm the write; verify with CVReadPOM if the decoder supports it.
func (l *Loco) CVWritePOM(ctx context.Context, cv uint16, value byte) error {
	wire, err := cvWire(cv)
	if err != nil {
		return err
	}
	msg := protocol.NewXBusMessage(protocol.XHeaderCVPOM,
		protocol.DBPOMOperation, l.addrMSB(), byte(l.addr),
		protocol.POMWriteByte|byte(wire>>8)&0x03, byte(wire), value)
	return l.station.SendXBus(msg)
}
