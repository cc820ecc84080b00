package protocol

import (
	"encoding/binary"
	"fmt"
)

// systemStateSize is the fixed payload length of a system state packet.
const systemStateSize = 16

// CentralState bit flags.
const (
	StateEmergencyStop     byte = 0x01
	StateTrackVoltageOff   byte = 0x02
	StateShortCircuit      byte = 0x04
	StateProgrammingActive byte = 0x20
)

// SystemState is the telemetry snapshot sent in HeaderSystemStateChanged
// packets. All multi-byte fields are little-endian on the wire.
type SystemState struct {
	// MainCurrent is the current on the main track in mA.
	MainCurrent int16
	// ProgCurrent is the current on the programming track in mA.
	ProgCurrent int16
	// FilteredMainCurrent is the smoothed main track current in mA.
	FilteredMainCurrent int16
	// Temperature is the internal temperature of the station in °C.
	Temperature int16
	// SupplyVoltage is the supply voltage in mV.
	SupplyVoltage uint16
	// VCCVoltage is the internal (track) voltage in mV.
	VCCVoltage uint16
	// CentralState carries the State* flags.
	CentralState byte
	// CentralStateEx carries extended status flags.
	CentralStateEx byte
	reserved       byte
	// Capabilities describes the feature set of the station.
	Capabilities byte
}

// DecodeSystemState parses the fixed 16-byte telemetry payload. Any
// other payload length is rejected.
func DecodeSystemState(data []byte) (SystemState, error) {
	if len(data) != systemStateSize {
		return SystemState{}, fmt.Errorf("%w: system state payload is %d bytes, want %d",
			ErrInvalidStateData, len(data), systemStateSize)
	}
	return SystemState{
		MainCurrent:         int16(binary.LittleEndian.Uint16(data[0:2])),
		ProgCurrent:         int16(binary.LittleEndian.Uint16(data[2:4])),
		FilteredMainCurrent: int16(binary.LittleEndian.Uint16(data[4:6])),
		Temperature:         int16(binary.LittleEndian.Uint16(data[6:8])),
		SupplyVoltage:       binary.LittleEndian.Uint16(data[8:10]),
		VCCVoltage:          binary.LittleEndian.Uint16(data[10:12]),
		CentralState:        data[12],
		CentralStateEx:      data[13],
		reserved:            data[14],
		Capabilities:        data[15],
	}, nil
}

// TrackVoltageOn reports whether the track voltage is currently switched
// on according to the central state flags.
func (s SystemState) TrackVoltageOn() bool {
	return s.CentralState&(StateTrackVoltageOff|StateEmergencyStop) == 0
}

// String returns a compact human-readable summary.
func (s SystemState) String() string {
	return fmt.Sprintf("SystemState{main=%dmA, prog=%dmA, supply=%dmV, vcc=%dmV, temp=%d°C, state=0x%02x}",
		s.MainCurrent, s.ProgCurrent, s.SupplyVoltage, s.VCCVoltage, s.Temperature, s.CentralState)
}
