package protocol

// LAN packet headers (little-endian u16 on the wire).
const (
	HeaderGetSerialNumber    uint16 = 0x10
	HeaderLogoff             uint16 = 0x30
	HeaderXBus               uint16 = 0x40
	HeaderSetBroadcastFlags  uint16 = 0x50
	HeaderSystemStateChanged uint16 = 0x84
	HeaderSystemStateGetData uint16 = 0x85
)

// X-Bus message headers carried inside HeaderXBus packets.
const (
	XHeaderGeneral      byte = 0x21 // track power, status requests
	XHeaderCVRead       byte = 0x23 // direct mode CV read
	XHeaderCVWrite      byte = 0x24 // direct mode CV write
	XHeaderGetTurnout   byte = 0x43 // turnout info request and reply
	XHeaderSetTurnout   byte = 0x53
	XHeaderBroadcast    byte = 0x61 // track power / programming broadcasts
	XHeaderCVResult     byte = 0x64
	XHeaderFirmware     byte = 0xF1
	XHeaderFirmwareInfo byte = 0xF3
	XHeaderLocoGetInfo  byte = 0xE3
	XHeaderLocoDrive    byte = 0xE4
	XHeaderCVPOM        byte = 0xE6
	XHeaderLocoInfo     byte = 0xEF
)

// Data bytes for XHeaderGeneral commands.
const (
	DBTrackPowerOff byte = 0x80
	DBTrackPowerOn  byte = 0x81
)

// Data bytes for X-Bus broadcasts (XHeaderBroadcast).
const (
	DBBCTrackPowerOff byte = 0x00
	DBBCTrackPowerOn  byte = 0x01
	DBBCProgramming   byte = 0x02
	DBBCShortCircuit  byte = 0x08
	DBCVNACKShort     byte = 0x12
	DBCVNACK          byte = 0x13
)

// Data bytes for CV and firmware commands.
const (
	DBCVReadDirect  byte = 0x11
	DBCVWriteDirect byte = 0x12
	DBCVResult      byte = 0x14
	DBFirmware      byte = 0x0A
	DBLocoGetInfo   byte = 0xF0
	DBLocoFunction  byte = 0xF8
	DBPOMOperation  byte = 0x30
)

// POM option bits placed in the high bits of the CV address MSB.
const (
	POMReadByte  byte = 0xE4
	POMWriteByte byte = 0xEC
)

// Broadcast flag bits for HeaderSetBroadcastFlags (u32 LE payload).
const (
	// FlagDrivingSwitching delivers loco info, turnout and track power
	// broadcasts. The station forgets the subscription if it is not
	// refreshed periodically.
	FlagDrivingSwitching uint32 = 0x00000001
	FlagSystemState      uint32 = 0x00000100
	FlagAllLocos         uint32 = 0x00010000
)

// MaxLocoAddress is the highest DCC address the driver accepts. The wire
// format carries 14 usable address bits.
const MaxLocoAddress uint16 = 9999
