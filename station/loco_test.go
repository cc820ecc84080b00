package station

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/railctl/z21/protocol"
)

// locoSimulator answers loco info requests and acknowledges drive and
// function commands with an info reply, like a real station does.
func locoSimulator(t *testing.T, addr uint16) *simulator {
	return newSimulator(t, func(pkt protocol.Packet) [][]byte {
		if pkt.Header != protocol.HeaderXBus {
			return nil
		}
		msg, err := protocol.DecodeXBus(pkt.Payload)
		if err != nil {
			return nil
		}
		switch msg.Header {
		case protocol.XHeaderLocoGetInfo, protocol.XHeaderLocoDrive:
			info := protocol.NewXBusMessage(protocol.XHeaderLocoInfo,
				byte(addr>>8), byte(addr), 0x04, 0x00, 0x00)
			return [][]byte{xbusPacketBytes(info)}
		}
		return nil
	})
}

func TestControl(t *testing.T) {
	sim := locoSimulator(t, 3)
	st := connect(t, sim)

	loco, err := Control(context.Background(), st, 3)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if loco.Address() != 3 {
		t.Errorf("address = %d, want 3", loco.Address())
	}
	if loco.Steps() != protocol.Steps128 {
		t.Errorf("steps = %v, want Steps128", loco.Steps())
	}

	// The take-control poll must be a get-info request on the wire.
	var sawGetInfo bool
	for _, msg := range sim.xbusSent() {
		if msg.Header == protocol.XHeaderLocoGetInfo &&
			len(msg.Data) == 3 && msg.Data[0] == protocol.DBLocoGetInfo {
			sawGetInfo = true
		}
	}
	if !sawGetInfo {
		t.Error("no loco get-info request observed")
	}
}

func TestControlRejectsBadAddress(t *testing.T) {
	sim := locoSimulator(t, 3)
	st := connect(t, sim)

	_, err := Control(context.Background(), st, 10000)
	if !errors.Is(err, protocol.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestControlTimesOutWithoutReply(t *testing.T) {
	sim := newSimulator(t, nil) // never answers loco requests
	st := connect(t, sim, WithTimeout(100*time.Millisecond))

	_, err := Control(context.Background(), st, 3)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestDriveCommandBytes(t *testing.T) {
	const addr = 261 // exercises both address bytes
	sim := locoSimulator(t, addr)
	st := connect(t, sim)

	loco, err := ControlWithSteps(context.Background(), st, addr, protocol.Steps28)
	if err != nil {
		t.Fatalf("ControlWithSteps: %v", err)
	}
	if err := loco.Drive(context.Background(), 100); err != nil {
		t.Fatalf("Drive: %v", err)
	}

	var drive *protocol.XBusMessage
	for _, msg := range sim.xbusSent() {
		if msg.Header == protocol.XHeaderLocoDrive {
			m := msg
			drive = &m
		}
	}
	if drive == nil {
		t.Fatal("no drive command observed")
	}
	want := []byte{0x12, 0x01, 0x05, 0x9C} // 28 steps, addr 261, full forward
	if len(drive.Data) != len(want) {
		t.Fatalf("drive data = % x, want % x", drive.Data, want)
	}
	for i := range want {
		if drive.Data[i] != want[i] {
			t.Errorf("drive data[%d] = 0x%02x, want 0x%02x", i, drive.Data[i], want[i])
		}
	}
}

func TestStopAndHaltBytes(t *testing.T) {
	sim := locoSimulator(t, 3)
	st := connect(t, sim)

	loco, err := Control(context.Background(), st, 3)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if err := loco.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := loco.Halt(context.Background()); err != nil {
		t.Fatalf("Halt: %v", err)
	}

	var driveBytes []byte
	for _, msg := range sim.xbusSent() {
		if msg.Header == protocol.XHeaderLocoDrive && len(msg.Data) == 4 {
			driveBytes = append(driveBytes, msg.Data[3])
		}
	}
	if len(driveBytes) != 2 || driveBytes[0] != 0x00 || driveBytes[1] != 0x01 {
		t.Errorf("drive control bytes = % x, want 00 01", driveBytes)
	}
}

func TestSetFunctionBytes(t *testing.T) {
	const addr = 200 // >= 128: address MSB carries the long-address bits
	sim := locoSimulator(t, addr)
	st := connect(t, sim)

	loco, err := Control(context.Background(), st, addr)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if err := loco.FunctionOn(context.Background(), 2); err != nil {
		t.Fatalf("FunctionOn: %v", err)
	}

	var fn *protocol.XBusMessage
	for _, msg := range sim.xbusSent() {
		if msg.Header == protocol.XHeaderLocoDrive && len(msg.Data) == 4 && msg.Data[0] == protocol.DBLocoFunction {
			m := msg
			fn = &m
		}
	}
	if fn == nil {
		t.Fatal("no function command observed")
	}
	if fn.Data[1] != 0xC0 { // 0xC0 | high byte of 200 (0)
		t.Errorf("address MSB = 0x%02x, want 0xC0", fn.Data[1])
	}
	if fn.Data[2] != 200 {
		t.Errorf("address LSB = %d, want 200", fn.Data[2])
	}
	if fn.Data[3] != 0x42 { // on action, F2
		t.Errorf("function byte = 0x%02x, want 0x42", fn.Data[3])
	}
}

func TestSetFunctionValidatesBeforeSending(t *testing.T) {
	sim := locoSimulator(t, 3)
	st := connect(t, sim)

	loco, err := Control(context.Background(), st, 3)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}

	before := len(sim.xbusSent())
	if err := loco.SetFunction(context.Background(), 32, protocol.FunctionOn); !errors.Is(err, protocol.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if got := len(sim.xbusSent()); got != before {
		t.Errorf("invalid function command still reached the wire")
	}
}

func TestSubscribeStateFiltersByAddress(t *testing.T) {
	sim := locoSimulator(t, 3)
	st := connect(t, sim)

	loco, err := Control(context.Background(), st, 3)
	if err != nil {
		t.Fatalf("Control: %v", err)
	}

	states := make(chan protocol.LocoState, 4)
	cancel := loco.SubscribeState(func(state protocol.LocoState) {
		states <- state
	})
	defer cancel()

	raddr := clientAddr(st)
	// An info broadcast for another address must not reach the callback.
	other := protocol.NewXBusMessage(protocol.XHeaderLocoInfo, 0x00, 0x07, 0x04, 0x00)
	ours := protocol.NewXBusMessage(protocol.XHeaderLocoInfo, 0x00, 0x03, 0x04, 0xC0)

	deadline := time.After(2 * time.Second)
	for {
		sim.conn.WriteToUDP(xbusPacketBytes(other), raddr)
		sim.conn.WriteToUDP(xbusPacketBytes(ours), raddr)
		select {
		case state := <-states:
			if state.Address != 3 {
				t.Fatalf("callback saw address %d", state.Address)
			}
			if state.SpeedPercent == nil || *state.SpeedPercent != 50.0 {
				t.Errorf("speed = %v, want 50.0", state.SpeedPercent)
			}
			return
		case <-deadline:
			t.Fatal("no loco state delivered")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
