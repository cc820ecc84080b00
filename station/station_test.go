package station

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/railctl/z21/protocol"
)

// simulator plays the role of a Z21 station on a loopback UDP socket.
// Unless muted, it answers every system-state request with a telemetry
// snapshot so the client handshake can complete; everything else is up
// to the per-test handler, which returns zero or more reply datagrams.
type simulator struct {
	t       *testing.T
	conn    *net.UDPConn
	mute    bool
	handler func(protocol.Packet) [][]byte

	mu       sync.Mutex
	received []protocol.Packet
}

func newSimulator(t *testing.T, handler func(protocol.Packet) [][]byte) *simulator {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("simulator bind: %v", err)
	}
	sim := &simulator{t: t, conn: conn, handler: handler}
	go sim.loop()
	t.Cleanup(func() { conn.Close() })
	return sim
}

func (s *simulator) addr() string { return s.conn.LocalAddr().String() }

func (s *simulator) loop() {
	buf := make([]byte, 1024)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		pkt, err := protocol.DecodePacket(data)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, pkt)
		s.mu.Unlock()

		if s.mute {
			continue
		}
		if pkt.Header == protocol.HeaderSystemStateGetData {
			s.conn.WriteToUDP(packetBytes(protocol.HeaderSystemStateChanged, sysStatePayload()), raddr)
			continue
		}
		if s.handler == nil {
			continue
		}
		for _, reply := range s.handler(pkt) {
			s.conn.WriteToUDP(reply, raddr)
		}
	}
}

// xbusSent returns every X-Bus message the simulator has received.
func (s *simulator) xbusSent() []protocol.XBusMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []protocol.XBusMessage
	for _, pkt := range s.received {
		if pkt.Header != protocol.HeaderXBus {
			continue
		}
		if msg, err := protocol.DecodeXBus(pkt.Payload); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func (s *simulator) sawHeader(header uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pkt := range s.received {
		if pkt.Header == header {
			return true
		}
	}
	return false
}

func packetBytes(header uint16, payload []byte) []byte {
	pkt, err := protocol.NewPacket(header, payload)
	if err != nil {
		panic(err)
	}
	return pkt.Encode()
}

func xbusPacketBytes(msg protocol.XBusMessage) []byte {
	return packetBytes(protocol.HeaderXBus, msg.Encode())
}

func sysStatePayload() []byte {
	payload := make([]byte, 16)
	binary.LittleEndian.PutUint16(payload[0:2], 300)    // main current
	binary.LittleEndian.PutUint16(payload[8:10], 18000) // supply voltage
	return payload
}

func connect(t *testing.T, sim *simulator, opts ...Option) *Station {
	t.Helper()
	opts = append([]Option{WithTimeout(500 * time.Millisecond)}, opts...)
	st, err := Connect(sim.addr(), opts...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestConnectHandshake(t *testing.T) {
	sim := newSimulator(t, nil)
	st := connect(t, sim)

	if !sim.sawHeader(protocol.HeaderSystemStateGetData) {
		t.Error("handshake never requested system state")
	}
	if st.Timeout() != 500*time.Millisecond {
		t.Errorf("timeout = %v", st.Timeout())
	}
}

func TestConnectFailsWhenStationSilent(t *testing.T) {
	sim := newSimulator(t, nil)
	sim.mute = true

	_, err := Connect(sim.addr(), WithTimeout(100*time.Millisecond))
	if err == nil {
		t.Fatal("Connect should fail without a handshake reply")
	}
}

func TestSerialNumber(t *testing.T) {
	const serial = uint32(0x12345678)
	sim := newSimulator(t, func(pkt protocol.Packet) [][]byte {
		if pkt.Header != protocol.HeaderGetSerialNumber {
			return nil
		}
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, serial)
		return [][]byte{packetBytes(protocol.HeaderGetSerialNumber, payload)}
	})
	st := connect(t, sim)

	got, err := st.SerialNumber(context.Background())
	if err != nil {
		t.Fatalf("SerialNumber: %v", err)
	}
	if got != serial {
		t.Errorf("serial = 0x%08x, want 0x%08x", got, serial)
	}
}

func TestConcurrentRequestsDoNotStealReplies(t *testing.T) {
	// One reply per request: if one waiter stole the other's reply, the
	// loser would time out.
	sim := newSimulator(t, func(pkt protocol.Packet) [][]byte {
		if pkt.Header != protocol.HeaderGetSerialNumber {
			return nil
		}
		payload := []byte{0x2A, 0x00, 0x00, 0x00}
		return [][]byte{packetBytes(protocol.HeaderGetSerialNumber, payload)}
	})
	st := connect(t, sim)

	const callers = 2
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := st.SerialNumber(context.Background())
			errs <- err
		}()
	}
	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
}

func TestSendAndAwaitTimeout(t *testing.T) {
	sim := newSimulator(t, nil) // answers nothing but the handshake
	st := connect(t, sim, WithTimeout(100*time.Millisecond))

	_, err := st.SendAndAwait(context.Background(), protocol.HeaderGetSerialNumber, nil, 0)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}

	// The session stays usable after a timeout.
	if err := st.Send(protocol.HeaderSystemStateGetData, nil); err != nil {
		t.Errorf("Send after timeout: %v", err)
	}
}

func TestSendAndAwaitContextCancel(t *testing.T) {
	sim := newSimulator(t, nil)
	st := connect(t, sim)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := st.SendAndAwait(ctx, protocol.HeaderGetSerialNumber, nil, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestVoltageOnAwaitsBroadcast(t *testing.T) {
	sim := newSimulator(t, func(pkt protocol.Packet) [][]byte {
		if pkt.Header != protocol.HeaderXBus {
			return nil
		}
		msg, err := protocol.DecodeXBus(pkt.Payload)
		if err != nil || msg.Header != protocol.XHeaderGeneral {
			return nil
		}
		switch msg.Data[0] {
		case protocol.DBTrackPowerOn:
			return [][]byte{xbusPacketBytes(protocol.NewXBusMessage(protocol.XHeaderBroadcast, protocol.DBBCTrackPowerOn))}
		case protocol.DBTrackPowerOff:
			return [][]byte{xbusPacketBytes(protocol.NewXBusMessage(protocol.XHeaderBroadcast, protocol.DBBCTrackPowerOff))}
		}
		return nil
	})
	st := connect(t, sim)

	if err := st.VoltageOn(context.Background()); err != nil {
		t.Fatalf("VoltageOn: %v", err)
	}
	if err := st.VoltageOff(context.Background()); err != nil {
		t.Fatalf("VoltageOff: %v", err)
	}
}

func TestSendXBusAndAwaitSkipsCorruptReplies(t *testing.T) {
	sim := newSimulator(t, func(pkt protocol.Packet) [][]byte {
		if pkt.Header != protocol.HeaderXBus {
			return nil
		}
		good := protocol.NewXBusMessage(protocol.XHeaderBroadcast, protocol.DBBCTrackPowerOn).Encode()
		corrupt := append([]byte(nil), good...)
		corrupt[len(corrupt)-1] ^= 0xFF
		return [][]byte{
			packetBytes(protocol.HeaderXBus, corrupt),
			packetBytes(protocol.HeaderXBus, good),
		}
	})
	st := connect(t, sim)

	reply, err := st.SendXBusAndAwait(context.Background(),
		protocol.NewXBusMessage(protocol.XHeaderGeneral, protocol.DBTrackPowerOn),
		protocol.XHeaderBroadcast)
	if err != nil {
		t.Fatalf("SendXBusAndAwait: %v", err)
	}
	if reply.Header != protocol.XHeaderBroadcast {
		t.Errorf("reply header = 0x%02x", reply.Header)
	}
}

func TestSubscribeSystemState(t *testing.T) {
	sim := newSimulator(t, nil) // the loop answers every poll with telemetry
	st := connect(t, sim)

	states := make(chan protocol.SystemState, 1)
	cancel := st.SubscribeSystemState(50*time.Millisecond, func(state protocol.SystemState) {
		select {
		case states <- state:
		default:
		}
	})
	defer cancel()

	select {
	case state := <-states:
		if state.MainCurrent != 300 {
			t.Errorf("main current = %d, want 300", state.MainCurrent)
		}
		if state.SupplyVoltage != 18000 {
			t.Errorf("supply voltage = %d, want 18000", state.SupplyVoltage)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no system state delivered")
	}
}

func TestSubscribeReceivesUnsolicitedPackets(t *testing.T) {
	sim := newSimulator(t, nil)
	st := connect(t, sim)

	got := make(chan protocol.Packet, 1)
	cancel := st.Subscribe(func(pkt protocol.Packet) bool {
		return pkt.Header == protocol.HeaderXBus
	}, func(pkt protocol.Packet) {
		select {
		case got <- pkt:
		default:
		}
	})
	defer cancel()

	// Trigger any send so the simulator learns our address, then push
	// an unsolicited broadcast from its side.
	if err := st.Send(protocol.HeaderGetSerialNumber, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		raddr := clientAddr(st)
		sim.conn.WriteToUDP(xbusPacketBytes(protocol.NewXBusMessage(protocol.XHeaderBroadcast, protocol.DBBCTrackPowerOff)), raddr)
		select {
		case pkt := <-got:
			if pkt.Header != protocol.HeaderXBus {
				t.Errorf("header = 0x%04x", pkt.Header)
			}
			return
		case <-deadline:
			t.Fatal("unsolicited packet never dispatched")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func clientAddr(st *Station) *net.UDPAddr {
	return st.conn.LocalAddr().(*net.UDPAddr)
}

func TestLogoutSendsLogoff(t *testing.T) {
	sim := newSimulator(t, nil)
	st := connect(t, sim)

	if err := st.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// Give the datagram a moment to land.
	deadline := time.Now().Add(time.Second)
	for !sim.sawHeader(protocol.HeaderLogoff) {
		if time.Now().After(deadline) {
			t.Fatal("logoff packet never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseIsIdempotentAndStopsSends(t *testing.T) {
	sim := newSimulator(t, nil)
	st := connect(t, sim)

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := st.Send(protocol.HeaderGetSerialNumber, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close: err = %v, want ErrClosed", err)
	}
	if _, err := st.SendAndAwait(context.Background(), protocol.HeaderGetSerialNumber, nil, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("SendAndAwait after Close: err = %v, want ErrClosed", err)
	}
}

func TestKeepAliveArmsBroadcastFlags(t *testing.T) {
	sim := newSimulator(t, nil)
	connect(t, sim, WithBroadcastFlags(protocol.FlagDrivingSwitching|protocol.FlagSystemState))

	deadline := time.Now().Add(time.Second)
	for !sim.sawHeader(protocol.HeaderSetBroadcastFlags) {
		if time.Now().After(deadline) {
			t.Fatal("broadcast flags never sent")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sim.mu.Lock()
	defer sim.mu.Unlock()
	for _, pkt := range sim.received {
		if pkt.Header != protocol.HeaderSetBroadcastFlags {
			continue
		}
		if len(pkt.Payload) != 4 {
			t.Fatalf("flags payload = % x", pkt.Payload)
		}
		flags := binary.LittleEndian.Uint32(pkt.Payload)
		if flags != protocol.FlagDrivingSwitching|protocol.FlagSystemState {
			t.Errorf("flags = 0x%08x", flags)
		}
	}
}
