package station

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/railctl/z21/internal/logging"
	"github.com/railctl/z21/protocol"
)

const (
	// defaultTimeout bounds every request-response wait unless the
	// caller's context expires first.
	defaultTimeout = 2 * time.Second

	// keepAlivePeriod is how often the broadcast-flags subscription is
	// re-asserted. The station drops the subscription of a client that
	// stays silent for about a minute.
	keepAlivePeriod = 10 * time.Second

	// hubCapacity is the per-subscriber packet backlog.
	hubCapacity = 100

	// maxDatagram is the receive buffer size. Z21 datagrams are far
	// smaller than this.
	maxDatagram = 1024
)

// defaultBroadcastFlags subscribes to loco and turnout broadcasts.
const defaultBroadcastFlags = protocol.FlagDrivingSwitching

// Station is a live session with a Z21 command station. It owns the UDP
// socket exclusively: one background goroutine reads the socket and
// republishes every decoded packet on an internal fan-out hub, from
// which request-response waiters and long-lived subscriptions each get
// their own copy of the stream.
//
// A Station is safe for concurrent use. Close (or Logout) tears the
// session down deterministically: all background goroutines are joined
// before Close returns.
type Station struct {
	conn           *net.UDPConn
	hub            *hub
	log            *zap.Logger
	timeout        time.Duration
	broadcastFlags uint32

	alive  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Station during Connect.
type Option func(*Station)

// WithTimeout sets the default request-response timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Station) { s.timeout = d }
}

// WithBroadcastFlags sets the event-subscription bitmask the keep-alive
// task re-asserts. See the protocol.Flag* constants.
func WithBroadcastFlags(flags uint32) Option {
	return func(s *Station) { s.broadcastFlags = flags }
}

// WithLogger sets the logger. Defaults to the package-level logger,
// which is silent unless Z21_LOG_LEVEL is set.
func WithLogger(log *zap.Logger) Option {
	return func(s *Station) { s.log = log }
}

// Connect establishes a session with the station at addr (typically
// "192.168.0.111:21105"). It binds an ephemeral local port, starts the
// receive loop, performs the initial handshake (a system state request
// answered by a system-state-changed event) and starts the keep-alive
// task. If the handshake does not complete within the timeout the whole
// construction fails and no session is returned.
func Connect(addr string, opts ...Option) (*Station, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve station address %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("connect to station: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Station{
		conn:           conn,
		hub:            newHub(hubCapacity),
		log:            logging.GetLogger(),
		timeout:        defaultTimeout,
		broadcastFlags: defaultBroadcastFlags,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.alive.Store(true)

	s.wg.Add(1)
	go s.receiveLoop()

	if err := s.handshake(); err != nil {
		s.teardown(false)
		return nil, fmt.Errorf("station handshake: %w", err)
	}

	s.wg.Add(1)
	go s.keepAliveLoop()

	s.log.Info("session established",
		zap.String("station", addr),
		zap.Duration("timeout", s.timeout))
	return s, nil
}

// receiveLoop is the only reader of the socket. It decodes datagrams
// and publishes them on the hub until the socket is closed.
func (s *Station) receiveLoop() {
	defer s.wg.Done()
	defer s.hub.close()

	buf := make([]byte, maxDatagram)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn("receive failed", zap.Error(err))
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		pkt, err := protocol.DecodePacket(data)
		if err != nil {
			// Undefined input from the wire; drop it.
			s.log.Debug("dropping malformed datagram", zap.Error(err), zap.Int("size", n))
			continue
		}
		logging.LogPacket("recv", pkt.Header, pkt.Payload)
		s.hub.publish(pkt)
	}
}

func (s *Station) handshake() error {
	ctx, cancelHandshake := context.WithTimeout(s.ctx, s.timeout)
	defer cancelHandshake()
	_, err := s.SendAndAwait(ctx, protocol.HeaderSystemStateGetData, nil, protocol.HeaderSystemStateChanged)
	return err
}

// keepAliveLoop re-arms the station's broadcast filter for as long as
// the session is alive.
func (s *Station) keepAliveLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(keepAlivePeriod)
	defer ticker.Stop()

	// Arm the filter immediately; the ticker only refreshes it.
	if err := s.sendBroadcastFlags(); err != nil {
		s.log.Warn("setting broadcast flags failed", zap.Error(err))
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !s.alive.Load() {
				return
			}
			if err := s.sendBroadcastFlags(); err != nil {
				s.log.Warn("keep-alive send failed", zap.Error(err))
			}
		}
	}
}

func (s *Station) sendBroadcastFlags() error {
	flags := make([]byte, 4)
	binary.LittleEndian.PutUint32(flags, s.broadcastFlags)
	return s.Send(protocol.HeaderSetBroadcastFlags, flags)
}

// Send encodes and transmits one packet, fire and forget.
func (s *Station) Send(header uint16, payload []byte) error {
	if !s.alive.Load() {
		return ErrClosed
	}
	pkt, err := protocol.NewPacket(header, payload)
	if err != nil {
		return err
	}
	logging.LogPacket("send", header, payload)
	if _, err := s.conn.Write(pkt.Encode()); err != nil {
		return fmt.Errorf("send packet 0x%04x: %w", header, err)
	}
	return nil
}

// SendAndAwait transmits a packet and waits for the first packet whose
// header equals expect (pass 0 to expect the header just sent). The
// subscription is taken before the send, so the reply cannot be missed.
// The wait is bounded by the station timeout and by ctx.
func (s *Station) SendAndAwait(ctx context.Context, header uint16, payload []byte, expect uint16) (protocol.Packet, error) {
	if expect == 0 {
		expect = header
	}
	sub := s.hub.subscribe()
	defer sub.cancel()

	if err := s.Send(header, payload); err != nil {
		return protocol.Packet{}, err
	}
	return s.await(ctx, sub, func(pkt protocol.Packet) bool {
		return pkt.Header == expect
	})
}

// SendXBus wraps an X-Bus message in a command-channel packet and
// transmits it without waiting for a reply.
func (s *Station) SendXBus(msg protocol.XBusMessage) error {
	return s.Send(protocol.HeaderXBus, msg.Encode())
}

// SendXBusAndAwait transmits an X-Bus message and waits for the first
// successfully checksummed X-Bus reply whose header equals expect (pass
// 0 to expect the header just sent). Replies failing validation are
// skipped, not surfaced.
func (s *Station) SendXBusAndAwait(ctx context.Context, msg protocol.XBusMessage, expect byte) (protocol.XBusMessage, error) {
	if expect == 0 {
		expect = msg.Header
	}
	sub := s.hub.subscribe()
	defer sub.cancel()

	if err := s.SendXBus(msg); err != nil {
		return protocol.XBusMessage{}, err
	}

	var reply protocol.XBusMessage
	_, err := s.await(ctx, sub, func(pkt protocol.Packet) bool {
		if pkt.Header != protocol.HeaderXBus {
			return false
		}
		decoded, err := protocol.DecodeXBus(pkt.Payload)
		if err != nil || decoded.Header != expect {
			return false
		}
		reply = decoded
		return true
	})
	if err != nil {
		return protocol.XBusMessage{}, err
	}
	return reply, nil
}

// await drains a subscription until a packet matches, the timeout
// elapses, or the stream ends.
func (s *Station) await(ctx context.Context, sub *subscription, match func(protocol.Packet) bool) (protocol.Packet, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	for {
		select {
		case pkt, ok := <-sub.ch:
			if !ok {
				return protocol.Packet{}, ErrClosed
			}
			if match(pkt) {
				return pkt, nil
			}
		case <-timer.C:
			return protocol.Packet{}, ErrTimeout
		case <-ctx.Done():
			return protocol.Packet{}, ctx.Err()
		}
	}
}

// Subscribe registers a long-lived consumer of the packet stream. Every
// future packet satisfying match is handed to fn on a dedicated
// goroutine, so a slow callback delays neither the receive loop nor
// other subscribers. The returned cancel function stops the
// subscription; it is also stopped by Close.
func (s *Station) Subscribe(match func(protocol.Packet) bool, fn func(protocol.Packet)) (cancel func()) {
	sub := s.hub.subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for pkt := range sub.ch {
			if match(pkt) {
				fn(pkt)
			}
		}
	}()
	return sub.cancel
}

// SubscribeSystemState polls the station for telemetry at the given
// interval and invokes fn for every system-state event that arrives,
// solicited or not. Decode failures are dropped: the event repeats on
// the next poll. The returned cancel function stops the poller and the
// consumer.
func (s *Station) SubscribeSystemState(interval time.Duration, fn func(protocol.SystemState)) (cancel func()) {
	pollCtx, stopPoll := context.WithCancel(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if !s.alive.Load() {
				return
			}
			if err := s.Send(protocol.HeaderSystemStateGetData, nil); err != nil {
				s.log.Warn("system state poll failed", zap.Error(err))
				return
			}
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	unsubscribe := s.Subscribe(func(pkt protocol.Packet) bool {
		return pkt.Header == protocol.HeaderSystemStateChanged
	}, func(pkt protocol.Packet) {
		state, err := protocol.DecodeSystemState(pkt.Payload)
		if err != nil {
			return
		}
		fn(state)
	})

	return func() {
		stopPoll()
		unsubscribe()
	}
}

// SerialNumber asks the station for its serial number.
func (s *Station) SerialNumber(ctx context.Context) (uint32, error) {
	reply, err := s.SendAndAwait(ctx, protocol.HeaderGetSerialNumber, nil, 0)
	if err != nil {
		return 0, err
	}
	if len(reply.Payload) < 4 {
		return 0, fmt.Errorf("%w: serial number reply is %d bytes", protocol.ErrInvalidStateData, len(reply.Payload))
	}
	return binary.LittleEndian.Uint32(reply.Payload[:4]), nil
}

// FirmwareVersion asks the station for its X-Bus firmware version,
// returned as BCD-coded major and minor numbers.
func (s *Station) FirmwareVersion(ctx context.Context) (major, minor byte, err error) {
	reply, err := s.SendXBusAndAwait(ctx,
		protocol.NewXBusMessage(protocol.XHeaderFirmware, protocol.DBFirmware),
		protocol.XHeaderFirmwareInfo)
	if err != nil {
		return 0, 0, err
	}
	if len(reply.Data) < 3 {
		return 0, 0, fmt.Errorf("%w: firmware reply carries %d data bytes", protocol.ErrInvalidStateData, len(reply.Data))
	}
	return reply.Data[1], reply.Data[2], nil
}

// VoltageOn switches the track voltage on, leaving programming mode if
// it was active. The command is acknowledged by a track power
// broadcast.
func (s *Station) VoltageOn(ctx context.Context) error {
	_, err := s.SendXBusAndAwait(ctx,
		protocol.NewXBusMessage(protocol.XHeaderGeneral, protocol.DBTrackPowerOn),
		protocol.XHeaderBroadcast)
	return err
}

// VoltageOff cuts the track voltage, stopping every locomotive
// immediately. Equivalent to the STOP button on the station.
func (s *Station) VoltageOff(ctx context.Context) error {
	_, err := s.SendXBusAndAwait(ctx,
		protocol.NewXBusMessage(protocol.XHeaderGeneral, protocol.DBTrackPowerOff),
		protocol.XHeaderBroadcast)
	return err
}

// Logout sends the logoff command and tears the session down. Sending
// is best effort; teardown happens regardless.
func (s *Station) Logout() error {
	return s.close(true)
}

// Close tears the session down without the logoff courtesy. Safe to
// call more than once.
func (s *Station) Close() error {
	return s.close(false)
}

func (s *Station) close(logoff bool) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.teardown(logoff)
	})
	return s.closeErr
}

// teardown stops every background goroutine and releases the socket.
// The receive loop exits on the socket close, which in turn closes the
// hub and ends all subscription dispatchers.
func (s *Station) teardown(logoff bool) error {
	s.alive.Store(false)
	var logoffErr error
	if logoff {
		if pkt, err := protocol.NewPacket(protocol.HeaderLogoff, nil); err == nil {
			if _, err := s.conn.Write(pkt.Encode()); err != nil {
				logoffErr = fmt.Errorf("logoff send: %w", err)
			}
		}
	}
	s.cancel()
	closeErr := s.conn.Close()
	s.wg.Wait()
	s.log.Info("session closed")
	if logoffErr != nil {
		return logoffErr
	}
	return closeErr
}

// Timeout returns the request-response timeout of this session.
func (s *Station) Timeout() time.Duration {
	return s.timeout
}
