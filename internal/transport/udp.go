package transport

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/protocol"
)

// MulticastOptions are applied to a send socket before its first write.
type MulticastOptions struct {
	TTL       int            // IP_MULTICAST_TTL (IPv4) or IPV6_MULTICAST_HOPS (IPv6)
	Interface *net.Interface // Egress interface, nil for the system default
	Loopback  bool           // Deliver to receivers on the sending host
}

// UDPTransport implements Transport for IPv4 and IPv6 UDP sockets.
//
// Exactly one of ipv4Conn/ipv6Conn is set, matching the socket family.
// They wrap conn to reach multicast socket options and control messages
// (IP_PKTINFO on Linux, IP_RECVIF on BSD).
type UDPTransport struct {
	conn       net.PacketConn
	ipv4Conn   *ipv4.PacketConn
	ipv6Conn   *ipv6.PacketConn
	group      net.IP // Joined group; datagrams addressed elsewhere are dropped
	maxPayload int
	closed     atomic.Bool
}

// NewSendTransport creates an unconnected UDP socket bound to an ephemeral
// port of the given network ("udp4" or "udp6").
//
// If mc is non-nil the multicast options are applied before returning. Any
// option that cannot be applied fails construction with
// *errors.ConfigurationError and the socket is closed, so a send socket
// never falls back to an unbounded or unknown scope.
func NewSendTransport(network string, mc *MulticastOptions) (*UDPTransport, error) {
	conn, err := net.ListenPacket(network, ":0")
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to open %s send socket", network),
		}
	}

	t := newUDPTransport(conn, network)

	if mc != nil {
		if err := t.configureMulticast(*mc); err != nil {
			_ = conn.Close() // Ignore error, already returning primary error
			return nil, err
		}
	}

	return t, nil
}

// NewListenTransport creates a socket that receives datagrams on port.
//
// When ip is a multicast group the socket binds the wildcard address with
// SO_REUSEADDR (and SO_REUSEPORT where supported) so several receivers on
// one host can share the port, then joins the group on ifi (nil selects the
// system default interface). Otherwise the socket binds ip:port directly.
func NewListenTransport(ctx context.Context, ip net.IP, port int, ifi *net.Interface) (*UDPTransport, error) {
	network := protocol.Network(ip)

	var (
		pc  net.PacketConn
		err error
	)
	if ip.IsMulticast() {
		lc := net.ListenConfig{Control: controlReuse}
		pc, err = lc.ListenPacket(ctx, network, net.JoinHostPort("", strconv.Itoa(port)))
	} else {
		pc, err = net.ListenPacket(network, net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	}
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind %s port %d", network, port),
		}
	}

	// Large enough for any UDP datagram
	if udpConn, ok := pc.(*net.UDPConn); ok {
		if err := udpConn.SetReadBuffer(protocol.ReceiveBufferSize); err != nil {
			_ = pc.Close()
			return nil, &errors.NetworkError{
				Operation: "configure socket",
				Err:       err,
				Details:   "failed to set read buffer size",
			}
		}
	}

	t := newUDPTransport(pc, network)

	if ip.IsMulticast() {
		if err := t.joinGroup(ip, ifi); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	// Control messages are best-effort. When unavailable (e.g. Windows),
	// Receive reports interfaceIndex=0 and skips destination filtering.
	if t.ipv4Conn != nil {
		_ = t.ipv4Conn.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true)
	} else {
		_ = t.ipv6Conn.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true)
	}

	return t, nil
}

func newUDPTransport(conn net.PacketConn, network string) *UDPTransport {
	t := &UDPTransport{conn: conn}
	if network == "udp6" {
		t.ipv6Conn = ipv6.NewPacketConn(conn)
		t.maxPayload = protocol.MaxPayloadIPv6
	} else {
		t.ipv4Conn = ipv4.NewPacketConn(conn)
		t.maxPayload = protocol.MaxPayloadIPv4
	}
	return t
}

func (t *UDPTransport) configureMulticast(mc MulticastOptions) error {
	if err := protocol.ValidateTTL(mc.TTL); err != nil {
		return err
	}

	if t.ipv4Conn != nil {
		if mc.Interface != nil {
			if err := t.ipv4Conn.SetMulticastInterface(mc.Interface); err != nil {
				return optionError("interface", mc.Interface.Name, "cannot select multicast interface", err)
			}
		}
		if err := t.ipv4Conn.SetMulticastLoopback(mc.Loopback); err != nil {
			return optionError("loopback", mc.Loopback, "cannot apply multicast loopback", err)
		}
		if err := t.ipv4Conn.SetMulticastTTL(mc.TTL); err != nil {
			return optionError("ttl", mc.TTL, "cannot apply multicast ttl", err)
		}
		return nil
	}

	if mc.Interface != nil {
		if err := t.ipv6Conn.SetMulticastInterface(mc.Interface); err != nil {
			return optionError("interface", mc.Interface.Name, "cannot select multicast interface", err)
		}
	}
	if err := t.ipv6Conn.SetMulticastLoopback(mc.Loopback); err != nil {
		return optionError("loopback", mc.Loopback, "cannot apply multicast loopback", err)
	}
	if err := t.ipv6Conn.SetMulticastHopLimit(mc.TTL); err != nil {
		return optionError("ttl", mc.TTL, "cannot apply multicast hop limit", err)
	}
	return nil
}

func (t *UDPTransport) joinGroup(group net.IP, ifi *net.Interface) error {
	addr := &net.UDPAddr{IP: group}

	var err error
	if t.ipv4Conn != nil {
		err = t.ipv4Conn.JoinGroup(ifi, addr)
	} else {
		err = t.ipv6Conn.JoinGroup(ifi, addr)
	}
	if err != nil {
		iface := "default interface"
		if ifi != nil {
			iface = ifi.Name
		}
		return &errors.NetworkError{
			Operation: "join group",
			Err:       err,
			Details:   fmt.Sprintf("failed to join %s on %s", group, iface),
		}
	}

	t.group = group
	return nil
}

func optionError(field string, value any, msg string, err error) error {
	return &errors.ConfigurationError{Field: field, Value: value, Message: msg, Err: err}
}

// Send transmits one datagram to dest.
//
// Payloads above the family's UDP limit are rejected before the write;
// the kernel's EMSGSIZE is mapped to the same reason. Nothing is ever
// truncated and nothing is retried.
func (t *UDPTransport) Send(ctx context.Context, packet []byte, dest net.Addr) (int, error) {
	const op = "send datagram"

	if t.closed.Load() {
		return 0, &errors.ClosedError{Operation: op}
	}

	// Check context cancellation before sending
	select {
	case <-ctx.Done():
		return 0, &errors.SendError{
			Operation:   op,
			Destination: addrString(dest),
			Reason:      reasonForContext(ctx.Err()),
			Err:         ctx.Err(),
		}
	default:
	}

	if len(packet) > t.maxPayload {
		return 0, &errors.SendError{
			Operation:   op,
			Destination: addrString(dest),
			Reason:      errors.ReasonMessageTooLarge,
			Err:         fmt.Errorf("payload of %d bytes exceeds %d byte limit", len(packet), t.maxPayload),
		}
	}

	// Propagate context deadline to socket; clear any previous one otherwise
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		if goerrors.Is(err, net.ErrClosed) {
			return 0, &errors.ClosedError{Operation: op}
		}
		return 0, &errors.SendError{
			Operation:   op,
			Destination: addrString(dest),
			Reason:      errors.ReasonUnknown,
			Err:         fmt.Errorf("set write deadline %v: %w", deadline, err),
		}
	}

	n, err := t.conn.WriteTo(packet, dest)
	if err != nil {
		if goerrors.Is(err, net.ErrClosed) {
			return 0, &errors.ClosedError{Operation: op}
		}
		return n, &errors.SendError{
			Operation:   op,
			Destination: addrString(dest),
			Reason:      classify(err),
			Err:         err,
		}
	}

	// Verify full datagram was sent
	if n != len(packet) {
		return n, &errors.PartialSendError{
			Destination: addrString(dest),
			Sent:        n,
			Expected:    len(packet),
		}
	}

	return n, nil
}

// Receive waits for an incoming datagram, respecting context
// cancellation/deadline.
//
// On a group-joined socket, datagrams whose destination address (from
// control messages) is not the group are skipped.
func (t *UDPTransport) Receive(ctx context.Context) ([]byte, net.Addr, int, error) {
	const op = "receive datagram"

	if t.closed.Load() {
		return nil, nil, 0, &errors.ClosedError{Operation: op}
	}

	// Check context cancellation before receive
	select {
	case <-ctx.Done():
		return nil, nil, 0, &errors.NetworkError{
			Operation: op,
			Err:       ctx.Err(),
			Details:   "context canceled before receive",
		}
	default:
	}

	// Propagate context deadline to socket
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, 0, &errors.NetworkError{
			Operation: "set read timeout",
			Err:       err,
			Details:   fmt.Sprintf("failed to set deadline %v", deadline),
		}
	}

	// Unblock the read when ctx is canceled without a deadline
	stopped := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(stopped)
		_ = t.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer func() {
		// A callback already running must finish before the next Receive
		// resets the deadline.
		if !stop() {
			<-stopped
		}
	}()

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)

	buffer := *bufPtr

	for {
		n, dst, ifIndex, srcAddr, err := t.readFrom(buffer)
		if err != nil {
			if goerrors.Is(err, net.ErrClosed) {
				return nil, nil, 0, &errors.ClosedError{Operation: op}
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, 0, &errors.NetworkError{
					Operation: op,
					Err:       ctxErr,
					Details:   "context done during receive",
				}
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, nil, 0, &errors.NetworkError{
					Operation: op,
					Err:       err,
					Details:   "timeout",
				}
			}
			return nil, nil, 0, &errors.NetworkError{
				Operation: op,
				Err:       err,
				Details:   "failed to read from socket",
			}
		}

		if t.group != nil && dst != nil && !dst.Equal(t.group) {
			continue
		}

		// Return copy to caller (pool owns buffer, caller owns result)
		result := make([]byte, n)
		copy(result, buffer[:n])
		return result, srcAddr, ifIndex, nil
	}
}

func (t *UDPTransport) readFrom(b []byte) (int, net.IP, int, net.Addr, error) {
	if t.ipv4Conn != nil {
		n, cm, src, err := t.ipv4Conn.ReadFrom(b)
		if err != nil || cm == nil {
			return n, nil, 0, src, err
		}
		return n, cm.Dst, cm.IfIndex, src, nil
	}

	n, cm, src, err := t.ipv6Conn.ReadFrom(b)
	if err != nil || cm == nil {
		return n, nil, 0, src, err
	}
	return n, cm.Dst, cm.IfIndex, src, nil
}

// MulticastTTL reads the multicast TTL or hop limit back from the socket.
func (t *UDPTransport) MulticastTTL() (int, error) {
	if t.closed.Load() {
		return 0, &errors.ClosedError{Operation: "read multicast ttl"}
	}

	var (
		ttl int
		err error
	)
	if t.ipv4Conn != nil {
		ttl, err = t.ipv4Conn.MulticastTTL()
	} else {
		ttl, err = t.ipv6Conn.MulticastHopLimit()
	}
	if err != nil {
		return 0, &errors.NetworkError{
			Operation: "read multicast ttl",
			Err:       err,
		}
	}
	return ttl, nil
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close releases network resources. Closing an already closed transport
// returns nil.
func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := t.conn.Close(); err != nil {
		return &errors.NetworkError{
			Operation: "close socket",
			Err:       err,
			Details:   "failed to close UDP socket",
		}
	}

	return nil
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "<nil>"
	}
	return addr.String()
}
