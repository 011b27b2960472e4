// Package transport owns the UDP sockets behind dgram senders and receivers.
//
// This package decouples the public sender/receiver APIs from the socket
// implementation, enabling IPv4, IPv6 and mock transports.
package transport

import (
	"context"
	"net"
)

// Transport abstracts a datagram socket.
//
// Implementations:
//   - UDPTransport: production IPv4/IPv6 unicast and multicast socket
//   - MockTransport: test double for unit testing
type Transport interface {
	// Send transmits exactly one datagram to dest.
	//
	// Returns:
	//   - n: bytes placed on the wire
	//   - error: *errors.SendError on transmission failure,
	//     *errors.PartialSendError when n < len(packet),
	//     *errors.ClosedError after Close
	//
	// Context handling:
	//   - ctx.Done(): checked before issuing the write; a datagram already
	//     handed to the OS cannot be recalled
	//   - ctx.Deadline(): propagated to the socket write deadline
	Send(ctx context.Context, packet []byte, dest net.Addr) (int, error)

	// Receive waits for an incoming datagram, respecting context
	// cancellation/deadline.
	//
	// Returns:
	//   - packet: datagram payload, owned by the caller
	//   - srcAddr: source address of the datagram
	//   - interfaceIndex: OS interface index that received the datagram,
	//     zero when control messages are unavailable
	//   - error: *errors.NetworkError on timeout or receive failure
	Receive(ctx context.Context) (packet []byte, srcAddr net.Addr, interfaceIndex int, err error)

	// MulticastTTL reads back the multicast TTL (IPv4) or hop limit (IPv6)
	// currently configured on the socket.
	MulticastTTL() (int, error)

	// LocalAddr returns the bound local address.
	LocalAddr() net.Addr

	// Close releases network resources. Errors are propagated, not swallowed.
	Close() error
}
