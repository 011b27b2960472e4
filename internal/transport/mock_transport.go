package transport

import (
	"context"
	"net"
	"sync"

	"github.com/joshuafuller/dgram/internal/errors"
)

// SentPacket records one datagram handed to a MockTransport.
type SentPacket struct {
	Packet []byte
	Dest   net.Addr
}

// ReceiveResponse is one scripted result returned by MockTransport.Receive.
type ReceiveResponse struct {
	Packet         []byte
	Src            net.Addr
	InterfaceIndex int
	Err            error
}

// MockTransport is an in-memory Transport for unit tests.
//
// SendFunc, when set, decides the result of each Send (e.g. to simulate a
// short write); otherwise Send records the packet and reports a full write.
type MockTransport struct {
	mu sync.Mutex

	SendFunc         func(packet []byte, dest net.Addr) (int, error)
	ReceiveResponses []ReceiveResponse
	TTL              int
	Addr             net.Addr
	CloseErr         error

	sent   []SentPacket
	closed bool
}

// NewMockTransport returns a MockTransport reporting ttl from MulticastTTL.
func NewMockTransport(ttl int) *MockTransport {
	return &MockTransport{
		TTL:  ttl,
		Addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000},
	}
}

func (m *MockTransport) Send(ctx context.Context, packet []byte, dest net.Addr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, &errors.ClosedError{Operation: "send datagram"}
	}
	if err := ctx.Err(); err != nil {
		return 0, &errors.SendError{
			Operation:   "send datagram",
			Destination: addrString(dest),
			Reason:      reasonForContext(err),
			Err:         err,
		}
	}
	if m.SendFunc != nil {
		return m.SendFunc(packet, dest)
	}

	cp := make([]byte, len(packet))
	copy(cp, packet)
	m.sent = append(m.sent, SentPacket{Packet: cp, Dest: dest})
	return len(packet), nil
}

func (m *MockTransport) Receive(ctx context.Context) ([]byte, net.Addr, int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, 0, &errors.ClosedError{Operation: "receive datagram"}
	}
	if len(m.ReceiveResponses) > 0 {
		r := m.ReceiveResponses[0]
		m.ReceiveResponses = m.ReceiveResponses[1:]
		m.mu.Unlock()
		return r.Packet, r.Src, r.InterfaceIndex, r.Err
	}
	m.mu.Unlock()

	<-ctx.Done()
	return nil, nil, 0, &errors.NetworkError{
		Operation: "receive datagram",
		Err:       ctx.Err(),
		Details:   "no scripted response",
	}
}

func (m *MockTransport) MulticastTTL() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, &errors.ClosedError{Operation: "read multicast ttl"}
	}
	return m.TTL, nil
}

func (m *MockTransport) LocalAddr() net.Addr {
	return m.Addr
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.CloseErr
}

// Sent returns a copy of the datagrams sent so far, in call order.
func (m *MockTransport) Sent() []SentPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentPacket, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
