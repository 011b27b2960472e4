package sender

import (
	"net"
	"strconv"

	"github.com/joshuafuller/dgram/internal/errors"
	"github.com/joshuafuller/dgram/internal/protocol"
)

// Mode selects unicast or multicast addressing.
type Mode = protocol.Mode

const (
	Unicast   = protocol.ModeUnicast
	Multicast = protocol.ModeMulticast
)

// Destination is where a Sender delivers datagrams. It is immutable; the
// zero value is not a valid destination.
type Destination struct {
	address string
	port    int
	mode    Mode
}

// NewDestination validates and returns a destination.
//
// In Multicast mode address must be an IP literal in 224.0.0.0/4 or
// ff00::/8. In Unicast mode it may be an IP literal or a hostname; the name
// is resolved when the Sender is created.
func NewDestination(address string, port int, mode Mode) (Destination, error) {
	if err := protocol.ValidatePort(port); err != nil {
		return Destination{}, err
	}

	switch mode {
	case Multicast:
		if _, err := protocol.ParseMulticastGroup(address); err != nil {
			return Destination{}, err
		}
	case Unicast:
		if address == "" {
			return Destination{}, &errors.ConfigurationError{
				Field:   "address",
				Message: "destination address is required",
			}
		}
	default:
		return Destination{}, &errors.ConfigurationError{
			Field:   "mode",
			Value:   mode,
			Message: "unknown destination mode",
		}
	}

	return Destination{address: address, port: port, mode: mode}, nil
}

// UnicastDestination is shorthand for NewDestination(address, port, Unicast).
func UnicastDestination(address string, port int) (Destination, error) {
	return NewDestination(address, port, Unicast)
}

// MulticastDestination is shorthand for NewDestination(group, port, Multicast).
func MulticastDestination(group string, port int) (Destination, error) {
	return NewDestination(group, port, Multicast)
}

func (d Destination) Address() string { return d.address }
func (d Destination) Port() int       { return d.port }
func (d Destination) Mode() Mode      { return d.mode }

// String returns host:port.
func (d Destination) String() string {
	return net.JoinHostPort(d.address, strconv.Itoa(d.port))
}

func (d Destination) valid() bool {
	return d.address != "" && d.port != 0
}

// resolve returns the UDP address datagrams are written to.
func (d Destination) resolve() (*net.UDPAddr, error) {
	if d.mode == Multicast {
		ip, err := protocol.ParseMulticastGroup(d.address)
		if err != nil {
			return nil, err
		}
		return &net.UDPAddr{IP: ip, Port: d.port}, nil
	}

	addr, err := net.ResolveUDPAddr("udp", d.String())
	if err != nil {
		return nil, &errors.ConfigurationError{
			Field:   "address",
			Value:   d.address,
			Message: "cannot resolve destination",
			Err:     err,
		}
	}
	return addr, nil
}
