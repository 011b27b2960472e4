// Package protocol holds the constants and validation rules shared by the
// sender, receiver and CLI.
package protocol

import (
	"fmt"
	"net"
	"time"

	"github.com/joshuafuller/dgram/internal/errors"
)

// Mode selects how a destination is addressed.
type Mode int

const (
	// ModeUnicast sends to a single host.
	ModeUnicast Mode = iota
	// ModeMulticast sends to a group address joined by any number of hosts.
	ModeMulticast
)

func (m Mode) String() string {
	switch m {
	case ModeUnicast:
		return "unicast"
	case ModeMulticast:
		return "multicast"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "unicast"/"multicast" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "unicast":
		return ModeUnicast, nil
	case "multicast":
		return ModeMulticast, nil
	default:
		return 0, &errors.ConfigurationError{
			Field:   "mode",
			Value:   s,
			Message: `must be "unicast" or "multicast"`,
		}
	}
}

const (
	// DefaultTTL keeps multicast traffic on the local link.
	DefaultTTL = 1
	MinTTL     = 0
	MaxTTL     = 255

	MinPort = 1
	MaxPort = 65535

	// MaxPayloadIPv4 is 65535 minus the 20 byte IPv4 header and the 8 byte UDP header.
	MaxPayloadIPv4 = 65507
	// MaxPayloadIPv6 is 65535 minus the 8 byte UDP header; the IPv6 header is not counted in the payload length.
	MaxPayloadIPv6 = 65527

	// ReceiveBufferSize is large enough for any UDP datagram.
	ReceiveBufferSize = 65536
)

// Defaults used by the CLI, matching the demo deployment.
const (
	DefaultMulticastGroup = "224.0.1.1"
	DefaultMulticastPort  = 30001
	DefaultUnicastPort    = 30002
	DefaultMessage        = "Hello from sender!"
	DefaultInterval       = time.Second
)

// ValidateTTL checks that ttl fits the IP TTL / hop limit field.
func ValidateTTL(ttl int) error {
	if ttl < MinTTL || ttl > MaxTTL {
		return &errors.ConfigurationError{
			Field:   "ttl",
			Value:   ttl,
			Message: fmt.Sprintf("must be between %d and %d", MinTTL, MaxTTL),
		}
	}
	return nil
}

// ValidatePort checks that port is a usable UDP destination port.
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return &errors.ConfigurationError{
			Field:   "port",
			Value:   port,
			Message: fmt.Sprintf("must be between %d and %d", MinPort, MaxPort),
		}
	}
	return nil
}

// ParseMulticastGroup parses address as an IP literal in the multicast
// range: 224.0.0.0/4 for IPv4, ff00::/8 for IPv6.
func ParseMulticastGroup(address string) (net.IP, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, &errors.ConfigurationError{
			Field:   "address",
			Value:   address,
			Message: "multicast group must be an IP literal",
		}
	}
	if !ip.IsMulticast() {
		return nil, &errors.ConfigurationError{
			Field:   "address",
			Value:   address,
			Message: "not in the multicast range (224.0.0.0/4 or ff00::/8)",
		}
	}
	return ip, nil
}

// IsIPv4 reports whether ip is an IPv4 (or IPv4-mapped) address.
func IsIPv4(ip net.IP) bool {
	return ip.To4() != nil
}

// Network returns the UDP network name for ip: "udp4" or "udp6".
func Network(ip net.IP) string {
	if IsIPv4(ip) {
		return "udp4"
	}
	return "udp6"
}

// MaxPayload returns the largest UDP payload deliverable to ip.
func MaxPayload(ip net.IP) int {
	if IsIPv4(ip) {
		return MaxPayloadIPv4
	}
	return MaxPayloadIPv6
}
