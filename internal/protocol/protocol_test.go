package protocol

import (
	goerrors "errors"
	"net"
	"testing"

	"github.com/joshuafuller/dgram/internal/errors"
)

func TestValidateTTL(t *testing.T) {
	tests := []struct {
		ttl     int
		wantErr bool
	}{
		{ttl: -1, wantErr: true},
		{ttl: 0},
		{ttl: 1},
		{ttl: 64},
		{ttl: 255},
		{ttl: 256, wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateTTL(tt.ttl)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTTL(%d) error = %v, wantErr %v", tt.ttl, err, tt.wantErr)
			continue
		}
		if err != nil {
			var cfgErr *errors.ConfigurationError
			if !goerrors.As(err, &cfgErr) {
				t.Errorf("ValidateTTL(%d) error type = %T, want *errors.ConfigurationError", tt.ttl, err)
			} else if cfgErr.Field != "ttl" {
				t.Errorf("ValidateTTL(%d) Field = %q, want ttl", tt.ttl, cfgErr.Field)
			}
		}
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{port: -5, wantErr: true},
		{port: 0, wantErr: true},
		{port: 1},
		{port: DefaultMulticastPort},
		{port: 65535},
		{port: 65536, wantErr: true},
	}

	for _, tt := range tests {
		if err := ValidatePort(tt.port); (err != nil) != tt.wantErr {
			t.Errorf("ValidatePort(%d) error = %v, wantErr %v", tt.port, err, tt.wantErr)
		}
	}
}

func TestParseMulticastGroup(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "demo group", address: "224.0.1.1"},
		{name: "lowest ipv4 group", address: "224.0.0.0"},
		{name: "highest ipv4 group", address: "239.255.255.255"},
		{name: "ipv6 link-local group", address: "ff02::fb"},
		{name: "private unicast", address: "10.0.0.1", wantErr: true},
		{name: "just below range", address: "223.255.255.255", wantErr: true},
		{name: "just above range", address: "240.0.0.0", wantErr: true},
		{name: "ipv6 unicast", address: "2001:db8::1", wantErr: true},
		{name: "hostname", address: "localhost", wantErr: true},
		{name: "empty", address: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, err := ParseMulticastGroup(tt.address)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMulticastGroup(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *errors.ConfigurationError
				if !goerrors.As(err, &cfgErr) {
					t.Errorf("error type = %T, want *errors.ConfigurationError", err)
				}
				return
			}
			if !ip.IsMulticast() {
				t.Errorf("ParseMulticastGroup(%q) = %v, not multicast", tt.address, ip)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("multicast"); err != nil || m != ModeMulticast {
		t.Errorf("ParseMode(multicast) = %v, %v", m, err)
	}
	if m, err := ParseMode("unicast"); err != nil || m != ModeUnicast {
		t.Errorf("ParseMode(unicast) = %v, %v", m, err)
	}
	if _, err := ParseMode("broadcast"); err == nil {
		t.Error("ParseMode(broadcast) error = nil, want error")
	}
	if got := Mode(7).String(); got != "Mode(7)" {
		t.Errorf("Mode(7).String() = %q", got)
	}
}

func TestNetworkAndMaxPayload(t *testing.T) {
	v4 := net.ParseIP("127.0.0.1")
	v6 := net.ParseIP("::1")

	if got := Network(v4); got != "udp4" {
		t.Errorf("Network(%v) = %q, want udp4", v4, got)
	}
	if got := Network(v6); got != "udp6" {
		t.Errorf("Network(%v) = %q, want udp6", v6, got)
	}
	if got := MaxPayload(v4); got != MaxPayloadIPv4 {
		t.Errorf("MaxPayload(%v) = %d, want %d", v4, got, MaxPayloadIPv4)
	}
	if got := MaxPayload(v6); got != MaxPayloadIPv6 {
		t.Errorf("MaxPayload(%v) = %d, want %d", v6, got, MaxPayloadIPv6)
	}
}
