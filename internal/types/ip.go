package types

import (
	"fmt"
	"net/netip"
	"strings"
)

// IPVersion restricts which address family is accepted
type IPVersion string

const (
	IPVersionV4  IPVersion = "ipv4"
	IPVersionV6  IPVersion = "ipv6"
	IPVersionAny IPVersion = "any"
)

// Valid reports whether v is a known IP version
func (v IPVersion) Valid() bool {
	switch v {
	case IPVersionV4, IPVersionV6, IPVersionAny:
		return true
	}
	return false
}

// Accepts reports whether addr belongs to the family v allows
func (v IPVersion) Accepts(addr netip.Addr) bool {
	switch v {
	case IPVersionV4:
		return addr.Is4()
	case IPVersionV6:
		return addr.Is6()
	default:
		return addr.IsValid()
	}
}

// ParseIP parses and normalizes an address. IPv4-mapped IPv6 addresses are
// unmapped, zoned addresses are rejected, and the family must match version.
func ParseIP(value string, version IPVersion) (netip.Addr, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return netip.Addr{}, fmt.Errorf("empty address")
	}

	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, err
	}
	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("zoned address not allowed: %s", value)
	}

	addr = addr.Unmap()
	if !version.Accepts(addr) {
		return netip.Addr{}, fmt.Errorf("address %s is not %s", addr, version)
	}
	return addr, nil
}

// RecordType returns the DNS record type for addr
func RecordType(addr netip.Addr) string {
	if addr.Is6() {
		return "AAAA"
	}
	return "A"
}
