// Package ipcalc implements the IPv4 arithmetic used while collecting a
// server's network identity: address validation, netmask/prefix conversion
// and network/gateway derivation. All math is done on uint32 values.
package ipcalc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var (
	// ErrPrefixOutOfRange is returned for prefix lengths outside [0,32].
	ErrPrefixOutOfRange = errors.New("prefix length out of range")

	// ErrMalformedAddress is returned when a dotted quad cannot be parsed.
	ErrMalformedAddress = errors.New("malformed IPv4 address")

	// ErrNonContiguousMask is returned for dotted masks whose set bits are not a single leading run.
	ErrNonContiguousMask = errors.New("netmask is not contiguous")
)

// Reason describes why a value failed address validation.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonBlank
	ReasonCIDRSuffix
	ReasonInvalid
)

// String returns the operator-facing description of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "valid"
	case ReasonBlank:
		return "blank"
	case ReasonCIDRSuffix:
		return "contains CIDR suffix"
	case ReasonInvalid:
		return "not a valid IPv4 address"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// IsValidAddress reports whether s is a plain dotted-quad IPv4 address.
// Values carrying a CIDR suffix ("10.0.0.1/24") are not plain addresses.
func IsValidAddress(s string) bool {
	return Classify(s) == ReasonNone
}

// Classify returns ReasonNone for a valid address, otherwise the reason it
// was rejected.
func Classify(s string) Reason {
	if strings.TrimSpace(s) == "" {
		return ReasonBlank
	}
	if strings.Contains(s, "/") {
		return ReasonCIDRSuffix
	}
	if _, err := parseOctets(s); err != nil {
		return ReasonInvalid
	}
	return ReasonNone
}

// parseOctets splits a dotted quad into its four octets. Each octet must be
// one to three decimal digits with a value of at most 255.
func parseOctets(s string) ([4]byte, error) {
	var out [4]byte

	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return out, fmt.Errorf("%w: %q has %d octets", ErrMalformedAddress, s, len(parts))
	}

	for i, p := range parts {
		if len(p) == 0 || len(p) > 3 {
			return out, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return out, fmt.Errorf("%w: %q", ErrMalformedAddress, s)
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return out, fmt.Errorf("%w: octet %q in %q", ErrMalformedAddress, p, s)
		}
		out[i] = byte(n)
	}

	return out, nil
}

// ToInteger packs a dotted quad into a uint32, most significant octet first.
func ToInteger(address string) (uint32, error) {
	if strings.Contains(address, "/") {
		return 0, fmt.Errorf("%w: %q contains a CIDR suffix", ErrMalformedAddress, address)
	}
	octets, err := parseOctets(address)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(octets[:]), nil
}

// ToDotted renders a uint32 as a dotted quad. It is the inverse of ToInteger.
func ToDotted(n uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", (n>>24)&0xFF, (n>>16)&0xFF, (n>>8)&0xFF, n&0xFF)
}

// PrefixToMask returns the dotted netmask with the top prefixLen bits set.
// The shift happens in 64-bit space and is truncated to 32 bits, so a
// prefix of 0 wraps to 0.0.0.0.
func PrefixToMask(prefixLen int) (string, error) {
	if prefixLen < 0 || prefixLen > 32 {
		return "", fmt.Errorf("%w: %d", ErrPrefixOutOfRange, prefixLen)
	}
	return ToDotted(prefixBits(prefixLen)), nil
}

func prefixBits(prefixLen int) uint32 {
	return uint32(uint64(0xFFFFFFFF) << (32 - uint(prefixLen)))
}

// MaskToPrefix converts a dotted netmask to its prefix length.
func MaskToPrefix(mask string) (int, error) {
	m, err := ToInteger(mask)
	if err != nil {
		return 0, err
	}
	ones := bits.LeadingZeros32(^m)
	if prefixBits(ones) != m {
		return 0, fmt.Errorf("%w: %s", ErrNonContiguousMask, mask)
	}
	return ones, nil
}

// NetworkAddress returns address AND mask as a dotted quad.
func NetworkAddress(address, mask string) (string, error) {
	a, err := ToInteger(address)
	if err != nil {
		return "", fmt.Errorf("address: %w", err)
	}
	m, err := ToInteger(mask)
	if err != nil {
		return "", fmt.Errorf("mask: %w", err)
	}
	return ToDotted(a & m), nil
}
