package ipcalc

import (
	"math"
	"strconv"
)

// Derivation is the outcome of DeriveGatewayAndMask. When Resolved is false
// Mask holds the caller's input unchanged and Gateway is empty.
type Derivation struct {
	Mask     string `json:"mask"`
	Gateway  string `json:"gateway"`
	Prefix   int    `json:"prefix"`
	Resolved bool   `json:"resolved"`
}

// DeriveGatewayAndMask normalises maskOrPrefix to a dotted mask and derives
// the gateway as the network address plus one.
//
// A numeric value of at most two characters in [0,32] is read as a prefix
// length; anything else must be a contiguous dotted mask. Malformed input
// never produces an error, it produces an unresolved Derivation.
func DeriveGatewayAndMask(address, maskOrPrefix string) Derivation {
	unresolved := Derivation{Mask: maskOrPrefix}

	mask := maskOrPrefix
	if p, ok := shortPrefix(maskOrPrefix); ok {
		m, err := PrefixToMask(p)
		if err != nil {
			return unresolved
		}
		mask = m
	}

	prefix, err := MaskToPrefix(mask)
	if err != nil {
		return unresolved
	}

	network, err := NetworkAddress(address, mask)
	if err != nil {
		return unresolved
	}
	n, err := ToInteger(network)
	if err != nil || n == math.MaxUint32 {
		// 255.255.255.255/32 has no next address.
		return unresolved
	}

	return Derivation{
		Mask:     mask,
		Gateway:  ToDotted(n + 1),
		Prefix:   prefix,
		Resolved: true,
	}
}

// shortPrefix reports whether s looks like a bare prefix length. Out of range
// numbers are still recognised as prefixes so the caller can reject them.
func shortPrefix(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
