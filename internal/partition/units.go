package partition

import (
	"fmt"
	"strings"
)

// Unit is a disk size unit understood by Convert.
type Unit string

const (
	Block    Unit = "BLK"
	Megabyte Unit = "MB"
	Gigabyte Unit = "GB"
)

// ParseUnit accepts the short unit names, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToUpper(strings.TrimSpace(s))) {
	case Block:
		return Block, nil
	case Megabyte:
		return Megabyte, nil
	case Gigabyte:
		return Gigabyte, nil
	default:
		return "", fmt.Errorf("unknown size unit %q", s)
	}
}

// Convert scales value between units with bit shifts. Shifts truncate.
// Only the six cross-unit pairs are defined; any other pair, including
// converting a unit to itself, yields 0.
//
// Block counts are treated as 1 KiB units (the shift is 10, not 11), which
// is what sfdisk -s reports and what historical layouts were sized with.
func Convert(value uint64, from, to Unit) uint64 {
	switch from {
	case Block:
		switch to {
		case Megabyte:
			return value >> 10
		case Gigabyte:
			return value >> 20
		}
	case Megabyte:
		switch to {
		case Block:
			return value << 10
		case Gigabyte:
			return value >> 10
		}
	case Gigabyte:
		switch to {
		case Block:
			return value << 20
		case Megabyte:
			return value << 10
		}
	}
	return 0
}
