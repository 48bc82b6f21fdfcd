package partition

import (
	"fmt"
	"strings"
)

// ProbedDisk is a candidate install device as reported by the hardware
// probe, sized in blocks.
type ProbedDisk struct {
	Device string `json:"device"`
	Blocks uint64 `json:"blocks"`
}

// AvailableMB converts the probed size to megabytes.
func (d ProbedDisk) AvailableMB() int64 {
	return int64(Convert(d.Blocks, Block, Megabyte))
}

// Label is the text shown when the operator picks an install disk. The
// gigabyte figure is the truncated shift result with one decimal place.
func (d ProbedDisk) Label() string {
	return fmt.Sprintf("%s - %.1f GB", d.Name(), float64(Convert(d.Blocks, Block, Gigabyte)))
}

// Name strips a leading /dev/ from the device path.
func (d ProbedDisk) Name() string {
	return strings.TrimPrefix(d.Device, "/dev/")
}
