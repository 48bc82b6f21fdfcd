// Package partition sizes the kickstart disk layout: volume defaults, unit
// conversion, required space with overhead and the fit decision.
package partition

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrUnknownVolume is returned when a volume name is not part of the layout.
	ErrUnknownVolume = errors.New("unknown volume")

	// ErrInvalidSize is returned when a size is negative, above MaxSizeMB or
	// not an integer.
	ErrInvalidSize = errors.New("invalid volume size")
)

// MaxSizeMB is the largest size a single volume may have (1 EiB).
const MaxSizeMB int64 = 1 << 40

// Volume names, in layout order.
const (
	VolumeBoot     = "boot"
	VolumeRoot     = "root"
	VolumeTmp      = "tmp"
	VolumeHome     = "home"
	VolumeVar      = "var"
	VolumeVarLog   = "varlog"
	VolumeYumCache = "yumcache"
	VolumeSwap     = "swap"
)

// VolumeSpec is a named allocation (mount point or swap) sized in megabytes.
type VolumeSpec struct {
	Name       string `json:"name" mapstructure:"name"`
	MountPoint string `json:"mount_point" mapstructure:"mount_point"`
	SizeMB     int64  `json:"size_mb" mapstructure:"size_mb"`
}

// DefaultVolumes returns the stock layout. The sizes sum to 33500 MB.
func DefaultVolumes() []VolumeSpec {
	return []VolumeSpec{
		{Name: VolumeBoot, MountPoint: "/boot", SizeMB: 500},
		{Name: VolumeRoot, MountPoint: "/", SizeMB: 10000},
		{Name: VolumeTmp, MountPoint: "/tmp", SizeMB: 1000},
		{Name: VolumeHome, MountPoint: "/home", SizeMB: 4000},
		{Name: VolumeVar, MountPoint: "/var", SizeMB: 4000},
		{Name: VolumeVarLog, MountPoint: "/var/log", SizeMB: 4000},
		{Name: VolumeYumCache, MountPoint: "/var/cache/yum", SizeMB: 2000},
		{Name: VolumeSwap, MountPoint: "swap", SizeMB: 4000},
	}
}

// DiskLayout is the target device plus its volumes. RequiredMB and SlackMB
// are derived by Planner.Evaluate.
type DiskLayout struct {
	Device      string       `json:"device"`
	AvailableMB int64        `json:"avail_mb"`
	Volumes     []VolumeSpec `json:"volumes"`
	RequiredMB  int64        `json:"required_mb"`
	SlackMB     int64        `json:"slack_mb"`
}

// Clone returns a deep copy of the layout.
func (l DiskLayout) Clone() DiskLayout {
	out := l
	out.Volumes = append([]VolumeSpec(nil), l.Volumes...)
	return out
}

// Volume returns the named volume.
func (l DiskLayout) Volume(name string) (VolumeSpec, bool) {
	for _, v := range l.Volumes {
		if v.Name == name {
			return v, true
		}
	}
	return VolumeSpec{}, false
}

// SetSize changes the size of a single volume.
func (l *DiskLayout) SetSize(name string, sizeMB int64) error {
	if sizeMB < 0 || sizeMB > MaxSizeMB {
		return fmt.Errorf("%w: %s=%d", ErrInvalidSize, name, sizeMB)
	}
	for i := range l.Volumes {
		if l.Volumes[i].Name == name {
			l.Volumes[i].SizeMB = sizeMB
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownVolume, name)
}

// ApplySizes parses operator-entered sizes keyed by volume name and applies
// the ones that parse. Every rejected entry is returned; volumes that are
// not mentioned keep their size.
func (l *DiskLayout) ApplySizes(sizes map[string]string) []error {
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		n, err := ParseSize(sizes[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := l.SetSize(name, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ParseSize reads a megabyte count typed by the operator. Values above
// MaxSizeMB are rejected.
func ParseSize(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 || n > MaxSizeMB {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return n, nil
}

// Flatten renders the layout as the flat key/value record consumed by the
// post-install stage.
func (l DiskLayout) Flatten() map[string]string {
	out := map[string]string{
		"device":      l.Device,
		"avail_mb":    strconv.FormatInt(l.AvailableMB, 10),
		"required_mb": strconv.FormatInt(l.RequiredMB, 10),
		"diskdiff":    strconv.FormatInt(l.SlackMB, 10),
	}
	for _, v := range l.Volumes {
		out[v.Name] = strconv.FormatInt(v.SizeMB, 10)
	}
	return out
}

// TemplateValues returns the placeholders used by the partition template:
// device, required_mb and <volume>_size for every volume.
func TemplateValues(l DiskLayout) map[string]string {
	out := map[string]string{
		"device":      l.Device,
		"required_mb": strconv.FormatInt(l.RequiredMB, 10),
	}
	for _, v := range l.Volumes {
		out[v.Name+"_size"] = strconv.FormatInt(v.SizeMB, 10)
	}
	return out
}
