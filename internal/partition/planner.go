package partition

import (
	"fmt"
	"math"
)

const (
	// DefaultOverhead is the margin added for filesystem and LVM metadata.
	DefaultOverhead = 0.01

	// LegacyOverhead reproduces layouts sized without any margin.
	LegacyOverhead = 0.0
)

// Planner computes required space for disk layouts. A Planner is immutable
// after construction and safe to share.
type Planner struct {
	overhead float64
	defaults []VolumeSpec
}

// Option configures a Planner.
type Option func(*Planner)

// WithOverhead sets the overhead fraction applied to the volume sum.
func WithOverhead(fraction float64) Option {
	return func(p *Planner) {
		p.overhead = fraction
	}
}

// WithDefaults replaces the default volume set. The order given is the
// layout order.
func WithDefaults(volumes []VolumeSpec) Option {
	return func(p *Planner) {
		p.defaults = append([]VolumeSpec(nil), volumes...)
	}
}

// NewPlanner returns a Planner using DefaultOverhead and DefaultVolumes
// unless overridden.
func NewPlanner(opts ...Option) (*Planner, error) {
	p := &Planner{
		overhead: DefaultOverhead,
		defaults: DefaultVolumes(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.overhead < 0 || math.IsNaN(p.overhead) || math.IsInf(p.overhead, 0) {
		return nil, fmt.Errorf("overhead fraction must be a non-negative number, got %v", p.overhead)
	}
	if len(p.defaults) == 0 {
		return nil, fmt.Errorf("at least one default volume is required")
	}
	seen := make(map[string]bool, len(p.defaults))
	for _, v := range p.defaults {
		if v.Name == "" {
			return nil, fmt.Errorf("default volume name is required")
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("duplicate default volume %q", v.Name)
		}
		if v.SizeMB < 0 || v.SizeMB > MaxSizeMB {
			return nil, fmt.Errorf("%w: default %s=%d", ErrInvalidSize, v.Name, v.SizeMB)
		}
		seen[v.Name] = true
	}

	return p, nil
}

// Overhead returns the configured overhead fraction.
func (p *Planner) Overhead() float64 {
	return p.overhead
}

// Defaults returns a copy of the default volume set.
func (p *Planner) Defaults() []VolumeSpec {
	return append([]VolumeSpec(nil), p.defaults...)
}

// NewLayout returns a layout for device populated with the default volumes.
func (p *Planner) NewLayout(device string, availableMB int64) DiskLayout {
	l := DiskLayout{
		Device:      device,
		AvailableMB: availableMB,
		Volumes:     p.Defaults(),
	}
	return p.Evaluate(l)
}

// ComputeRequired sums the volume sizes and adds the overhead, truncating
// the overhead product toward zero. A total that does not fit in an int64
// saturates at math.MaxInt64, which never fits.
func (p *Planner) ComputeRequired(l DiskLayout) int64 {
	var sum int64
	for _, v := range l.Volumes {
		if v.SizeMB > 0 && sum > math.MaxInt64-v.SizeMB {
			return math.MaxInt64
		}
		sum += v.SizeMB
	}

	extra := float64(sum) * p.overhead
	if extra >= 1<<62 || int64(extra) > math.MaxInt64-sum {
		return math.MaxInt64
	}
	return sum + int64(extra)
}

// Slack is available minus required space. Negative slack does not fit.
func (p *Planner) Slack(l DiskLayout) int64 {
	return l.AvailableMB - p.ComputeRequired(l)
}

// Fits reports whether the layout fits on its device. A layout that would
// consume the device exactly does not fit.
func (p *Planner) Fits(l DiskLayout) bool {
	return p.ComputeRequired(l) < l.AvailableMB
}

// Evaluate returns a copy of l with RequiredMB and SlackMB filled in.
func (p *Planner) Evaluate(l DiskLayout) DiskLayout {
	out := l.Clone()
	out.RequiredMB = p.ComputeRequired(l)
	out.SlackMB = out.AvailableMB - out.RequiredMB
	return out
}

// ResetToDefaults restores every volume to its default size. Device and
// available space are left alone; derived fields are recomputed.
func (p *Planner) ResetToDefaults(l *DiskLayout) {
	l.Volumes = p.Defaults()
	*l = p.Evaluate(*l)
}

// DefaultsRequired is the required space of the default layout, overhead
// included.
func (p *Planner) DefaultsRequired() int64 {
	return p.ComputeRequired(DiskLayout{Volumes: p.defaults})
}
