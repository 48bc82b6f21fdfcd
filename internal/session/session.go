// Package session drives one server through network collection, disk
// sizing and confirmation. A Session is not safe for concurrent use.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/preinstall/internal/domain"
	"github.com/jbweber/homelab/preinstall/internal/ipcalc"
	"github.com/jbweber/homelab/preinstall/internal/partition"
)

var (
	// ErrUnknownLocation is returned when a location index is out of range.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrNoDisk is returned when sizes are submitted before a disk is chosen.
	ErrNoDisk = errors.New("no install disk selected")

	// ErrNotComplete is returned when exporting an unconfirmed session.
	ErrNotComplete = errors.New("session is not complete")
)

// Observer is notified of transitions and validation verdicts.
type Observer interface {
	Transition(from, to string)
	Validation(stage string, passed bool)
}

type nopObserver struct{}

func (nopObserver) Transition(string, string) {}
func (nopObserver) Validation(string, bool) {}

// NetworkInput is one round of operator-entered network values.
type NetworkInput struct {
	Hostname      string `json:"hostname"`
	Address       string `json:"address"`
	Mask          string `json:"mask"`
	Gateway       string `json:"gateway"` // Derived from address and mask when blank
	PrimaryDNS    string `json:"primary_dns"`
	SecondaryDNS  string `json:"secondary_dns"`
	SecondAddress string `json:"second_address"`
	SecondMask    string `json:"second_mask"`
	SecondGateway string `json:"second_gateway"`
}

// DiskInput is one round of operator-entered volume sizes in MB. Reset
// discards Sizes and restores the defaults.
type DiskInput struct {
	Sizes map[string]string `json:"sizes"`
	Reset bool              `json:"reset"`
}

// Export is the finalized output of a complete session.
type Export struct {
	Server    map[string]string `json:"server"`
	Disk      map[string]string `json:"disk"`
	Partition map[string]string `json:"partition"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID              string                `json:"id"`
	State           State                 `json:"state"`
	IPValidation    bool                  `json:"ip_validation"`
	SecondInterface bool                  `json:"second_interface"`
	Profile         domain.ServerProfile  `json:"profile"`
	Disk            *partition.ProbedDisk `json:"disk,omitempty"`
	DiskLabel       string                `json:"disk_label,omitempty"`
	Layout          *partition.DiskLayout `json:"layout,omitempty"`
	LastNetwork     *NetworkReport        `json:"last_network,omitempty"`
	LastDisk        *DiskReport           `json:"last_disk,omitempty"`
}

// Session holds the evolving profile and layout of one server.
type Session struct {
	id              string
	state           State
	profile         domain.ServerProfile
	pending         *domain.ServerProfile
	disk            *partition.ProbedDisk
	layout          *partition.DiskLayout
	lastNetwork     *NetworkReport
	lastDisk        *DiskReport
	validateIP      bool
	secondInterface bool
	planner         *partition.Planner
	locations       []domain.Location
	logger          *zap.SugaredLogger
	observer        Observer
	now             func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithPlanner sets the planner used for disk sizing.
func WithPlanner(p *partition.Planner) Option {
	return func(s *Session) { s.planner = p }
}

// WithLocations sets the locations the operator can pick from.
func WithLocations(locations []domain.Location) Option {
	return func(s *Session) { s.locations = append([]domain.Location(nil), locations...) }
}

// WithSecondInterface enables collection of a secondary interface. A
// secondary left entirely blank is treated as not configured.
func WithSecondInterface(enabled bool) Option {
	return func(s *Session) { s.secondInterface = enabled }
}

// WithIPValidation sets the initial state of address validation.
func WithIPValidation(enabled bool) Option {
	return func(s *Session) { s.validateIP = enabled }
}

// WithHostInfo records probed host metadata on the profile.
func WithHostInfo(h domain.HostInfo) Option {
	return func(s *Session) { s.profile.Host = h }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithClock overrides the time source for the build date.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New starts a session in CollectingNetwork with address validation armed.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		id:              uuid.NewString(),
		state:           CollectingNetwork,
		validateIP:      true,
		secondInterface: true,
		logger:          zap.NewNop().Sugar(),
		observer:        nopObserver{},
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.planner == nil {
		p, err := partition.NewPlanner()
		if err != nil {
			return nil, fmt.Errorf("failed to create planner: %w", err)
		}
		s.planner = p
	}

	s.logger.Infow("session started", "session", s.id, "second_interface", s.secondInterface)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

// IPValidation reports whether network rounds are validated.
func (s *Session) IPValidation() bool { return s.validateIP }

// Locations returns the selectable locations.
func (s *Session) Locations() []domain.Location {
	return append([]domain.Location(nil), s.locations...)
}

// Profile returns a copy of the accepted profile.
func (s *Session) Profile() domain.ServerProfile {
	return copyProfile(s.profile)
}

// Snapshot returns a copy of the session's state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		State:           s.state,
		IPValidation:    s.validateIP,
		SecondInterface: s.secondInterface,
		Profile:         copyProfile(s.profile),
	}
	if s.disk != nil {
		d := *s.disk
		snap.Disk = &d
		snap.DiskLabel = d.Label()
	}
	if s.layout != nil {
		l := s.layout.Clone()
		snap.Layout = &l
	}
	if s.lastNetwork != nil {
		r := *s.lastNetwork
		snap.LastNetwork = &r
	}
	if s.lastDisk != nil {
		r := *s.lastDisk
		snap.LastDisk = &r
	}
	return snap
}

// SelectLocation sets the profile's location and domain from the
// configured location at index.
func (s *Session) SelectLocation(index int) error {
	if s.state != CollectingNetwork {
		return fmt.Errorf("%w: select location in state %s", ErrInvalidTransition, s.state)
	}
	if index < 0 || index >= len(s.locations) {
		return fmt.Errorf("%w: %d", ErrUnknownLocation, index)
	}

	loc := s.locations[index]
	s.profile.Location = loc.Name
	s.profile.Domain = loc.Domain
	if s.pending != nil {
		s.pending.Location = loc.Name
		s.pending.Domain = loc.Domain
	}
	s.logger.Debugw("location selected", "session", s.id, "location", loc.Name, "domain", loc.Domain)
	return nil
}

// SubmitNetwork builds a profile candidate from in, derives masks and
// gateways, and validates every address field unless validation is off.
// An invalid candidate is held so SkipIPValidation can accept it.
func (s *Session) SubmitNetwork(in NetworkInput) (NetworkReport, error) {
	if err := s.fire(SubmitNetwork, false); err != nil {
		return NetworkReport{}, err
	}

	candidate := s.candidate(in)

	var report NetworkReport
	if s.validateIP {
		report = checkAddresses(addressFields(candidate))
	} else {
		report = NetworkReport{Valid: true, Skipped: true}
	}
	s.lastNetwork = &report
	s.observer.Validation("network", report.Valid)

	if report.Valid {
		s.profile = candidate
		s.pending = nil
	} else {
		s.pending = &candidate
		s.logger.Infow("network validation failed", "session", s.id, "findings", len(report.Findings), "summary", report.Summary)
	}

	if err := s.fire(Verdict, report.Valid); err != nil {
		return report, err
	}
	return report, nil
}

// SkipIPValidation turns address validation off until the operator
// re-configures. A candidate held from a failed round is accepted as is.
func (s *Session) SkipIPValidation() error {
	if s.state != CollectingNetwork {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, SkipValidation, s.state)
	}

	s.validateIP = false
	s.logger.Infow("ip validation disabled", "session", s.id)

	if s.pending == nil {
		return nil
	}
	if err := s.fire(SkipValidation, false); err != nil {
		return err
	}
	s.profile = *s.pending
	s.pending = nil
	return nil
}

// SelectDisk chooses the install device and starts a default layout on it.
func (s *Session) SelectDisk(d partition.ProbedDisk) error {
	if s.state != CollectingDisk {
		return fmt.Errorf("%w: select disk in state %s", ErrInvalidTransition, s.state)
	}

	layout := s.planner.NewLayout(d.Name(), d.AvailableMB())
	s.disk = &d
	s.layout = &layout
	s.lastDisk = nil
	s.logger.Infow("disk selected", "session", s.id, "device", layout.Device, "avail_mb", layout.AvailableMB)
	return nil
}

// SubmitDisk applies in to the layout and checks that it fits. Sizes that
// do not parse are reported and keep the session collecting.
func (s *Session) SubmitDisk(in DiskInput) (DiskReport, error) {
	if s.state == CollectingDisk && s.layout == nil {
		return DiskReport{}, ErrNoDisk
	}
	if err := s.fire(SubmitDisk, false); err != nil {
		return DiskReport{}, err
	}

	work := s.layout.Clone()
	var errs []error
	if in.Reset {
		s.planner.ResetToDefaults(&work)
	} else {
		errs = work.ApplySizes(in.Sizes)
	}

	work = s.planner.Evaluate(work)
	s.layout = &work

	report := DiskReport{
		Fits:        len(errs) == 0 && s.planner.Fits(work),
		AvailableMB: work.AvailableMB,
		RequiredMB:  work.RequiredMB,
		SlackMB:     work.SlackMB,
	}
	for _, err := range errs {
		report.Errors = append(report.Errors, err.Error())
	}
	s.lastDisk = &report
	s.observer.Validation("disk", report.Fits)

	if !report.Fits {
		s.logger.Infow("disk layout rejected", "session", s.id, "required_mb", report.RequiredMB, "avail_mb", report.AvailableMB, "errors", len(report.Errors))
	}

	if err := s.fire(Verdict, report.Fits); err != nil {
		return report, err
	}
	return report, nil
}

// Confirm completes the session on accept. Any other answer sends the
// operator back to network collection with validation re-armed.
func (s *Session) Confirm(accept bool) error {
	if err := s.fire(Confirm, accept); err != nil {
		return err
	}

	if accept {
		s.profile.BuildDate = s.now()
		return nil
	}

	s.validateIP = true
	s.pending = nil
	s.lastNetwork = nil
	s.lastDisk = nil
	return nil
}

// Export returns the flattened profile, disk layout and partition template
// values of a complete session.
func (s *Session) Export() (Export, error) {
	if s.state != Complete {
		return Export{}, fmt.Errorf("%w: state %s", ErrNotComplete, s.state)
	}
	return Export{
		Server:    s.profile.Flatten(),
		Disk:      s.layout.Flatten(),
		Partition: partition.TemplateValues(*s.layout),
	}, nil
}

// Record builds the persistable record of a complete session.
func (s *Session) Record() (domain.ProvisioningRecord, error) {
	exp, err := s.Export()
	if err != nil {
		return domain.ProvisioningRecord{}, err
	}
	return domain.ProvisioningRecord{
		SessionID:  s.id,
		Hostname:   s.profile.Hostname,
		Device:     s.layout.Device,
		RequiredMB: s.layout.RequiredMB,
		Server:     exp.Server,
		Disk:       exp.Disk,
		Partition:  exp.Partition,
	}, nil
}

func (s *Session) fire(ev Event, ok bool) error {
	next, err := Next(s.state, ev, ok)
	if err != nil {
		return err
	}
	s.logger.Debugw("session transition", "session", s.id, "event", ev.String(), "from", s.state.String(), "to", next.String())
	s.observer.Transition(s.state.String(), next.String())
	s.state = next
	return nil
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// candidate merges in over the current profile. Location, domain and host
// metadata carry over untouched.
func (s *Session) candidate(in NetworkInput) domain.ServerProfile {
	p := copyProfile(s.profile)
	p.Hostname = strings.TrimSpace(in.Hostname)
	p.Primary = resolveInterface(in.Address, in.Mask, in.Gateway)
	p.PrimaryDNS = strings.TrimSpace(in.PrimaryDNS)
	p.SecondaryDNS = strings.TrimSpace(in.SecondaryDNS)

	p.Secondary = nil
	if s.secondInterface && !blank(in.SecondAddress, in.SecondMask, in.SecondGateway) {
		second := resolveInterface(in.SecondAddress, in.SecondMask, in.SecondGateway)
		p.Secondary = &second
	}
	return p
}

// resolveInterface normalises the mask through gateway derivation. A
// gateway typed by the operator wins over the derived one.
func resolveInterface(address, mask, gateway string) domain.InterfaceConfig {
	address = strings.TrimSpace(address)
	mask = strings.TrimSpace(mask)
	gateway = strings.TrimSpace(gateway)

	d := ipcalc.DeriveGatewayAndMask(address, mask)
	cfg := domain.InterfaceConfig{Address: address, Mask: d.Mask, Gateway: gateway}
	if cfg.Gateway == "" {
		cfg.Gateway = d.Gateway
	}
	return cfg
}

// addressFields lists the values checked with ipcalc. Hostname, domain,
// location, build date and host metadata are never checked.
func addressFields(p domain.ServerProfile) []string {
	fields := []string{
		p.Primary.Address,
		p.Primary.Mask,
		p.Primary.Gateway,
		p.PrimaryDNS,
		p.SecondaryDNS,
	}
	if p.Secondary != nil {
		fields = append(fields, p.Secondary.Address, p.Secondary.Mask, p.Secondary.Gateway)
	}
	return fields
}

func copyProfile(p domain.ServerProfile) domain.ServerProfile {
	if p.Secondary != nil {
		second := *p.Secondary
		p.Secondary = &second
	}
	return p
}
