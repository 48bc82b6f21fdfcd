package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jbweber/homelab/preinstall/internal/domain"
	"github.com/jbweber/homelab/preinstall/internal/partition"
)

var (
	buildTime = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	testLocations = []domain.Location{
		{Name: "dc1", Domain: "dc1.example.com", Description: "Primary datacenter"},
		{Name: "dc2", Domain: "dc2.example.com", Description: "Secondary datacenter"},
	}

	bigDisk = partition.ProbedDisk{Device: "/dev/sda", Blocks: 488386584}
)

type recordingObserver struct {
	transitions []string
	verdicts    map[string][]bool
}

func (o *recordingObserver) Transition(from, to string) {
	o.transitions = append(o.transitions, from+">"+to)
}

func (o *recordingObserver) Validation(stage string, passed bool) {
	if o.verdicts == nil {
		o.verdicts = map[string][]bool{}
	}
	o.verdicts[stage] = append(o.verdicts[stage], passed)
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithLocations(testLocations),
		WithClock(func() time.Time { return buildTime }),
		WithSecondInterface(false),
	}
	s, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func validNetwork() NetworkInput {
	return NetworkInput{
		Hostname:     "web01",
		Address:      "192.168.1.10",
		Mask:         "24",
		PrimaryDNS:   "192.168.1.53",
		SecondaryDNS: "192.168.2.53",
	}
}

func TestSession_HappyPath(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestSession(t, WithObserver(obs), WithHostInfo(domain.HostInfo{OSVersion: "8.9", Arch: "x86_64", Model: "R640"}))
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, CollectingNetwork, s.State())
	assert.True(t, s.IPValidation())

	require.NoError(t, s.SelectLocation(1))

	report, err := s.SubmitNetwork(validNetwork())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Findings)
	assert.Equal(t, CollectingDisk, s.State())

	p := s.Profile()
	assert.Equal(t, "255.255.255.0", p.Primary.Mask)
	assert.Equal(t, "192.168.1.1", p.Primary.Gateway)
	assert.Equal(t, "dc2", p.Location)
	assert.Equal(t, "dc2.example.com", p.Domain)
	assert.Nil(t, p.Secondary)

	require.NoError(t, s.SelectDisk(bigDisk))
	snap := s.Snapshot()
	assert.Equal(t, "sda - 465.0 GB", snap.DiskLabel)
	require.NotNil(t, snap.Layout)
	assert.Equal(t, int64(476940), snap.Layout.AvailableMB)

	disk, err := s.SubmitDisk(DiskInput{})
	require.NoError(t, err)
	assert.True(t, disk.Fits)
	assert.Equal(t, int64(33835), disk.RequiredMB)
	assert.Equal(t, AwaitingConfirmation, s.State())

	_, err = s.Export()
	assert.ErrorIs(t, err, ErrNotComplete)

	require.NoError(t, s.Confirm(true))
	assert.Equal(t, Complete, s.State())

	exp, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, "web01", exp.Server["hostname"])
	assert.Equal(t, "192.168.1.1", exp.Server["pripgate"])
	assert.Equal(t, "Tue 05 Mar 2024 14:07:09", exp.Server["builddate"])
	assert.Equal(t, "R640", exp.Server["servertype"])
	assert.Equal(t, "false", exp.Server["second_interface"])
	assert.Equal(t, "sda", exp.Disk["device"])
	assert.Equal(t, "33835", exp.Disk["required_mb"])
	assert.Equal(t, "10000", exp.Partition["root_size"])

	rec, err := s.Record()
	require.NoError(t, err)
	assert.Equal(t, s.ID(), rec.SessionID)
	assert.Equal(t, "web01", rec.Hostname)
	assert.Equal(t, "sda", rec.Device)
	assert.Equal(t, int64(33835), rec.RequiredMB)

	assert.Equal(t, []string{
		"collecting_network>validating_network",
		"validating_network>collecting_disk",
		"collecting_disk>validating_disk",
		"validating_disk>awaiting_confirmation",
		"awaiting_confirmation>complete",
	}, obs.transitions)
	assert.Equal(t, []bool{true}, obs.verdicts["network"])
	assert.Equal(t, []bool{true}, obs.verdicts["disk"])
}

func TestSession_SubmitNetworkReportsValues(t *testing.T) {
	s := newTestSession(t)

	report, err := s.SubmitNetwork(NetworkInput{
		Hostname:     "not-an-address",
		Address:      "10.0.0.1/24",
		Mask:         "24",
		PrimaryDNS:   "999.1.1.1",
		SecondaryDNS: "10.0.0.2",
	})
	require.NoError(t, err)

	assert.False(t, report.Valid)
	assert.Equal(t, []Finding{
		{Value: "10.0.0.1/24", Reason: "contains CIDR suffix"},
		{Value: "24", Reason: "not a valid IPv4 address"},
		{Value: "", Reason: "blank"},
		{Value: "999.1.1.1", Reason: "not a valid IPv4 address"},
	}, report.Findings)
	assert.NotEqual(t, NoIPConfiguration, report.Summary)
	assert.Equal(t, CollectingNetwork, s.State())

	// Nothing is accepted from a failed round.
	assert.Empty(t, s.Profile().Hostname)
}

func TestSession_NoIPConfiguration(t *testing.T) {
	s := newTestSession(t)

	report, err := s.SubmitNetwork(NetworkInput{Hostname: "web01"})
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, NoIPConfiguration, report.Summary)
	assert.Len(t, report.Findings, 5)
}

func TestSession_PartlyBlankIsNotNoIPConfiguration(t *testing.T) {
	s := newTestSession(t)

	report, err := s.SubmitNetwork(NetworkInput{
		Hostname:   "web01",
		Address:    "10.0.0.5",
		PrimaryDNS: "10.0.0.2",
	})
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Findings)
	for _, f := range report.Findings {
		assert.Equal(t, "blank", f.Reason)
	}
	// Only a fully blank form gets the summary; otherwise each blank is listed.
	assert.NotEqual(t, NoIPConfiguration, report.Summary)
	assert.Contains(t, report.Summary, "(blank)")
}

func TestSession_OperatorGatewayKept(t *testing.T) {
	s := newTestSession(t)

	in := validNetwork()
	in.Mask = "255.255.255.0"
	in.Gateway = "192.168.1.254"
	report, err := s.SubmitNetwork(in)
	require.NoError(t, err)
	require.True(t, report.Valid)

	assert.Equal(t, "192.168.1.254", s.Profile().Primary.Gateway)
}

func TestSession_SecondInterface(t *testing.T) {
	s := newTestSession(t, WithSecondInterface(true))

	in := validNetwork()
	in.SecondAddress = "10.20.30.40"
	in.SecondMask = "33"
	report, err := s.SubmitNetwork(in)
	require.NoError(t, err)

	assert.False(t, report.Valid)
	assert.Equal(t, []Finding{
		{Value: "33", Reason: "not a valid IPv4 address"},
		{Value: "", Reason: "blank"},
	}, report.Findings)

	in.SecondMask = "16"
	report, err = s.SubmitNetwork(in)
	require.NoError(t, err)
	require.True(t, report.Valid)

	second := s.Profile().Secondary
	require.NotNil(t, second)
	assert.Equal(t, "255.255.0.0", second.Mask)
	assert.Equal(t, "10.20.0.1", second.Gateway)
}

func TestSession_BlankSecondInterfaceIsNotConfigured(t *testing.T) {
	s := newTestSession(t, WithSecondInterface(true))

	report, err := s.SubmitNetwork(validNetwork())
	require.NoError(t, err)
	require.True(t, report.Valid)
	assert.False(t, s.Profile().HasSecondInterface())
}

func TestSession_SkipAcceptsPendingCandidate(t *testing.T) {
	s := newTestSession(t)

	in := validNetwork()
	in.PrimaryDNS = "dns.example.com"
	report, err := s.SubmitNetwork(in)
	require.NoError(t, err)
	require.False(t, report.Valid)

	require.NoError(t, s.SkipIPValidation())
	assert.False(t, s.IPValidation())
	assert.Equal(t, CollectingDisk, s.State())
	assert.Equal(t, "dns.example.com", s.Profile().PrimaryDNS)
}

func TestSession_SkipBeforeSubmit(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SkipIPValidation())
	assert.Equal(t, CollectingNetwork, s.State())

	report, err := s.SubmitNetwork(NetworkInput{Hostname: "lab", Address: "garbage"})
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.True(t, report.Skipped)
	assert.Equal(t, CollectingDisk, s.State())

	assert.ErrorIs(t, s.SkipIPValidation(), ErrInvalidTransition)
}

func TestSession_RejectRearmsValidation(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.SkipIPValidation())
	_, err := s.SubmitNetwork(validNetwork())
	require.NoError(t, err)
	require.NoError(t, s.SelectDisk(bigDisk))
	_, err = s.SubmitDisk(DiskInput{})
	require.NoError(t, err)
	require.Equal(t, AwaitingConfirmation, s.State())

	require.NoError(t, s.Confirm(false))
	assert.Equal(t, CollectingNetwork, s.State())
	assert.True(t, s.IPValidation())

	report, err := s.SubmitNetwork(NetworkInput{Address: "garbage"})
	require.NoError(t, err)
	assert.False(t, report.Valid)
}

func TestSession_DiskRetryUntilFits(t *testing.T) {
	s := newTestSession(t)
	_, err := s.SubmitNetwork(validNetwork())
	require.NoError(t, err)

	_, err = s.SubmitDisk(DiskInput{})
	assert.ErrorIs(t, err, ErrNoDisk)

	// 20000 MB disk is too small for the default layout.
	require.NoError(t, s.SelectDisk(partition.ProbedDisk{Device: "/dev/vda", Blocks: 20000 << 10}))

	report, err := s.SubmitDisk(DiskInput{})
	require.NoError(t, err)
	assert.False(t, report.Fits)
	assert.Equal(t, int64(20000), report.AvailableMB)
	assert.Equal(t, int64(33835), report.RequiredMB)
	assert.Equal(t, CollectingDisk, s.State())

	report, err = s.SubmitDisk(DiskInput{Sizes: map[string]string{"root": "1000", "home": "1000", "var": "1000", "tmp": "big"}})
	require.NoError(t, err)
	assert.False(t, report.Fits, "unparsable size keeps the session collecting")
	assert.Len(t, report.Errors, 1)
	assert.Equal(t, CollectingDisk, s.State())

	report, err = s.SubmitDisk(DiskInput{Sizes: map[string]string{"tmp": "1000"}})
	require.NoError(t, err)
	assert.True(t, report.Fits)
	// 14500 MB of volumes plus 1% overhead.
	assert.Equal(t, int64(14645), report.RequiredMB)
	assert.Equal(t, int64(5355), report.SlackMB)
	assert.Equal(t, AwaitingConfirmation, s.State())
}

func TestSession_DiskReset(t *testing.T) {
	s := newTestSession(t)
	_, err := s.SubmitNetwork(validNetwork())
	require.NoError(t, err)
	require.NoError(t, s.SelectDisk(bigDisk))

	report, err := s.SubmitDisk(DiskInput{Sizes: map[string]string{"root": "900000"}})
	require.NoError(t, err)
	require.False(t, report.Fits)

	report, err = s.SubmitDisk(DiskInput{Reset: true, Sizes: map[string]string{"root": "900000"}})
	require.NoError(t, err)
	assert.True(t, report.Fits)
	assert.Equal(t, int64(33835), report.RequiredMB)

	layout := s.Snapshot().Layout
	require.NotNil(t, layout)
	assert.Equal(t, partition.DefaultVolumes(), layout.Volumes)
	assert.Equal(t, "sda", layout.Device)
}

func TestSession_LegacyOverhead(t *testing.T) {
	planner, err := partition.NewPlanner(partition.WithOverhead(partition.LegacyOverhead))
	require.NoError(t, err)
	s := newTestSession(t, WithPlanner(planner))

	_, err = s.SubmitNetwork(validNetwork())
	require.NoError(t, err)
	require.NoError(t, s.SelectDisk(bigDisk))

	report, err := s.SubmitDisk(DiskInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(33500), report.RequiredMB)
}

func TestSession_HugeSizesNeverFit(t *testing.T) {
	for _, overhead := range []float64{partition.DefaultOverhead, partition.LegacyOverhead} {
		planner, err := partition.NewPlanner(partition.WithOverhead(overhead))
		require.NoError(t, err)
		s := newTestSession(t, WithPlanner(planner))

		_, err = s.SubmitNetwork(validNetwork())
		require.NoError(t, err)
		require.NoError(t, s.SelectDisk(partition.ProbedDisk{Device: "/dev/sda", Blocks: 100 << 20}))

		// Two halves of 2^63 would wrap to a negative total.
		report, err := s.SubmitDisk(DiskInput{Sizes: map[string]string{
			"root": "4611686018427387904",
			"home": "4611686018427387904",
		}})
		require.NoError(t, err)
		assert.False(t, report.Fits, "overhead %v", overhead)
		assert.Len(t, report.Errors, 2)
		assert.GreaterOrEqual(t, report.RequiredMB, int64(0))
		assert.Equal(t, CollectingDisk, s.State())

		// Largest accepted sizes parse but still do not fit.
		report, err = s.SubmitDisk(DiskInput{Sizes: map[string]string{
			"root": "1099511627776",
			"home": "1099511627776",
		}})
		require.NoError(t, err)
		assert.False(t, report.Fits, "overhead %v", overhead)
		assert.Empty(t, report.Errors)
		assert.Greater(t, report.RequiredMB, report.AvailableMB)
		assert.Equal(t, CollectingDisk, s.State())
	}
}

func TestSession_WrongStateCalls(t *testing.T) {
	s := newTestSession(t)

	assert.ErrorIs(t, s.SelectDisk(bigDisk), ErrInvalidTransition)
	assert.ErrorIs(t, s.Confirm(true), ErrInvalidTransition)
	_, err := s.SubmitDisk(DiskInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.ErrorIs(t, s.SelectLocation(2), ErrUnknownLocation)
	assert.ErrorIs(t, s.SelectLocation(-1), ErrUnknownLocation)

	_, err = s.SubmitNetwork(validNetwork())
	require.NoError(t, err)
	assert.ErrorIs(t, s.SelectLocation(0), ErrInvalidTransition)
	_, err = s.SubmitNetwork(validNetwork())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s := newTestSession(t, WithSecondInterface(true))
	in := validNetwork()
	in.SecondAddress = "10.0.0.5"
	in.SecondMask = "8"
	_, err := s.SubmitNetwork(in)
	require.NoError(t, err)
	require.NoError(t, s.SelectDisk(bigDisk))

	snap := s.Snapshot()
	snap.Profile.Secondary.Address = "changed"
	snap.Layout.Volumes[0].SizeMB = 1

	again := s.Snapshot()
	assert.Equal(t, "10.0.0.5", again.Profile.Secondary.Address)
	assert.Equal(t, int64(500), again.Layout.Volumes[0].SizeMB)
}
