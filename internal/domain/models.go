package domain

import (
	"sort"
	"strconv"
	"time"
)

// BuildDateLayout is the timestamp format the post-install stage parses.
const BuildDateLayout = "Mon 02 Jan 2006 15:04:05"

// Location is a site a server can be built for
type Location struct {
	Name        string `json:"name" mapstructure:"name"`               // Short site name (e.g., "dc1")
	Domain      string `json:"domain" mapstructure:"domain"`           // DNS domain assigned at this site
	Description string `json:"description" mapstructure:"description"` // Human readable label
}

// InterfaceConfig is the addressing of one network interface
type InterfaceConfig struct {
	Address string `json:"address"` // Dotted IPv4 address
	Mask    string `json:"mask"`    // Dotted mask or prefix length as entered
	Gateway string `json:"gateway"` // Dotted gateway, empty until derived
}

// HostInfo is probed hardware and OS metadata. It is passed through
// unvalidated.
type HostInfo struct {
	OSVersion string `json:"os_version"` // Release string of the installer image
	Arch      string `json:"arch"`       // Machine architecture (e.g., "x86_64")
	Model     string `json:"model"`      // System product name
}

// ServerProfile is the network identity collected for a server
type ServerProfile struct {
	Hostname     string           `json:"hostname"`
	Primary      InterfaceConfig  `json:"primary"`
	Secondary    *InterfaceConfig `json:"secondary,omitempty"` // Nil when no second interface is configured
	PrimaryDNS   string           `json:"primary_dns"`
	SecondaryDNS string           `json:"secondary_dns"`
	Domain       string           `json:"domain"`
	Location     string           `json:"location"`
	BuildDate    time.Time        `json:"build_date"`
	Host         HostInfo         `json:"host"`
}

// HasSecondInterface reports whether a secondary interface is configured.
func (p ServerProfile) HasSecondInterface() bool {
	return p.Secondary != nil
}

// Flatten renders the profile as the flat key/value record read by the
// post-install stage. Secondary keys are always present and blank when no
// second interface is configured.
func (p ServerProfile) Flatten() map[string]string {
	var second InterfaceConfig
	if p.Secondary != nil {
		second = *p.Secondary
	}

	builddate := ""
	if !p.BuildDate.IsZero() {
		builddate = p.BuildDate.Format(BuildDateLayout)
	}

	return map[string]string{
		"hostname":         p.Hostname,
		"pripaddr":         p.Primary.Address,
		"pripmask":         p.Primary.Mask,
		"pripgate":         p.Primary.Gateway,
		"primedns":         p.PrimaryDNS,
		"secondns":         p.SecondaryDNS,
		"secondipaddr":     second.Address,
		"secondipmask":     second.Mask,
		"secondipgate":     second.Gateway,
		"domain":           p.Domain,
		"location":         p.Location,
		"builddate":        builddate,
		"osversion":        p.Host.OSVersion,
		"serverarch":       p.Host.Arch,
		"servertype":       p.Host.Model,
		"second_interface": strconv.FormatBool(p.HasSecondInterface()),
	}
}

// ProvisioningRecord is a finalized profile and disk layout as persisted
// once the operator confirms a session
type ProvisioningRecord struct {
	ID         int64             `json:"id"`          // Unique identifier
	SessionID  string            `json:"session_id"`  // Session that produced the record
	Hostname   string            `json:"hostname"`    // Copied from the profile for lookups
	Device     string            `json:"device"`      // Install device
	RequiredMB int64             `json:"required_mb"` // Required space including overhead
	Server     map[string]string `json:"server"`      // Flattened server profile
	Disk       map[string]string `json:"disk"`        // Flattened disk layout
	Partition  map[string]string `json:"partition"`   // Partition template values
	CreatedAt  string            `json:"created_at"`  // When the record was stored
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
