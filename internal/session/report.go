package session

import (
	"strings"

	"github.com/jbweber/homelab/preinstall/internal/ipcalc"
)

// NoIPConfiguration is the report summary when every checked field is blank.
const NoIPConfiguration = "No IP configuration provided"

// Finding is one rejected value. Only the value is reported, never the
// field it was typed into.
type Finding struct {
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// NetworkReport is the verdict of a network round.
type NetworkReport struct {
	Valid    bool      `json:"valid"`
	Skipped  bool      `json:"skipped"` // Validation was turned off by the operator
	Summary  string    `json:"summary,omitempty"`
	Findings []Finding `json:"findings,omitempty"`
}

// DiskReport is the verdict of a disk round.
type DiskReport struct {
	Fits        bool     `json:"fits"`
	AvailableMB int64    `json:"avail_mb"`
	RequiredMB  int64    `json:"required_mb"`
	SlackMB     int64    `json:"slack_mb"`
	Errors      []string `json:"errors,omitempty"`
}

// checkAddresses classifies every value and collects the rejects.
func checkAddresses(values []string) NetworkReport {
	var (
		findings []Finding
		blank    int
	)
	for _, v := range values {
		reason := ipcalc.Classify(v)
		if reason == ipcalc.ReasonNone {
			continue
		}
		if reason == ipcalc.ReasonBlank {
			blank++
		}
		findings = append(findings, Finding{Value: v, Reason: reason.String()})
	}

	report := NetworkReport{Valid: len(findings) == 0, Findings: findings}
	if len(values) > 0 && blank == len(values) {
		report.Summary = NoIPConfiguration
	} else if !report.Valid {
		report.Summary = describe(findings)
	}
	return report
}

func describe(findings []Finding) string {
	parts := make([]string, len(findings))
	for i, f := range findings {
		v := f.Value
		if strings.TrimSpace(v) == "" {
			v = "(blank)"
		}
		parts[i] = v + ": " + f.Reason
	}
	return strings.Join(parts, "; ")
}
