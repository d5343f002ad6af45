package approval

import (
	"time"

	"github.com/pitabwire/signoff/internal/config"
)

// Policy holds the tunable constants of deadline and risk evaluation.
type Policy struct {
	// EscalationGrace is added to a requirement deadline on every escalation.
	EscalationGrace time.Duration
	// ApproachingDays is the inclusive upper bound of the approaching window.
	ApproachingDays int
	// GoLiveRiskDays and GoLiveRiskProgress must both be undershot for the
	// go-live risk to fire.
	GoLiveRiskDays     int
	GoLiveRiskProgress float64
}

// DefaultPolicy returns the reference policy: 72h grace, a 2 day approaching
// window, and go-live risk below 14 days and 80% progress.
func DefaultPolicy() Policy {
	return Policy{
		EscalationGrace:    72 * time.Hour,
		ApproachingDays:    2,
		GoLiveRiskDays:     14,
		GoLiveRiskProgress: 80,
	}
}

// PolicyFromConfig builds a Policy from engine configuration. Zero durations
// and thresholds fall back to defaults; a zero approaching window is kept and
// flags only requirements due today.
func PolicyFromConfig(cfg config.EngineConfig) Policy {
	p := DefaultPolicy()
	if cfg.EscalationGrace > 0 {
		p.EscalationGrace = cfg.EscalationGrace
	}
	if cfg.ApproachingDays >= 0 {
		p.ApproachingDays = cfg.ApproachingDays
	}
	if cfg.GoLiveRiskDays > 0 {
		p.GoLiveRiskDays = cfg.GoLiveRiskDays
	}
	if cfg.GoLiveRiskProgress > 0 {
		p.GoLiveRiskProgress = cfg.GoLiveRiskProgress
	}
	return p
}
