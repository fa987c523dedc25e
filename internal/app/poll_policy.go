package app

import (
	"time"

	"github.com/yourusername/dl-client/internal/domain"
)

const defaultPollInterval = time.Second

// PollPolicy decides the delay before the next status request. The delay
// grows by Multiplier while reports stay unchanged, up to MaxInterval, and
// drops back to Interval as soon as something changes. A Multiplier of 1
// gives the fixed interval.
type PollPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
}

// NewPollPolicy builds a policy from configuration, filling in defaults
func NewPollPolicy(config domain.PollingConfig) PollPolicy {
	p := PollPolicy{
		Interval:    config.Interval,
		MaxInterval: config.MaxInterval,
		Multiplier:  config.Multiplier,
	}
	if p.Interval <= 0 {
		p.Interval = defaultPollInterval
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Initial returns the delay before the first poll
func (p PollPolicy) Initial() time.Duration {
	return p.Interval
}

// Next returns the delay following current
func (p PollPolicy) Next(current time.Duration, changed bool) time.Duration {
	if changed || current <= 0 {
		return p.Interval
	}

	next := time.Duration(float64(current) * p.Multiplier)
	if next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}

// reportChanged reports whether two consecutive status reports differ
func reportChanged(prev, next *domain.StatusReport) bool {
	if prev == nil || next == nil {
		return true
	}
	return prev.Status != next.Status || prev.Progress != next.Progress
}
