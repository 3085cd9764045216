package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a flow configuration document is
// present but malformed.
var ErrInvalidConfig = errors.New("invalid flow configuration")

// FlowRules holds the named finalization conditions of a flow. Any
// satisfied rule finalizes the expense on its own; precedence between
// them is fixed by the evaluator.
type FlowRules struct {
	// Specific is a single approver whose approval alone is sufficient.
	Specific *int64 `json:"specific,omitempty"`
	// Percentage is the fraction of acted (non-pending) approvals that
	// must be approved, in [0,1].
	Percentage *float64 `json:"percentage,omitempty"`
}

// FlowConfig is the parsed form of ApprovalFlow.Config.
type FlowConfig struct {
	// Sequence is the ordered approver chain for the sequential rule.
	Sequence []int64   `json:"sequence"`
	Rules    FlowRules `json:"rules"`
}

// ParseFlowConfig parses and validates a raw flow configuration
// document. Configuration is operator-authored JSON, so every
// structural defect surfaces as ErrInvalidConfig rather than a panic
// downstream.
func ParseFlowConfig(raw string) (*FlowConfig, error) {
	var cfg FlowConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants of a flow configuration.
func (c *FlowConfig) Validate() error {
	if c.Rules.Percentage != nil {
		p := *c.Rules.Percentage
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: percentage %v outside [0,1]", ErrInvalidConfig, p)
		}
	}
	if c.Rules.Specific != nil && *c.Rules.Specific <= 0 {
		return fmt.Errorf("%w: specific approver id must be positive", ErrInvalidConfig)
	}
	seen := make(map[int64]bool, len(c.Sequence))
	for _, id := range c.Sequence {
		if id <= 0 {
			return fmt.Errorf("%w: sequence approver id must be positive", ErrInvalidConfig)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate approver %d in sequence", ErrInvalidConfig, id)
		}
		seen[id] = true
	}
	return nil
}

// HasSpecificRule reports whether the specific-approver rule is
// configured.
func (c *FlowConfig) HasSpecificRule() bool { return c.Rules.Specific != nil }

// HasPercentageRule reports whether the percentage rule is configured.
func (c *FlowConfig) HasPercentageRule() bool { return c.Rules.Percentage != nil }
