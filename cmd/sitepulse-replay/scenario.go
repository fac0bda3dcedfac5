package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sitepulse/internal/consent/models"
	"sitepulse/internal/session"
)

const (
	presetAcceptAll     = "accept_all"
	presetEssentialOnly = "essential_only"
	presetUndecided     = "undecided"
)

// Scenario is a replayable session: who the visitor is, what they consented
// to, and the signals their browser sent.
type Scenario struct {
	SessionID string           `yaml:"session_id"`
	VisitorID string           `yaml:"visitor_id"`
	Country   string           `yaml:"country"`
	UserAgent string           `yaml:"user_agent"`
	Start     time.Time        `yaml:"start"`
	Consent   ConsentChoice    `yaml:"consent"`
	Flags     map[string]any   `yaml:"flags"`
	Signals   []session.Signal `yaml:"signals"`
}

// ConsentChoice is either a preset or explicit category choices.
type ConsentChoice struct {
	Preset    string `yaml:"preset"`
	Analytics *bool  `yaml:"analytics"`
	Marketing *bool  `yaml:"marketing"`
}

// UnmarshalYAML accepts a bare preset name as shorthand.
func (c *ConsentChoice) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Preset = node.Value
		return nil
	}
	type plain ConsentChoice
	return node.Decode((*plain)(c))
}

// Choices returns the decision to record; ok is false when the visitor has
// not decided.
func (c ConsentChoice) Choices() (choices models.Choices, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(c.Preset)) {
	case presetAcceptAll:
		return models.AcceptAll(), true, nil
	case presetEssentialOnly:
		return models.EssentialOnly(), true, nil
	case presetUndecided:
		return models.Choices{}, false, nil
	case "":
	default:
		return models.Choices{}, false, fmt.Errorf("unknown consent preset %q", c.Preset)
	}
	if c.Analytics == nil && c.Marketing == nil {
		return models.Choices{}, false, nil
	}
	if c.Analytics != nil {
		choices.Analytics = *c.Analytics
	}
	if c.Marketing != nil {
		choices.Marketing = *c.Marketing
	}
	return choices, true, nil
}

// LoadScenario decodes and validates a scenario.
func LoadScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.SessionID == "" {
		sc.SessionID = "replay"
	}
	if sc.VisitorID == "" {
		sc.VisitorID = "replay-visitor"
	}
	if sc.Start.IsZero() && len(sc.Signals) > 0 {
		sc.Start = sc.Signals[0].At
	}
	if _, _, err := sc.Consent.Choices(); err != nil {
		return Scenario{}, err
	}
	if err := session.ValidateBatch(sc.Signals); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}
