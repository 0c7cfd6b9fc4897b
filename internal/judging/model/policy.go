package model

import "time"

const (
	DefaultSampleFixtureCount = 3
	DefaultPollInterval       = 3 * time.Second
	DefaultRunDeadline        = 30 * time.Second
	DefaultSubmitDeadline     = 600 * time.Second
)

// VariantPolicy captures everything that differs between run and submit.
type VariantPolicy struct {
	Mode Mode `yaml:"-"`
	// FixtureLimit caps the fixtures used. Zero means all of them.
	FixtureLimit       int           `yaml:"fixtureLimit"`
	MergeBoilerplate   bool          `yaml:"mergeBoilerplate"`
	RetainAfterResolve bool          `yaml:"retainAfterResolve"`
	ClientDeadline     time.Duration `yaml:"clientDeadline"`
	PollInterval       time.Duration `yaml:"pollInterval"`
}

// SelectFixtures returns the leading fixtures allowed by the policy.
func (p VariantPolicy) SelectFixtures(fixtures []Fixture) []Fixture {
	if p.FixtureLimit > 0 && len(fixtures) > p.FixtureLimit {
		return fixtures[:p.FixtureLimit]
	}
	return fixtures
}

// Policies holds one policy per mode.
type Policies struct {
	Run    VariantPolicy `yaml:"run"`
	Submit VariantPolicy `yaml:"submit"`
}

// DefaultPolicies returns the stock run and submit behavior.
func DefaultPolicies() Policies {
	return Policies{
		Run: VariantPolicy{
			Mode:           ModeRun,
			FixtureLimit:   DefaultSampleFixtureCount,
			ClientDeadline: DefaultRunDeadline,
			PollInterval:   DefaultPollInterval,
		},
		Submit: VariantPolicy{
			Mode:               ModeSubmit,
			MergeBoilerplate:   true,
			RetainAfterResolve: true,
			ClientDeadline:     DefaultSubmitDeadline,
			PollInterval:       DefaultPollInterval,
		},
	}
}

// WithDefaults fills zero durations and restores the mode tags.
func (p Policies) WithDefaults() Policies {
	d := DefaultPolicies()
	p.Run.Mode = ModeRun
	p.Submit.Mode = ModeSubmit
	if p.Run.ClientDeadline <= 0 {
		p.Run.ClientDeadline = d.Run.ClientDeadline
	}
	if p.Run.PollInterval <= 0 {
		p.Run.PollInterval = d.Run.PollInterval
	}
	if p.Submit.ClientDeadline <= 0 {
		p.Submit.ClientDeadline = d.Submit.ClientDeadline
	}
	if p.Submit.PollInterval <= 0 {
		p.Submit.PollInterval = d.Submit.PollInterval
	}
	return p
}

// PolicyFor returns the policy for mode. Unknown modes get the submit policy.
func (p Policies) PolicyFor(mode Mode) VariantPolicy {
	if mode == ModeRun {
		return p.Run
	}
	return p.Submit
}
