package imagegen

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StagePolicies holds one retry policy per network stage.
type StagePolicies struct {
	Describe   RetryPolicy
	Synthesize RetryPolicy
}

// DefaultStagePolicies disables retrying on both stages.
func DefaultStagePolicies() StagePolicies {
	return StagePolicies{Describe: DefaultRetryPolicy(), Synthesize: DefaultRetryPolicy()}
}

// policyFile is the on-disk shape of PIPELINE_CONFIG:
//
//	describe:
//	  max_attempts: 1
//	synthesize:
//	  max_attempts: 3
//	  initial_delay: 2s
//	  max_delay: 15s
//	  multiplier: 2
//	  jitter: true
//	  retry_on: [ProviderWarmingUp, ProviderUnavailable]
type policyFile struct {
	Describe   *policyEntry `yaml:"describe"`
	Synthesize *policyEntry `yaml:"synthesize"`
}

type policyEntry struct {
	MaxAttempts  *int     `yaml:"max_attempts"`
	InitialDelay string   `yaml:"initial_delay"`
	MaxDelay     string   `yaml:"max_delay"`
	Multiplier   *float64 `yaml:"multiplier"`
	Jitter       *bool    `yaml:"jitter"`
	RetryOn      []string `yaml:"retry_on"`
}

// LoadRetryPolicyFile reads a YAML policy file over base. Omitted keys keep
// the base value.
func LoadRetryPolicyFile(path string, base StagePolicies) (StagePolicies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("imagegen: failed to read pipeline config %s: %w", path, err)
	}
	return ParseRetryPolicies(data, base)
}

// ParseRetryPolicies decodes YAML policy data over base.
func ParseRetryPolicies(data []byte, base StagePolicies) (StagePolicies, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("imagegen: invalid pipeline config: %w", err)
	}

	out := base
	var err error
	if file.Describe != nil {
		if out.Describe, err = file.Describe.apply(base.Describe); err != nil {
			return base, fmt.Errorf("imagegen: describe policy: %w", err)
		}
	}
	if file.Synthesize != nil {
		if out.Synthesize, err = file.Synthesize.apply(base.Synthesize); err != nil {
			return base, fmt.Errorf("imagegen: synthesize policy: %w", err)
		}
	}
	return out, nil
}

func (e *policyEntry) apply(p RetryPolicy) (RetryPolicy, error) {
	if e.MaxAttempts != nil {
		if *e.MaxAttempts < 0 {
			return p, fmt.Errorf("max_attempts must not be negative")
		}
		p.MaxAttempts = *e.MaxAttempts
	}
	if e.InitialDelay != "" {
		d, err := time.ParseDuration(e.InitialDelay)
		if err != nil {
			return p, fmt.Errorf("initial_delay: %w", err)
		}
		p.InitialDelay = d
	}
	if e.MaxDelay != "" {
		d, err := time.ParseDuration(e.MaxDelay)
		if err != nil {
			return p, fmt.Errorf("max_delay: %w", err)
		}
		p.MaxDelay = d
	}
	if e.Multiplier != nil {
		p.Multiplier = *e.Multiplier
	}
	if e.Jitter != nil {
		p.Jitter = *e.Jitter
	}
	if e.RetryOn != nil {
		kinds := make([]Kind, 0, len(e.RetryOn))
		for _, name := range e.RetryOn {
			kind := Kind(name)
			if !kind.IsTransient() {
				return p, fmt.Errorf("retry_on: %q is not retryable (allowed: %s, %s)", name, KindProviderWarmingUp, KindProviderUnavailable)
			}
			kinds = append(kinds, kind)
		}
		p.RetryOn = kinds
	}
	return p, nil
}
