// Package consensus reconciles per-provider results into a single merged
// result and scores how trustworthy the reconciliation is. Merging and
// scoring are pure functions over settled outcomes; nothing here performs
// I/O besides loading the policy file.
package consensus

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/exam-engine/internal/model"
)

// Policy holds the tunable consensus constants.
type Policy struct {
	// SingleProviderCeiling caps result confidence when only one provider
	// succeeded, reflecting the absence of cross-validation.
	SingleProviderCeiling float64 `yaml:"single_provider_ceiling" mapstructure:"single_provider_ceiling"`
	// ErrorPenalty is subtracted from confidence per explicit provider
	// error (timeouts are treated as unavailability, not errors).
	ErrorPenalty float64 `yaml:"error_penalty" mapstructure:"error_penalty"`
	// MaxListItems caps merged feedback lists (strengths, weaknesses, ...).
	MaxListItems int `yaml:"max_list_items" mapstructure:"max_list_items"`
	// Priority ranks providers for primary-provider selection, best first.
	Priority PriorityConfig `yaml:"priority" mapstructure:"priority"`
}

// PriorityConfig holds the per-capability provider priority lists.
type PriorityConfig struct {
	Extraction []string `yaml:"extraction" mapstructure:"extraction"`
	Evaluation []string `yaml:"evaluation" mapstructure:"evaluation"`
}

// DefaultPolicy returns the compiled-in policy values.
func DefaultPolicy() Policy {
	return Policy{
		SingleProviderCeiling: 0.7,
		ErrorPenalty:          0.1,
		MaxListItems:          5,
		Priority: PriorityConfig{
			Extraction: []string{"gemini", "openai", "anthropic"},
			Evaluation: []string{"anthropic", "openai", "gemini"},
		},
	}
}

// LoadPolicy reads a policy file, filling unset values from the defaults.
// The YAML has a top-level "consensus" key.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "consensus: read policy %s", path)
	}

	var wrapper struct {
		Consensus Policy `yaml:"consensus"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Policy{}, eris.Wrap(err, "consensus: parse policy")
	}

	p := wrapper.Consensus
	def := DefaultPolicy()
	if p.SingleProviderCeiling == 0 {
		p.SingleProviderCeiling = def.SingleProviderCeiling
	}
	if p.ErrorPenalty == 0 {
		p.ErrorPenalty = def.ErrorPenalty
	}
	if p.MaxListItems == 0 {
		p.MaxListItems = def.MaxListItems
	}
	if len(p.Priority.Extraction) == 0 {
		p.Priority.Extraction = def.Priority.Extraction
	}
	if len(p.Priority.Evaluation) == 0 {
		p.Priority.Evaluation = def.Priority.Evaluation
	}
	return p, nil
}

// PriorityFor returns the provider priority list for a task kind.
func (p Policy) PriorityFor(kind model.TaskKind) []string {
	if kind == model.TaskExtraction {
		return p.Priority.Extraction
	}
	return p.Priority.Evaluation
}
