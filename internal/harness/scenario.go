package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/senselogic/internal/ir"
)

// Scenario defines a timeline of readings and the trace it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules lists CUE rule files to compile and register.
	// Paths are relative to the scenario file location.
	Rules []string `yaml:"rules,omitempty"`

	// Expressions are registered in order before the first step.
	Expressions []Declaration `yaml:"expressions,omitempty"`

	// Watches are value subscriptions registered after the expressions.
	Watches []Watch `yaml:"watches,omitempty"`

	// Steps advance the clock and feed readings. At must not decrease.
	Steps []Step `yaml:"steps"`

	// Until optionally runs the clock past the last step.
	Until int64 `yaml:"until,omitempty"`

	// Assertions validate the final trace and states.
	Assertions []Assertion `yaml:"assertions"`
}

// Declaration is an inline logical expression.
type Declaration struct {
	ID         string `yaml:"id"`
	Expression string `yaml:"expression"`
}

// Watch is an inline value subscription.
type Watch struct {
	ID     string `yaml:"id"`
	Sensor string `yaml:"sensor"`
}

// Step is one instant of the timeline.
type Step struct {
	At         int64         `yaml:"at"`
	Readings   []ReadingStep `yaml:"readings,omitempty"`
	Unregister []string      `yaml:"unregister,omitempty"`
}

// ReadingStep appends one reading. Timestamp defaults to the step time.
type ReadingStep struct {
	Sensor    string `yaml:"sensor"`
	Value     string `yaml:"value"`
	Timestamp *int64 `yaml:"ts,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check event appears in trace
	// - "trace_order": Check events appear in order
	// - "trace_count": Check event appears exactly N times
	// - "final_state": Check an expression's last state
	Type string `yaml:"type"`

	// Event is "<id> <value>" (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// ID and State are used by final_state.
	ID    string `yaml:"id,omitempty"`
	State string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Rule paths are
// resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, rulePath := range scenario.Rules {
		if !filepath.IsAbs(rulePath) {
			scenario.Rules[i] = filepath.Join(base, rulePath)
		}
	}
	for _, rulePath := range scenario.Rules {
		if _, err := os.Stat(rulePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: rule file not found: %s", rulePath)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Rules) == 0 && len(s.Expressions) == 0 && len(s.Watches) == 0 {
		return fmt.Errorf("at least one of rules, expressions or watches is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, d := range s.Expressions {
		if d.ID == "" || d.Expression == "" {
			return fmt.Errorf("expressions[%d]: id and expression are required", i)
		}
	}
	for i, w := range s.Watches {
		if w.ID == "" || w.Sensor == "" {
			return fmt.Errorf("watches[%d]: id and sensor are required", i)
		}
	}

	last := int64(0)
	for i, step := range s.Steps {
		if step.At < last {
			return fmt.Errorf("steps[%d]: at %d is before previous step at %d", i, step.At, last)
		}
		last = step.At
		for j, r := range step.Readings {
			if r.Sensor == "" {
				return fmt.Errorf("steps[%d].readings[%d]: sensor is required", i, j)
			}
			if _, err := ir.ParseLiteral(r.Value); err != nil {
				return fmt.Errorf("steps[%d].readings[%d]: value: %w", i, j, err)
			}
		}
	}
	if s.Until != 0 && s.Until < last {
		return fmt.Errorf("until %d is before the last step at %d", s.Until, last)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for final_state", index)
		}
		if _, err := ir.ParseTriState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
