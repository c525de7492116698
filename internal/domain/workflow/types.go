// Package workflow defines and runs declarative multi-step workflows:
// YAML definitions of variable assignments, tool calls, conditionals,
// and loops, executed against the tool runner in workflow mode.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Geo-fs/NeroAI/internal/domain/fault"
)

// Step types.
const (
	StepSetVar   = "set_var"
	StepCallTool = "call_tool"
	StepIf       = "if"
	StepLoop     = "loop"
	StepReturn   = "return"
)

// DefaultMaxIterations caps a loop step that does not set its own cap.
const DefaultMaxIterations = 100

// Step is one workflow step. Which fields apply depends on Type.
type Step struct {
	Type string `yaml:"type"`

	// set_var
	Var   string `yaml:"var,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// call_tool
	Tool      string         `yaml:"tool,omitempty"`
	Args      map[string]any `yaml:"args,omitempty"`
	ResultVar string         `yaml:"result_var,omitempty"`

	// if / loop
	Condition string `yaml:"condition,omitempty"`
	Then      []Step `yaml:"then,omitempty"`
	Else      []Step `yaml:"else,omitempty"`
	Body      []Step `yaml:"body,omitempty"`
	// MaxIterations bounds a loop; zero means DefaultMaxIterations.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// return
	Result any `yaml:"result,omitempty"`
}

// Definition is one named workflow.
type Definition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	// Inputs seed the variable bag; caller-supplied inputs override them.
	Inputs map[string]any `yaml:"inputs,omitempty"`
	Steps  []Step         `yaml:"steps"`
}

// Parse reads a YAML workflow definition and validates its shape.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fault.Validation("invalid workflow yaml: %v", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition's shape without executing anything.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fault.Validation("workflow name is required")
	}
	if len(d.Steps) == 0 {
		return fault.Validation("workflow %q has no steps", d.Name)
	}
	return validateSteps(d.Steps, "steps")
}

func validateSteps(steps []Step, path string) error {
	for i, step := range steps {
		at := fmt.Sprintf("%s[%d]", path, i)
		switch step.Type {
		case StepSetVar:
			if step.Var == "" {
				return fault.Validation("%s: set_var requires var", at)
			}
		case StepCallTool:
			if step.Tool == "" {
				return fault.Validation("%s: call_tool requires tool", at)
			}
		case StepIf:
			if step.Condition == "" {
				return fault.Validation("%s: if requires condition", at)
			}
			if len(step.Then) == 0 {
				return fault.Validation("%s: if requires then steps", at)
			}
			if err := validateSteps(step.Then, at+".then"); err != nil {
				return err
			}
			if err := validateSteps(step.Else, at+".else"); err != nil {
				return err
			}
		case StepLoop:
			if step.Condition == "" {
				return fault.Validation("%s: loop requires condition", at)
			}
			if len(step.Body) == 0 {
				return fault.Validation("%s: loop requires body steps", at)
			}
			if step.MaxIterations < 0 || step.MaxIterations > DefaultMaxIterations {
				return fault.Validation("%s: max_iterations must be between 1 and %d", at, DefaultMaxIterations)
			}
			if err := validateSteps(step.Body, at+".body"); err != nil {
				return err
			}
		case StepReturn:
			// Result may legitimately be nil.
		case "prompt_agent":
			return fault.Validation("%s: prompt_agent steps are not supported; prompting is the host's concern", at)
		default:
			return fault.Validation("%s: unknown step type %q", at, step.Type)
		}
	}
	return nil
}
