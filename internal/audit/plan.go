package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// PlanFile is the audit plan file name looked for at the project root.
const PlanFile = "phaser.toml"

// PlanPhase declares one phase of a planned audit.
type PlanPhase struct {
	Number      int    `toml:"number"`
	Slug        string `toml:"slug"`
	Description string `toml:"description"`
}

// Plan is the parsed audit plan.
type Plan struct {
	Name   string      `toml:"name"`
	Slug   string      `toml:"slug"`
	Mode   string      `toml:"mode"`
	Phases []PlanPhase `toml:"phases"`
}

// LoadPlan reads and validates the plan file at the project root. A
// missing file returns nil with no error; callers fall back to CLI
// arguments.
func LoadPlan(root string) (*Plan, error) {
	data, err := os.ReadFile(filepath.Join(root, PlanFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var p Plan
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", PlanFile, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%s: name is required", PlanFile)
	}
	if p.Slug == "" {
		p.Slug = p.Name
	}

	seen := map[int]bool{}
	for i := range p.Phases {
		ph := &p.Phases[i]
		if ph.Number <= 0 {
			return nil, fmt.Errorf("%s: phase %d: number must be positive", PlanFile, i+1)
		}
		if seen[ph.Number] {
			return nil, fmt.Errorf("%s: duplicate phase number %d", PlanFile, ph.Number)
		}
		seen[ph.Number] = true
		if ph.Slug == "" {
			ph.Slug = fmt.Sprintf("phase-%d", ph.Number)
		}
	}
	sort.Slice(p.Phases, func(i, j int) bool { return p.Phases[i].Number < p.Phases[j].Number })
	return &p, nil
}

// PhaseNumbers returns the planned phase numbers in order.
func (p *Plan) PhaseNumbers() []int {
	out := make([]int, len(p.Phases))
	for i, ph := range p.Phases {
		out[i] = ph.Number
	}
	return out
}

// Phase returns the planned phase with the given number, or nil.
func (p *Plan) Phase(number int) *PlanPhase {
	for i := range p.Phases {
		if p.Phases[i].Number == number {
			return &p.Phases[i]
		}
	}
	return nil
}
