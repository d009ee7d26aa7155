package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks every registered profile and returns an error listing all
// problems found.
//
// Checks per profile:
//   - non-empty name and at least one option set
//   - every option set has a checkpoint directory
//   - labels are unique, so no two conversions of one game share an output file
func (r *Registry) Validate() error {
	var problems []string
	for _, name := range r.order {
		problems = append(problems, validateProfile(r.games[name])...)
	}
	return joinProblems("invalid registry", problems)
}

// Validate checks that every game named by the group is registered and that
// the group schedules at least one conversion.
func (g JobGroup) Validate(reg *Registry) error {
	var problems []string
	if g.Name == "" {
		problems = append(problems, "group has no name")
	}
	if len(g.Sources) == 0 {
		problems = append(problems, "no source games")
	}
	if g.Directional && len(g.Targets) == 0 {
		problems = append(problems, "directional group has no target games")
	}
	if !g.Directional && len(g.Targets) > 0 {
		problems = append(problems, "symmetric group must not list target games")
	}

	names := append([]string{}, g.Sources...)
	if g.Directional {
		names = append(names, g.Targets...)
	}
	for _, n := range names {
		if _, err := reg.Game(n); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) == 0 {
		pairs, err := g.Pairs(reg)
		if err != nil {
			return err
		}
		scheduled := 0
		for _, p := range pairs {
			scheduled += len(p.Targets)
		}
		if scheduled == 0 {
			problems = append(problems, "group schedules no conversions")
		}
	}

	return joinProblems(fmt.Sprintf("invalid group %q", g.Name), problems)
}

func validateProfile(p *GameProfile) []string {
	var problems []string
	if p.name == "" {
		problems = append(problems, "game with empty name")
	}
	if len(p.sets) == 0 {
		problems = append(problems, fmt.Sprintf("game %q has no option sets", p.name))
	}

	seen := make(map[string]int, len(p.sets))
	for i, s := range p.sets {
		if s.CheckpointDir == "" {
			problems = append(problems, fmt.Sprintf("game %q option set %d has no checkpoint directory", p.name, i))
		}
		if prev, ok := seen[s.Label]; ok {
			problems = append(problems, fmt.Sprintf("game %q option sets %d and %d share label %q", p.name, prev, i, s.Label))
		}
		seen[s.Label] = i
	}
	return problems
}

func joinProblems(prefix string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return errors.New(prefix + ":\n  - " + strings.Join(problems, "\n  - "))
}
