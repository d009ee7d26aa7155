package registry

import "fmt"

// JobGroup describes a set of conversions.
//
// A symmetric group (Directional false) converts every member to every other
// member; Targets is ignored. A directional group converts every source to
// every target and never the other way round.
type JobGroup struct {
	Name        string
	Sources     []string
	Targets     []string
	Directional bool
}

// Pair is one source profile together with the profiles it is converted to.
type Pair struct {
	Source  *GameProfile
	Targets []*GameProfile
}

// Pairs resolves the group against reg. A profile is never paired with itself.
func (g JobGroup) Pairs(reg *Registry) ([]Pair, error) {
	sources, err := reg.Games(g.Sources...)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", g.Name, err)
	}
	targets := sources
	if g.Directional {
		targets, err = reg.Games(g.Targets...)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
	}

	pairs := make([]Pair, 0, len(sources))
	for _, src := range sources {
		p := Pair{Source: src}
		for _, dst := range targets {
			if dst == src {
				continue
			}
			p.Targets = append(p.Targets, dst)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
