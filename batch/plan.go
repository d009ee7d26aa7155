package batch

import (
	"fmt"
	"path/filepath"

	"github.com/mzhaom/polygames-crossgame/registry"
)

// OutputExt is the extension of every converted checkpoint.
const OutputExt = ".pt.gz"

// Pass is one expanded job group.
type Pass struct {
	Name  string
	Pairs []registry.Pair
}

// Jobs returns the number of conversions the pass schedules when every
// source checkpoint is found.
func (p Pass) Jobs() int {
	n := 0
	for _, pair := range p.Pairs {
		targets := 0
		for _, dst := range pair.Targets {
			targets += dst.Len()
		}
		n += pair.Source.Len() * targets
	}
	return n
}

// Plan validates groups against reg and expands each into a pass.
func Plan(reg *registry.Registry, groups []registry.JobGroup) ([]Pass, error) {
	passes := make([]Pass, 0, len(groups))
	for _, g := range groups {
		if err := g.Validate(reg); err != nil {
			return nil, err
		}
		pairs, err := g.Pairs(reg)
		if err != nil {
			return nil, err
		}
		passes = append(passes, Pass{Name: g.Name, Pairs: pairs})
	}
	return passes, nil
}

// Job is one conversion: option set SourceIndex of Source to option set
// TargetIndex of Target.
type Job struct {
	Source      *registry.GameProfile
	SourceIndex int
	Target      *registry.GameProfile
	TargetIndex int
}

// SourceSet returns the source option set.
func (j Job) SourceSet() registry.OptionSet { return j.Source.OptionSet(j.SourceIndex) }

// TargetSet returns the target option set.
func (j Job) TargetSet() registry.OptionSet { return j.Target.OptionSet(j.TargetIndex) }

// OutputName is the file name of a cross-game conversion:
// <source><label>_to_<target><label>.pt.gz.
func (j Job) OutputName() string {
	return fmt.Sprintf("%s%s_to_%s%s%s",
		j.Source.Name(), j.SourceSet().Label,
		j.Target.Name(), j.TargetSet().Label, OutputExt)
}

// ResizeOutputName is the path of a board-size conversion relative to the
// reinit output root: <game>/<label>_to_<label>.pt.gz.
func (j Job) ResizeOutputName() string {
	return filepath.Join(j.Source.Name(),
		j.SourceSet().Label+"_to_"+j.TargetSet().Label+OutputExt)
}

func (j Job) String() string {
	return fmt.Sprintf("%s[%d] -> %s[%d]", j.Source.Name(), j.SourceIndex, j.Target.Name(), j.TargetIndex)
}
