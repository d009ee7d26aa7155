// Package registry describes the games, option sets and checkpoint
// directories that take part in a conversion batch.
//
// A Registry is built once at startup (see Default and DefaultResize) and
// handed to the batch driver explicitly. Nothing in this package mutates a
// profile after construction; accessors return copies.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownGame is returned when a game identifier is not registered.
var ErrUnknownGame = errors.New("unknown game")

// ludiiPrefix is stripped from profile names before they are handed to the
// game wrapper, which expects the bare .lud file name.
const ludiiPrefix = "Ludii"

// OptionSet is one configuration of a game: the option tokens passed to the
// game, the label used in output file names, and the directory holding the
// checkpoints trained on that configuration.
type OptionSet struct {
	Options       []string
	Label         string
	CheckpointDir string
}

// clone returns a deep copy of the option set.
func (o OptionSet) clone() OptionSet {
	opts := make([]string, len(o.Options))
	copy(opts, o.Options)
	return OptionSet{Options: opts, Label: o.Label, CheckpointDir: o.CheckpointDir}
}

// GameProfile is one registered game with its ordered option sets.
type GameProfile struct {
	name string
	sets []OptionSet
}

// NewGameProfile creates a profile from option sets. The sets are copied.
func NewGameProfile(name string, sets ...OptionSet) *GameProfile {
	p := &GameProfile{name: name, sets: make([]OptionSet, len(sets))}
	for i, s := range sets {
		p.sets[i] = s.clone()
	}
	return p
}

// FromParallel creates a profile from three parallel lists: option tokens,
// labels and checkpoint directories. Index i of each list describes the same
// option set, so the lists must have equal length.
func FromParallel(name string, options [][]string, labels, dirs []string) (*GameProfile, error) {
	if len(options) != len(labels) || len(options) != len(dirs) {
		return nil, fmt.Errorf("game %q: parallel lists differ in length (options=%d labels=%d dirs=%d)",
			name, len(options), len(labels), len(dirs))
	}
	sets := make([]OptionSet, len(options))
	for i := range options {
		sets[i] = OptionSet{Options: options[i], Label: labels[i], CheckpointDir: dirs[i]}
	}
	return NewGameProfile(name, sets...), nil
}

// Name returns the canonical game identifier, e.g. "LudiiHex.lud".
func (g *GameProfile) Name() string { return g.name }

// WrapperName returns the name the game wrapper expects, i.e. the
// identifier without its "Ludii" prefix.
func (g *GameProfile) WrapperName() string {
	return strings.TrimPrefix(g.name, ludiiPrefix)
}

// Len returns the number of option sets.
func (g *GameProfile) Len() int { return len(g.sets) }

// OptionSet returns a copy of option set i.
func (g *GameProfile) OptionSet(i int) OptionSet { return g.sets[i].clone() }

// Options returns the option tokens of every option set, in order.
func (g *GameProfile) Options() [][]string {
	out := make([][]string, len(g.sets))
	for i, s := range g.sets {
		out[i] = s.clone().Options
	}
	return out
}

// Labels returns the label of every option set, in order.
func (g *GameProfile) Labels() []string {
	out := make([]string, len(g.sets))
	for i, s := range g.sets {
		out[i] = s.Label
	}
	return out
}

// CheckpointDirs returns the checkpoint directory of every option set, in order.
func (g *GameProfile) CheckpointDirs() []string {
	out := make([]string, len(g.sets))
	for i, s := range g.sets {
		out[i] = s.CheckpointDir
	}
	return out
}

// rebase returns a copy of the profile whose relative checkpoint
// directories are joined onto root.
func (g *GameProfile) rebase(root string) *GameProfile {
	p := NewGameProfile(g.name, g.sets...)
	for i := range p.sets {
		if dir := p.sets[i].CheckpointDir; dir != "" && !filepath.IsAbs(dir) {
			p.sets[i].CheckpointDir = filepath.Join(root, dir)
		}
	}
	return p
}

// Registry maps game identifiers to profiles, keeping registration order.
type Registry struct {
	games map[string]*GameProfile
	order []string
}

// New creates a registry from profiles. Duplicate names are rejected.
func New(profiles ...*GameProfile) (*Registry, error) {
	r := &Registry{games: make(map[string]*GameProfile, len(profiles))}
	for _, p := range profiles {
		if p == nil {
			return nil, errors.New("nil game profile")
		}
		if _, ok := r.games[p.name]; ok {
			return nil, fmt.Errorf("duplicate game %q", p.name)
		}
		r.games[p.name] = p
		r.order = append(r.order, p.name)
	}
	return r, nil
}

// mustNew is New for literal data that is known to be valid.
func mustNew(profiles ...*GameProfile) *Registry {
	r, err := New(profiles...)
	if err != nil {
		panic(err)
	}
	return r
}

// Game returns the profile registered under name.
func (r *Registry) Game(name string) (*GameProfile, error) {
	p, ok := r.games[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, name)
	}
	return p, nil
}

// Games returns the profiles for names, in the given order.
func (r *Registry) Games(names ...string) ([]*GameProfile, error) {
	out := make([]*GameProfile, 0, len(names))
	for _, n := range names {
		p, err := r.Game(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Names returns every registered game identifier in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// WithCheckpointRoot returns a new registry whose relative checkpoint
// directories are resolved against root. Absolute directories are kept.
func (r *Registry) WithCheckpointRoot(root string) *Registry {
	profiles := make([]*GameProfile, 0, len(r.order))
	for _, n := range r.order {
		profiles = append(profiles, r.games[n].rebase(root))
	}
	return mustNew(profiles...)
}
