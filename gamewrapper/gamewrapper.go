// Package gamewrapper is the client side of the Ludii game abstraction.
//
// A Wrapper stands for one game configuration (game plus option tokens) and
// knows how the channels of its move and state tensors correspond to those
// of another configuration. The correspondence itself is computed by the
// Ludii game wrapper library; HelperFactory reaches it through a small
// helper process.
package gamewrapper

import (
	"context"
	"fmt"
)

// NoSourceChannel marks a target channel that has no counterpart in the
// source tensor. The converter zero-fills such channels.
const NoSourceChannel = -1

// Wrapper is one constructed game configuration.
type Wrapper interface {
	// Game returns the game name the wrapper was constructed with.
	Game() string
	// Options returns the option tokens the wrapper was constructed with.
	Options() []string
	// MoveSourceChannels returns, for every move channel of this wrapper, the
	// channel of source that supplies it.
	MoveSourceChannels(ctx context.Context, source Wrapper) ([]int, error)
	// StateSourceChannels is MoveSourceChannels for state channels.
	StateSourceChannels(ctx context.Context, source Wrapper) ([]int, error)
}

// Factory constructs wrappers.
type Factory interface {
	Construct(ctx context.Context, game string, options []string) (Wrapper, error)
}

// ChannelMapping is the full channel correspondence of a target
// configuration against a source configuration.
type ChannelMapping struct {
	Move  []int
	State []int
}

// Remap is one channel that is not copied onto itself.
type Remap struct {
	Source int
	Target int
}

// MoveRemaps returns every move channel whose source index differs from its own.
func (m ChannelMapping) MoveRemaps() []Remap { return remaps(m.Move) }

// StateRemaps returns every state channel whose source index differs from its own.
func (m ChannelMapping) StateRemaps() []Remap { return remaps(m.State) }

// Identity reports whether every channel maps onto itself.
func (m ChannelMapping) Identity() bool {
	return len(m.MoveRemaps()) == 0 && len(m.StateRemaps()) == 0
}

func remaps(channels []int) []Remap {
	var out []Remap
	for target, source := range channels {
		if source != target {
			out = append(out, Remap{Source: source, Target: target})
		}
	}
	return out
}

// Correspondence asks target for its move and state channel correspondence
// against source.
func Correspondence(ctx context.Context, target, source Wrapper) (ChannelMapping, error) {
	move, err := target.MoveSourceChannels(ctx, source)
	if err != nil {
		return ChannelMapping{}, fmt.Errorf("move channels of %s: %w", target.Game(), err)
	}
	state, err := target.StateSourceChannels(ctx, source)
	if err != nil {
		return ChannelMapping{}, fmt.Errorf("state channels of %s: %w", target.Game(), err)
	}
	return ChannelMapping{Move: move, State: state}, nil
}
