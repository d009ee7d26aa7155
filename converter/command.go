package converter

import "strconv"

// Subcommand is the converter entrypoint's subcommand for checkpoint conversion.
const Subcommand = "convert"

// DefaultEntrypoint runs the pypolygames module with unbuffered output.
var DefaultEntrypoint = []string{"python", "-u", "-m", "pypolygames"}

// DefaultSkipParams are the value and policy head parameters dropped by a
// re-initialising conversion.
var DefaultSkipParams = []string{"v.weight", "v.bias", "pi_logit.weight", "pi_logit.bias"}

// Command is a converter invocation, rendered as arguments following the entrypoint.
type Command interface {
	Args() []string
}

// Request converts a checkpoint to another game zero-shot, remapping tensor
// channels. Entry k of a channel list names the source channel feeding
// target channel k; negative entries have no source.
type Request struct {
	SourceCheckpoint    string
	TargetGame          string
	TargetOptions       []string
	Output              string
	MoveSourceChannels  []int
	StateSourceChannels []int
}

// Args renders the request. The order is fixed; the converter's argument
// parser relies on it for the variadic lists.
func (r Request) Args() []string {
	args := []string{
		Subcommand,
		"--init_checkpoint", r.SourceCheckpoint,
		"--out", r.Output,
		"--zero_shot=true",
		"--auto_tune_nnsize",
		"--game_name", r.TargetGame,
		"--game_options",
	}
	args = append(args, r.TargetOptions...)

	args = append(args, "--move_source_channels")
	args = appendInts(args, r.MoveSourceChannels)

	args = append(args, "--state_source_channels")
	args = appendInts(args, r.StateSourceChannels)
	return args
}

// ReinitRequest converts a checkpoint to other options of the same game,
// dropping the parameters named in Skip so they are re-initialised.
type ReinitRequest struct {
	SourceCheckpoint string
	TargetOptions    []string
	Output           string
	Skip             []string // defaults to DefaultSkipParams
}

// Args renders the request.
func (r ReinitRequest) Args() []string {
	skip := r.Skip
	if len(skip) == 0 {
		skip = DefaultSkipParams
	}

	args := []string{
		Subcommand,
		"--init_checkpoint", r.SourceCheckpoint,
		"--out", r.Output,
		"--skip",
	}
	args = append(args, skip...)
	args = append(args, "--game_options")
	return append(args, r.TargetOptions...)
}

func appendInts(args []string, ints []int) []string {
	for _, c := range ints {
		args = append(args, strconv.Itoa(c))
	}
	return args
}
